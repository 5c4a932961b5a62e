package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"safeguard-bot/internal/adapter"
	"safeguard-bot/internal/admin"
	"safeguard-bot/internal/alert"
	"safeguard-bot/internal/api"
	"safeguard-bot/internal/cache"
	"safeguard-bot/internal/classify"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/evm"
	"safeguard-bot/internal/mev"
	"safeguard-bot/internal/notify"
	"safeguard-bot/internal/pipeline"
	"safeguard-bot/internal/price"
	"safeguard-bot/internal/publish"
	"safeguard-bot/internal/recorder"
	"safeguard-bot/internal/solana"
)

// shutdownGrace bounds how long in-flight events may delay exit.
const shutdownGrace = 30 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var (
		useMemory  bool
		tokensFile string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chain adapters, alert pipeline and HTTP endpoints",
		Long: `Run polls tracked Solana mints, subscribes to Swap logs of tracked EVM pools,
and alerts on qualifying swaps until interrupted.

Chains without a configured endpoint are skipped.

With --use-memory nothing is persisted and the token CLI cannot reach the
process, so tracked tokens come from --tokens-file: a JSON array of objects
with the fields of "token add" (chain, address, symbol, pool_address,
channel_id, min_amount, min_amount_usd, whale_threshold_usd, emoji_tiers,
buttons, media, mev_filter). The file is also accepted with PostgreSQL,
where tokens already tracked are skipped.`,
		Example: `  safeguard-bot run
  safeguard-bot run --use-memory --tokens-file tokens.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), useMemory, tokensFile)
		},
	}
	cmd.Flags().BoolVar(&useMemory, "use-memory", false, "use in-memory storage instead of PostgreSQL")
	cmd.Flags().StringVar(&tokensFile, "tokens-file", "", "JSON file of tokens to track at startup")
	return cmd
}

func (a *app) run(ctx context.Context, useMemory bool, tokensFile string) error {
	cfg := a.cfg
	log := a.logger
	if err := cfg.ValidateRun(useMemory); err != nil {
		return err
	}

	st, closeStores, err := openStores(ctx, cfg, useMemory)
	if err != nil {
		return err
	}
	defer closeStores()

	var kv cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "safeguard:",
		})
		if err != nil {
			return err
		}
		defer r.Close()
		kv = r
	}

	sender, err := notify.NewTelegramSender(notify.TelegramOptions{
		Token:       cfg.TelegramBotToken,
		APIEndpoint: cfg.TelegramAPIEndpoint,
		Timeout:     cfg.HTTPTimeout,
		Logger:      &log,
	})
	if err != nil {
		return err
	}

	var publisher publish.Publisher = publish.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := publish.NewKafkaPublisher(publish.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return err
		}
		publisher = kp
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing transactions to kafka")
	}
	defer publisher.Close()

	filter := mev.NewFilter(mev.FilterOptions{Store: st.blacklist, Cache: kv, TTL: cfg.BlacklistCacheTTL, Logger: &log})
	rec := recorder.New(recorder.Options{Transactions: st.txs, Aggregates: st.aggs, Logger: &log})
	gate := alert.NewGate(alert.GateOptions{Policy: a.policy(), Filter: filter, Logger: &log})
	dispatcher := alert.NewDispatcher(alert.DispatcherOptions{Sender: sender, Marker: rec, Timeout: cfg.HTTPTimeout, Logger: &log})
	prices := price.NewResolver(price.ResolverOptions{
		Native:  price.NewCoinGecko(cfg.CoinGeckoURL, cfg.HTTPTimeout),
		Token:   price.NewDexScreener(cfg.DexScreenerURL, cfg.HTTPTimeout),
		Cache:   kv,
		TTL:     cfg.PriceCacheTTL,
		Timeout: cfg.HTTPTimeout,
		Logger:  &log,
	})

	processor := pipeline.NewProcessor(pipeline.ProcessorOptions{
		Classifier: classify.NewRegistry(classify.NewSolanaClassifier(), classify.NewEVMClassifier()),
		Prices:     prices,
		Recorder:   rec,
		Gate:       gate,
		Dispatcher: dispatcher,
		Publisher:  publisher,
		Logger:     &log,
	})

	svc := admin.NewService(admin.ServiceOptions{
		Tokens:       st.tokens,
		Transactions: st.txs,
		Blacklist:    st.blacklist,
		Filter:       filter,
		Gate:         gate,
		Dispatcher:   dispatcher,
		Logger:       &log,
	})
	if tokensFile != "" {
		if err := seedTokens(ctx, svc, tokensFile); err != nil {
			return err
		}
	} else if useMemory {
		log.Warn().Msg("in-memory run without --tokens-file tracks no tokens")
	}

	snapshot := adapter.NewTokenSnapshot(adapter.SnapshotOptions{Store: st.tokens, Interval: cfg.TokenRefreshInterval, Logger: &log})
	if err := snapshot.Refresh(ctx); err != nil {
		return err
	}
	httpServer := api.NewServer(api.Options{Blacklist: svc, Tokens: snapshot, Logger: &log})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("token snapshot", snapshot.Run)
	start("http", func(ctx context.Context) error {
		return httpServer.ListenAndServe(ctx, cfg.MetricsAddr)
	})

	if cfg.SolanaRPCEndpoint != "" {
		var ws solana.WSClient
		if cfg.SolanaWSEndpoint != "" {
			wsCfg := solana.DefaultWSConfig()
			wsCfg.Logger = log
			client, err := solana.NewWSClient(ctx, cfg.SolanaWSEndpoint, &wsCfg)
			if err != nil {
				log.Warn().Err(err).Msg("solana websocket unavailable, polling only")
			} else {
				defer client.Close()
				ws = client
			}
		}
		solanaAdapter := adapter.NewSolanaAdapter(adapter.SolanaOptions{
			RPC:            solana.NewHTTPClient(cfg.SolanaRPCEndpoint, solana.WithTimeout(cfg.HTTPTimeout)),
			WS:             ws,
			Tokens:         snapshot,
			Seen:           rec,
			Processor:      processor,
			Interval:       cfg.SolanaPollInterval,
			SignatureLimit: cfg.SolanaSignatureLimit,
			RPCTimeout:     cfg.HTTPTimeout,
			Backoff:        adapter.DefaultBackoff(),
			Logger:         &log,
		})
		start("solana adapter", solanaAdapter.Run)
	}

	backends := make(map[domain.Chain]evm.Backend, len(cfg.EVMEndpoints))
	for chain, endpoint := range cfg.EVMEndpoints {
		client, err := evm.Dial(ctx, endpoint)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("%s: %w", chain, err)
		}
		defer client.Close()
		backends[chain] = client
		log.Info().Str("chain", string(chain)).Msg("evm endpoint connected")
	}
	if len(backends) > 0 {
		evmAdapter := adapter.NewEVMAdapter(adapter.EVMOptions{
			Backends:   backends,
			Tokens:     snapshot,
			Processor:  processor,
			RPCTimeout: cfg.HTTPTimeout,
			Backoff:    adapter.DefaultBackoff(),
			Logger:     &log,
		})
		start("evm adapter", evmAdapter.Run)
	}

	log.Info().Bool("memory", useMemory).Msg("safeguard-bot running")

	var runErr error
	select {
	case <-runCtx.Done():
		log.Info().Msg("shutdown requested, finishing in-flight events")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("component failed, shutting down")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Warn().Dur("grace", shutdownGrace).Msg("shutdown timed out")
	}

	log.Info().Msg("shutdown complete")
	return runErr
}

func seedTokens(ctx context.Context, svc *admin.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tokens file: %w", err)
	}
	defer f.Close()

	if _, err := svc.SeedTokens(ctx, f); err != nil {
		return fmt.Errorf("seed tokens from %s: %w", path, err)
	}
	return nil
}
