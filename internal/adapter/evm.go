package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"safeguard-bot/internal/classify"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/evm"
	"safeguard-bot/internal/observability"
)

const logBufferSize = 256

var errSubscriptionClosed = errors.New("subscription closed")

// EVMOptions configures an EVMAdapter.
type EVMOptions struct {
	Backends   map[domain.Chain]evm.Backend
	Tokens     *TokenSnapshot
	Processor  EventProcessor
	RPCTimeout time.Duration
	Backoff    Backoff
	Logger     *zerolog.Logger
}

// EVMAdapter keeps one Swap log subscription per tracked (chain, pool).
type EVMAdapter struct {
	backends   map[domain.Chain]evm.Backend
	readers    map[domain.Chain]*evm.PoolReader
	tokens     *TokenSnapshot
	processor  EventProcessor
	rpcTimeout time.Duration
	backoff    Backoff
	logger     zerolog.Logger

	wg sync.WaitGroup
}

type poolKey struct {
	chain domain.Chain
	pool  common.Address
}

// NewEVMAdapter creates an EVMAdapter. Chains without a backend are ignored.
func NewEVMAdapter(opts EVMOptions) *EVMAdapter {
	a := &EVMAdapter{
		backends:   opts.Backends,
		readers:    make(map[domain.Chain]*evm.PoolReader, len(opts.Backends)),
		tokens:     opts.Tokens,
		processor:  opts.Processor,
		rpcTimeout: opts.RPCTimeout,
		backoff:    opts.Backoff,
		logger:     zerolog.Nop(),
	}
	if a.rpcTimeout <= 0 {
		a.rpcTimeout = DefaultRPCTimeout
	}
	if opts.Logger != nil {
		a.logger = opts.Logger.With().Str("component", "evm_adapter").Logger()
	}
	for chain, backend := range opts.Backends {
		a.readers[chain] = evm.NewPoolReader(backend)
	}
	return a
}

// Run maintains subscriptions for the current token snapshot until ctx is
// cancelled, then waits for in-flight events to finish.
func (a *EVMAdapter) Run(ctx context.Context) error {
	subs := make(map[poolKey]context.CancelFunc)
	defer func() {
		for _, cancel := range subs {
			cancel()
		}
		a.wg.Wait()
	}()

	a.logger.Info().Int("chains", len(a.backends)).Msg("evm adapter started")
	warned := make(map[domain.Chain]bool)

	for {
		updated := a.tokens.Updated()

		want := make(map[poolKey]bool)
		for _, token := range a.tokens.Family(domain.FamilyEVM) {
			if _, ok := a.backends[token.Chain]; !ok {
				if !warned[token.Chain] {
					warned[token.Chain] = true
					a.logger.Warn().Str("chain", string(token.Chain)).Msg("no endpoint configured, tokens ignored")
				}
				continue
			}
			if !common.IsHexAddress(token.PoolAddress) {
				a.logger.Warn().Int64("token", token.ID).Str("pool", token.PoolAddress).Msg("invalid pool address")
				continue
			}
			want[poolKey{chain: token.Chain, pool: common.HexToAddress(token.PoolAddress)}] = true
		}

		for key := range want {
			if _, ok := subs[key]; ok {
				continue
			}
			subCtx, cancel := context.WithCancel(ctx)
			subs[key] = cancel
			a.wg.Add(1)
			go func(key poolKey) {
				defer a.wg.Done()
				a.runSubscription(subCtx, key)
			}(key)
		}
		for key, cancel := range subs {
			if !want[key] {
				cancel()
				delete(subs, key)
			}
		}

		select {
		case <-ctx.Done():
			a.logger.Info().Msg("evm adapter stopping")
			return ctx.Err()
		case <-updated:
		}
	}
}

// runSubscription subscribes to one pool and resubscribes with backoff
// whenever the subscription fails.
func (a *EVMAdapter) runSubscription(ctx context.Context, key poolKey) {
	log := a.logger.With().Str("chain", string(key.chain)).Str("pool", key.pool.Hex()).Logger()
	failures := 0
	for {
		err := a.subscribeOnce(ctx, key, &failures, log)
		if ctx.Err() != nil {
			return
		}
		failures++
		observability.RecordSubscriptionDrop(string(key.chain))
		delay := a.backoff.Delay(failures)
		log.Warn().Err(err).Dur("backoff", delay).Msg("swap subscription lost")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (a *EVMAdapter) subscribeOnce(ctx context.Context, key poolKey, failures *int, log zerolog.Logger) error {
	logs := make(chan types.Log, logBufferSize)
	query := ethereum.FilterQuery{
		Addresses: []common.Address{key.pool},
		Topics:    [][]common.Hash{{evm.SwapTopic}},
	}
	sub, err := a.backends[key.chain].SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	*failures = 0
	log.Info().Msg("swap subscription established")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return err
		case lg := <-logs:
			if lg.Removed {
				continue
			}
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.handleLog(context.WithoutCancel(ctx), key.chain, lg)
			}()
		}
	}
}

// handleLog decodes one Swap log and processes it for every token tracked
// on its pool.
func (a *EVMAdapter) handleLog(ctx context.Context, chain domain.Chain, lg types.Log) {
	log := a.logger.With().Str("chain", string(chain)).Str("tx", lg.TxHash.Hex()).Logger()

	swap, err := evm.DecodeSwapLog(lg)
	if err != nil {
		observability.RecordDiscarded(string(chain), "undecodable")
		log.Debug().Err(err).Msg("swap log discarded")
		return
	}

	reader := a.readers[chain]
	callCtx, cancel := context.WithTimeout(ctx, a.rpcTimeout)
	defer cancel()

	start := time.Now()
	pool, err := reader.Pool(callCtx, swap.Pool)
	observability.RecordRPCLatency(string(chain), "pool_metadata", time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Msg("read pool metadata failed")
		return
	}

	ts, err := reader.BlockTime(callCtx, swap.BlockNumber)
	if err != nil {
		log.Debug().Err(err).Msg("block time unavailable, using receive time")
		ts = time.Now().UTC()
	}

	for _, token := range a.tokens.Chain(chain) {
		if !common.IsHexAddress(token.PoolAddress) || common.HexToAddress(token.PoolAddress) != swap.Pool {
			continue
		}
		raw := &classify.EVMSwap{Chain: chain, Log: swap, Pool: pool, Timestamp: ts}
		if _, err := a.processor.Process(ctx, token, raw); err != nil {
			log.Error().Err(err).Int64("token", token.ID).Msg("process swap failed")
		}
	}
}
