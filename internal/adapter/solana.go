package adapter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"safeguard-bot/internal/classify"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/observability"
	"safeguard-bot/internal/pipeline"
	"safeguard-bot/internal/solana"
)

// Solana poller defaults.
const (
	DefaultPollInterval   = 5 * time.Second
	DefaultSignatureLimit = 25
	DefaultRPCTimeout     = 10 * time.Second
)

// EventProcessor runs one raw event through the pipeline.
// *pipeline.Processor satisfies it.
type EventProcessor interface {
	Process(ctx context.Context, token *domain.TrackedToken, raw classify.RawEvent) (*pipeline.Result, error)
}

// TxChecker reports whether a transaction is already recorded.
// *recorder.Recorder satisfies it.
type TxChecker interface {
	Exists(ctx context.Context, chain domain.Chain, txHash string) (bool, error)
}

// SolanaOptions configures a SolanaAdapter.
type SolanaOptions struct {
	RPC            solana.RPCClient
	WS             solana.WSClient // optional; wakes the poller early
	Tokens         *TokenSnapshot
	Seen           TxChecker
	Processor      EventProcessor
	Interval       time.Duration
	SignatureLimit int
	RPCTimeout     time.Duration
	Backoff        Backoff
	Logger         *zerolog.Logger
}

// SolanaAdapter polls recent signatures of every tracked Solana mint.
type SolanaAdapter struct {
	rpc        solana.RPCClient
	ws         solana.WSClient
	tokens     *TokenSnapshot
	seen       TxChecker
	processor  EventProcessor
	interval   time.Duration
	limit      int
	rpcTimeout time.Duration
	backoff    *backoffSet
	logger     zerolog.Logger
}

// NewSolanaAdapter creates a SolanaAdapter.
func NewSolanaAdapter(opts SolanaOptions) *SolanaAdapter {
	a := &SolanaAdapter{
		rpc:        opts.RPC,
		ws:         opts.WS,
		tokens:     opts.Tokens,
		seen:       opts.Seen,
		processor:  opts.Processor,
		interval:   opts.Interval,
		limit:      opts.SignatureLimit,
		rpcTimeout: opts.RPCTimeout,
		backoff:    newBackoffSet(opts.Backoff),
		logger:     zerolog.Nop(),
	}
	if a.interval <= 0 {
		a.interval = DefaultPollInterval
	}
	if a.limit <= 0 {
		a.limit = DefaultSignatureLimit
	}
	if a.rpcTimeout <= 0 {
		a.rpcTimeout = DefaultRPCTimeout
	}
	if opts.Logger != nil {
		a.logger = opts.Logger.With().Str("component", "solana_adapter").Logger()
	}
	return a
}

// Run polls until ctx is cancelled. An event already handed to the
// processor is finished before Run returns.
func (a *SolanaAdapter) Run(ctx context.Context) error {
	wake := make(chan string, 64)
	if a.ws != nil {
		go a.watchLogs(ctx, wake)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Int("limit", a.limit).Msg("solana adapter started")
	a.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("solana adapter stopping")
			return ctx.Err()
		case <-ticker.C:
			a.PollOnce(ctx)
		case mint := <-wake:
			for _, token := range a.tokens.Chain(domain.ChainSolana) {
				if token.Address == mint {
					a.pollToken(ctx, token)
				}
			}
		}
	}
}

// PollOnce runs one polling pass over every active Solana token.
func (a *SolanaAdapter) PollOnce(ctx context.Context) {
	for _, token := range a.tokens.Chain(domain.ChainSolana) {
		if ctx.Err() != nil {
			return
		}
		a.pollToken(ctx, token)
	}
}

func (a *SolanaAdapter) pollToken(ctx context.Context, token *domain.TrackedToken) {
	key := token.Address
	if !a.backoff.Ready(key) {
		return
	}
	log := a.logger.With().Int64("token", token.ID).Str("mint", token.Address).Logger()

	sigs, err := a.signatures(ctx, token.Address)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		delay := a.backoff.Fail(key)
		log.Warn().Err(err).Dur("backoff", delay).Msg("fetch signatures failed")
		return
	}
	a.backoff.Reset(key)

	// Oldest first so alerts follow chain order.
	for i := len(sigs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		sig := sigs[i]
		if sig.Err != nil {
			continue
		}
		a.handleSignature(ctx, token, sig.Signature, log)
	}
}

func (a *SolanaAdapter) handleSignature(ctx context.Context, token *domain.TrackedToken, signature string, log zerolog.Logger) {
	log = log.With().Str("tx", signature).Logger()

	seen, err := a.seen.Exists(ctx, domain.ChainSolana, signature)
	if err != nil {
		log.Warn().Err(err).Msg("dedup lookup failed")
		return
	}
	if seen {
		return
	}

	tx, err := a.transaction(ctx, signature)
	if err != nil {
		log.Warn().Err(err).Msg("fetch transaction failed")
		return
	}
	if tx == nil {
		log.Debug().Msg("transaction not yet available")
		return
	}
	if tx.Failed() {
		return
	}

	if _, err := a.processor.Process(ctx, token, &classify.SolanaTx{Tx: tx}); err != nil {
		log.Error().Err(err).Msg("process transaction failed")
	}
}

func (a *SolanaAdapter) signatures(ctx context.Context, address string) ([]solana.SignatureInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.rpcTimeout)
	defer cancel()
	start := time.Now()
	sigs, err := a.rpc.GetSignaturesForAddress(callCtx, address, &solana.SignaturesOpts{Limit: a.limit})
	observability.RecordRPCLatency(string(domain.ChainSolana), "getSignaturesForAddress", time.Since(start).Seconds())
	return sigs, err
}

func (a *SolanaAdapter) transaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.rpcTimeout)
	defer cancel()
	start := time.Now()
	tx, err := a.rpc.GetTransaction(callCtx, signature)
	observability.RecordRPCLatency(string(domain.ChainSolana), "getTransaction", time.Since(start).Seconds())
	return tx, err
}

// watchLogs keeps one logsSubscribe per tracked mint and forwards a wake-up
// for every notification. Subscriptions for removed mints stay open and
// their wake-ups match no token.
func (a *SolanaAdapter) watchLogs(ctx context.Context, wake chan<- string) {
	subscribed := make(map[string]bool)
	for {
		updated := a.tokens.Updated()
		for _, token := range a.tokens.Chain(domain.ChainSolana) {
			if subscribed[token.Address] {
				continue
			}
			ch, err := a.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{token.Address}})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				a.logger.Warn().Err(err).Str("mint", token.Address).Msg("logs subscribe failed, polling only")
				continue
			}
			subscribed[token.Address] = true
			go forwardLogs(ctx, token.Address, ch, wake)
		}

		select {
		case <-ctx.Done():
			return
		case <-updated:
		}
	}
}

func forwardLogs(ctx context.Context, mint string, ch <-chan solana.LogNotification, wake chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if n.Err != nil {
				continue
			}
			select {
			case wake <- mint:
			default:
			}
		}
	}
}
