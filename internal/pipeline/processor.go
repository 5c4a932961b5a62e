// Package pipeline runs one raw chain event through classification,
// pricing, persistence, gating and dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/alert"
	"safeguard-bot/internal/classify"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/observability"
	"safeguard-bot/internal/publish"
)

// DefaultStageTimeout bounds each outbound stage of one event.
const DefaultStageTimeout = 15 * time.Second

// Classifier classifies raw events. *classify.Registry satisfies it.
type Classifier interface {
	Classify(raw classify.RawEvent, token *domain.TrackedToken) (*domain.SwapEvent, error)
}

// PriceResolver values swaps in USD. *price.Resolver satisfies it.
type PriceResolver interface {
	ResolveUSD(ctx context.Context, chain domain.Chain, tokenAddress string, nativeAmount decimal.Decimal, nativeSymbol string, tokenAmount *decimal.Decimal) decimal.NullDecimal
}

// Recorder persists swaps idempotently. *recorder.Recorder satisfies it.
type Recorder interface {
	Record(ctx context.Context, token *domain.TrackedToken, ev *domain.SwapEvent, usd decimal.NullDecimal) (*domain.Transaction, bool, error)
}

// Gate decides whether a transaction is alerted. *alert.Gate satisfies it.
type Gate interface {
	ShouldAlert(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction) alert.GateDecision
}

// Dispatcher delivers alerts. *alert.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction, decision alert.GateDecision) (alert.Outcome, error)
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Classifier   Classifier
	Prices       PriceResolver
	Recorder     Recorder
	Gate         Gate
	Dispatcher   Dispatcher
	Publisher    publish.Publisher // optional
	StageTimeout time.Duration
	Logger       *zerolog.Logger
}

// Result describes what happened to one event.
type Result struct {
	Event    *domain.SwapEvent
	Tx       *domain.Transaction
	Created  bool
	Decision alert.GateDecision
	Outcome  alert.Outcome
}

// Processor is the per-event pipeline shared by all chain adapters.
type Processor struct {
	classifier   Classifier
	prices       PriceResolver
	recorder     Recorder
	gate         Gate
	dispatcher   Dispatcher
	publisher    publish.Publisher
	stageTimeout time.Duration
	logger       zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	p := &Processor{
		classifier:   opts.Classifier,
		prices:       opts.Prices,
		recorder:     opts.Recorder,
		gate:         opts.Gate,
		dispatcher:   opts.Dispatcher,
		publisher:    opts.Publisher,
		stageTimeout: opts.StageTimeout,
		logger:       zerolog.Nop(),
	}
	if p.publisher == nil {
		p.publisher = publish.Nop{}
	}
	if p.stageTimeout <= 0 {
		p.stageTimeout = DefaultStageTimeout
	}
	if opts.Logger != nil {
		p.logger = opts.Logger.With().Str("component", "processor").Logger()
	}
	return p
}

// Process runs raw through the pipeline for token. Events that are not
// swaps return a nil Result and nil error. Processing continues past
// cancellation of ctx so an in-flight event is never half-applied; each
// stage carries its own timeout. Panics are recovered and returned as errors.
func (p *Processor) Process(ctx context.Context, token *domain.TrackedToken, raw classify.RawEvent) (res *Result, err error) {
	chain := string(token.Chain)
	start := time.Now()
	log := p.logger.With().Str("chain", chain).Int64("token", token.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			observability.RecordPanic(chain)
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("event processing panicked")
			res, err = nil, fmt.Errorf("panic processing event: %v", r)
		}
	}()

	ctx = context.WithoutCancel(ctx)

	ev, err := p.classifier.Classify(raw, token)
	if err != nil {
		if classify.IsDiscard(err) {
			observability.RecordDiscarded(chain, discardReason(err))
			log.Debug().Err(err).Msg("event discarded")
			return nil, nil
		}
		return nil, fmt.Errorf("classify: %w", err)
	}
	observability.RecordClassified(chain, string(ev.Direction))
	log = log.With().Str("tx", ev.TxHash).Logger()

	usd := p.resolveUSD(ctx, token, ev)

	recCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	tx, created, err := p.recorder.Record(recCtx, token, ev, usd)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("record transaction failed")
		return nil, fmt.Errorf("record: %w", err)
	}

	res = &Result{Event: ev, Tx: tx, Created: created}
	if !created {
		log.Debug().Msg("transaction already recorded")
		return res, nil
	}

	res.Decision = p.gate.ShouldAlert(ctx, token, tx)
	res.Outcome, err = p.dispatcher.Dispatch(ctx, token, tx, res.Decision)
	if err != nil {
		// Delivery failures are final for this event; the record stands.
		log.Debug().Err(err).Msg("dispatch failed")
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	if err := p.publisher.Publish(pubCtx, token, tx); err != nil {
		log.Warn().Err(err).Msg("publish transaction failed")
	}
	cancel()

	observability.RecordEventLatency(chain, time.Since(start).Seconds())
	return res, nil
}

func (p *Processor) resolveUSD(ctx context.Context, token *domain.TrackedToken, ev *domain.SwapEvent) decimal.NullDecimal {
	if p.prices == nil {
		return decimal.NullDecimal{}
	}
	priceCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	amount := ev.TokenAmount
	return p.prices.ResolveUSD(priceCtx, ev.Chain, token.Address, ev.NativeAmount, ev.Chain.NativeSymbol(), &amount)
}

func discardReason(err error) string {
	switch {
	case errors.Is(err, classify.ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, classify.ErrTokenNotInPool):
		return "token_not_in_pool"
	default:
		return "not_swap"
	}
}
