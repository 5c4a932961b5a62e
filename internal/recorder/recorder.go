// Package recorder persists classified swaps exactly once and keeps the
// daily aggregates current.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/observability"
	"safeguard-bot/internal/storage"
)

// Options configures a Recorder.
type Options struct {
	Transactions storage.TransactionStore
	Aggregates   storage.AggregateStore // optional
	Logger       *zerolog.Logger
}

// Recorder is the transaction store facade used by the pipeline.
type Recorder struct {
	txs    storage.TransactionStore
	aggs   storage.AggregateStore
	logger zerolog.Logger
}

// New creates a Recorder.
func New(opts Options) *Recorder {
	r := &Recorder{
		txs:    opts.Transactions,
		aggs:   opts.Aggregates,
		logger: zerolog.Nop(),
	}
	if opts.Logger != nil {
		r.logger = opts.Logger.With().Str("component", "recorder").Logger()
	}
	return r
}

// Record persists ev for token. It returns the stored transaction and
// whether this call created it. A concurrent or earlier insert of the same
// (chain, tx hash) yields the existing row with created=false.
func (r *Recorder) Record(ctx context.Context, token *domain.TrackedToken, ev *domain.SwapEvent, usd decimal.NullDecimal) (*domain.Transaction, bool, error) {
	tx := domain.NewTransaction(token.ID, ev, usd)

	start := time.Now()
	err := r.txs.Insert(ctx, tx)
	observability.RecordDBQuery("transactions", "insert", time.Since(start).Seconds(), ignoreDuplicate(err))

	if errors.Is(err, storage.ErrDuplicateKey) {
		existing, getErr := r.txs.GetByHash(ctx, ev.Chain, ev.TxHash)
		if getErr != nil {
			return nil, false, fmt.Errorf("fetch recorded %s/%s: %w", ev.Chain, ev.TxHash, getErr)
		}
		observability.RecordTransaction(string(ev.Chain), false)
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert transaction %s/%s: %w", ev.Chain, ev.TxHash, err)
	}
	observability.RecordTransaction(string(ev.Chain), true)

	if r.aggs != nil {
		if err := r.aggs.Increment(ctx, token.Address, tx); err != nil {
			observability.RecordAggregateError(string(ev.Chain))
			r.logger.Error().Err(err).
				Str("chain", string(ev.Chain)).
				Str("tx", ev.TxHash).
				Msg("daily aggregate update failed")
		}
	}

	return tx, true, nil
}

// Exists reports whether (chain, txHash) is already recorded.
func (r *Recorder) Exists(ctx context.Context, chain domain.Chain, txHash string) (bool, error) {
	return r.txs.Exists(ctx, chain, txHash)
}

// MarkAlertSent flips the alert flag; true only for the call that flipped it.
func (r *Recorder) MarkAlertSent(ctx context.Context, id int64) (bool, error) {
	return r.txs.MarkAlertSent(ctx, id)
}

// Get returns a recorded transaction by ID.
func (r *Recorder) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.txs.GetByID(ctx, id)
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}
