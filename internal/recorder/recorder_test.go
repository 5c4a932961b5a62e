package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage/memory"
)

func testToken() *domain.TrackedToken {
	return &domain.TrackedToken{ID: 3, Chain: domain.ChainSolana, Address: "Mint111", ChannelID: -100}
}

func testEvent(hash string, dir domain.Direction, wallet string) *domain.SwapEvent {
	return &domain.SwapEvent{
		Chain:        domain.ChainSolana,
		TxHash:       hash,
		Wallet:       wallet,
		Direction:    dir,
		TokenAmount:  decimal.NewFromInt(1000),
		NativeAmount: decimal.RequireFromString("2.5"),
		BlockNumber:  99,
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type failingAggregates struct{ calls int }

func (f *failingAggregates) Increment(context.Context, string, *domain.Transaction) error {
	f.calls++
	return errors.New("aggregate db down")
}

func (f *failingAggregates) Get(context.Context, time.Time, domain.Chain, string) (*domain.DailyAggregate, error) {
	return nil, errors.New("not implemented")
}

func TestRecord_CreatesAndAggregates(t *testing.T) {
	ctx := context.Background()
	aggs := memory.NewAggregateStore()
	r := New(Options{Transactions: memory.NewTransactionStore(), Aggregates: aggs})

	usd := decimal.NewNullDecimal(decimal.NewFromInt(375))
	tx, created, err := r.Record(ctx, testToken(), testEvent("sig1", domain.DirectionBuy, "W1"), usd)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, tx.ID)
	assert.Equal(t, int64(3), tx.TokenID)
	assert.False(t, tx.AlertSent)

	agg, err := aggs.Get(ctx, domain.DayOf(tx.Timestamp), domain.ChainSolana, "Mint111")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.BuyCount)
	assert.Equal(t, int64(1), agg.UniqueBuyers)
	assert.True(t, decimal.NewFromInt(375).Equal(agg.VolumeUSD))
}

func TestRecord_DuplicateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	aggs := memory.NewAggregateStore()
	r := New(Options{Transactions: memory.NewTransactionStore(), Aggregates: aggs})

	first, created, err := r.Record(ctx, testToken(), testEvent("sig1", domain.DirectionBuy, "W1"), decimal.NullDecimal{})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := r.Record(ctx, testToken(), testEvent("sig1", domain.DirectionBuy, "W1"), decimal.NullDecimal{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	agg, err := aggs.Get(ctx, domain.DayOf(first.Timestamp), domain.ChainSolana, "Mint111")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.BuyCount, "duplicate must not be aggregated twice")
}

func TestRecord_ConcurrentSameHash(t *testing.T) {
	ctx := context.Background()
	txs := memory.NewTransactionStore()
	r := New(Options{Transactions: txs, Aggregates: memory.NewAggregateStore()})

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[int64]struct{}{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, ok, err := r.Record(ctx, testToken(), testEvent("race", domain.DirectionBuy, "W1"), decimal.NullDecimal{})
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[tx.ID] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	list, err := txs.ListByToken(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecord_AggregateFailureKeepsTransaction(t *testing.T) {
	ctx := context.Background()
	txs := memory.NewTransactionStore()
	aggs := &failingAggregates{}
	r := New(Options{Transactions: txs, Aggregates: aggs})

	tx, created, err := r.Record(ctx, testToken(), testEvent("sig9", domain.DirectionSell, "W2"), decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, aggs.calls)

	ok, err := r.Exists(ctx, domain.ChainSolana, "sig9")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionSell, got.Direction)
}

func TestMarkAlertSent_Once(t *testing.T) {
	ctx := context.Background()
	r := New(Options{Transactions: memory.NewTransactionStore()})

	tx, _, err := r.Record(ctx, testToken(), testEvent("sig1", domain.DirectionBuy, "W1"), decimal.NullDecimal{})
	require.NoError(t, err)

	flipped, err := r.MarkAlertSent(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = r.MarkAlertSent(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
}
