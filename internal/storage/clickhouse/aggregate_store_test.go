package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

func TestAggregateStore_IncrementAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAggregateStore(conn)
	day := time.Date(2024, 7, 4, 9, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		{Chain: domain.ChainBase, TxHash: "0x1", Wallet: "0xAAA", Direction: domain.DirectionBuy, Timestamp: day, USDValue: decimal.NewNullDecimal(decimal.RequireFromString("12.5"))},
		{Chain: domain.ChainBase, TxHash: "0x2", Wallet: "0xaaa", Direction: domain.DirectionBuy, Timestamp: day, USDValue: decimal.NewNullDecimal(decimal.NewFromInt(7))},
		{Chain: domain.ChainBase, TxHash: "0x3", Wallet: "0xBBB", Direction: domain.DirectionSell, Timestamp: day},
	}
	for _, tx := range txs {
		require.NoError(t, store.Increment(ctx, "0xtoken", tx))
	}
	// Replaying a row must not double count.
	require.NoError(t, store.Increment(ctx, "0xtoken", txs[0]))

	agg, err := store.Get(ctx, day, domain.ChainBase, "0xtoken")
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.BuyCount)
	assert.Equal(t, int64(1), agg.SellCount)
	assert.Equal(t, int64(1), agg.UniqueBuyers)
	assert.Equal(t, int64(1), agg.UniqueSellers)
	assert.True(t, agg.VolumeUSD.Equal(decimal.RequireFromString("19.5")), "got %s", agg.VolumeUSD)

	_, err = store.Get(ctx, day, domain.ChainBase, "0xother")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
