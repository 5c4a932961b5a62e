package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// AggregateStore implements storage.AggregateStore on a ClickHouse
// swap_activity table. Rows are appended per transaction and daily
// aggregates are computed at read time.
type AggregateStore struct {
	conn *Conn
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(conn *Conn) *AggregateStore {
	return &AggregateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

// Increment appends one activity row. ReplacingMergeTree collapses
// repeated rows for the same tx_hash, and reads use FINAL.
func (s *AggregateStore) Increment(ctx context.Context, tokenAddress string, tx *domain.Transaction) error {
	if tx == nil || tokenAddress == "" || !tx.Direction.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swap_activity (
			date, chain, token_address, tx_hash, wallet, direction, usd_value, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var usd *decimal.Decimal
	if tx.USDValue.Valid {
		v := tx.USDValue.Decimal
		usd = &v
	}

	err := s.conn.Exec(ctx, query,
		domain.DayOf(tx.Timestamp),
		string(tx.Chain),
		tokenAddress,
		tx.TxHash,
		domain.NormalizeAddress(tx.Chain, tx.Wallet),
		string(tx.Direction),
		usd,
		tx.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert swap activity: %w", err)
	}
	return nil
}

// Get returns the aggregate for (day, chain, tokenAddress).
func (s *AggregateStore) Get(ctx context.Context, day time.Time, chain domain.Chain, tokenAddress string) (*domain.DailyAggregate, error) {
	query := `
		SELECT
			count(),
			countIf(direction = 'buy'),
			countIf(direction = 'sell'),
			ifNull(toString(sum(usd_value)), '0'),
			uniqExactIf(wallet, direction = 'buy'),
			uniqExactIf(wallet, direction = 'sell')
		FROM swap_activity FINAL
		WHERE date = ? AND chain = ? AND token_address = ?
	`

	var (
		total, buys, sells, buyers, sellers uint64
		volume                              string
	)

	d := domain.DayOf(day)
	row := s.conn.QueryRow(ctx, query, d, string(chain), tokenAddress)
	if err := row.Scan(&total, &buys, &sells, &volume, &buyers, &sellers); err != nil {
		return nil, fmt.Errorf("query daily aggregate: %w", err)
	}
	if total == 0 {
		return nil, storage.ErrNotFound
	}

	vol, err := decimal.NewFromString(volume)
	if err != nil {
		return nil, fmt.Errorf("parse volume %q: %w", volume, err)
	}

	return &domain.DailyAggregate{
		Date:          d,
		Chain:         chain,
		TokenAddress:  tokenAddress,
		BuyCount:      int64(buys),
		SellCount:     int64(sells),
		VolumeUSD:     vol,
		UniqueBuyers:  int64(buyers),
		UniqueSellers: int64(sellers),
	}, nil
}
