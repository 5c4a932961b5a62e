package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// AggregateStore implements storage.AggregateStore using PostgreSQL.
type AggregateStore struct {
	pool *Pool
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(pool *Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

// Increment applies a transaction to the day's aggregate inside one DB transaction.
func (s *AggregateStore) Increment(ctx context.Context, tokenAddress string, tx *domain.Transaction) error {
	if tx == nil || tokenAddress == "" || !tx.Direction.IsValid() {
		return storage.ErrInvalidInput
	}

	day := domain.DayOf(tx.Timestamp)
	wallet := domain.NormalizeAddress(tx.Chain, tx.Wallet)

	walletQuery := `
		INSERT INTO daily_wallets (date, chain, token_address, direction, wallet)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`

	aggQuery := `
		INSERT INTO daily_aggregates (
			date, chain, token_address, buy_count, sell_count, volume_usd, unique_buyers, unique_sellers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date, chain, token_address) DO UPDATE SET
			buy_count      = daily_aggregates.buy_count + EXCLUDED.buy_count,
			sell_count     = daily_aggregates.sell_count + EXCLUDED.sell_count,
			volume_usd     = daily_aggregates.volume_usd + EXCLUDED.volume_usd,
			unique_buyers  = daily_aggregates.unique_buyers + EXCLUDED.unique_buyers,
			unique_sellers = daily_aggregates.unique_sellers + EXCLUDED.unique_sellers
	`

	return s.pool.inTx(ctx, func(dbtx pgx.Tx) error {
		tag, err := dbtx.Exec(ctx, walletQuery, day, tx.Chain, tokenAddress, tx.Direction, wallet)
		if err != nil {
			return fmt.Errorf("insert daily wallet: %w", err)
		}
		newWallet := tag.RowsAffected()

		var buys, sells, newBuyers, newSellers int64
		if tx.Direction == domain.DirectionBuy {
			buys, newBuyers = 1, newWallet
		} else {
			sells, newSellers = 1, newWallet
		}

		volume := "0"
		if tx.USDValue.Valid {
			volume = tx.USDValue.Decimal.String()
		}

		if _, err := dbtx.Exec(ctx, aggQuery,
			day, tx.Chain, tokenAddress, buys, sells, volume, newBuyers, newSellers,
		); err != nil {
			return fmt.Errorf("upsert daily aggregate: %w", err)
		}
		return nil
	})
}

// Get returns the aggregate for (day, chain, tokenAddress).
func (s *AggregateStore) Get(ctx context.Context, day time.Time, chain domain.Chain, tokenAddress string) (*domain.DailyAggregate, error) {
	query := `
		SELECT date, chain, token_address, buy_count, sell_count, volume_usd::text, unique_buyers, unique_sellers
		FROM daily_aggregates
		WHERE date = $1 AND chain = $2 AND token_address = $3
	`

	var (
		agg    domain.DailyAggregate
		volume string
	)
	err := s.pool.QueryRow(ctx, query, domain.DayOf(day), chain, tokenAddress).Scan(
		&agg.Date, &agg.Chain, &agg.TokenAddress,
		&agg.BuyCount, &agg.SellCount, &volume, &agg.UniqueBuyers, &agg.UniqueSellers,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get daily aggregate: %w", err)
	}

	if agg.VolumeUSD, err = parseNumeric(volume); err != nil {
		return nil, err
	}
	agg.Date = agg.Date.UTC()
	return &agg, nil
}
