package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	id, chain, address, pool_address, symbol, channel_id,
	min_amount::text, min_amount_usd::text, whale_threshold_usd::text,
	emoji_tiers, buttons, media, mev_filter, active, created_at, updated_at
`

// Insert adds a new token. Returns ErrDuplicateKey if an active duplicate exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.TrackedToken) error {
	tiers, buttons, media, err := encodeDecoration(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tracked_tokens (
			chain, address, pool_address, symbol, channel_id,
			min_amount, min_amount_usd, whale_threshold_usd,
			emoji_tiers, buttons, media, mev_filter
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, active, created_at, updated_at
	`

	err = s.pool.QueryRow(ctx, query,
		t.Chain,
		t.Address,
		t.PoolAddress,
		t.Symbol,
		t.ChannelID,
		numericArg(t.MinAmount),
		numericArg(t.MinAmountUSD),
		numericArg(t.WhaleThresholdUSD),
		tiers,
		buttons,
		media,
		t.MEVFilter,
	).Scan(&t.ID, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tracked token: %w", err)
	}
	return nil
}

// GetByID retrieves a token by ID.
func (s *TokenStore) GetByID(ctx context.Context, id int64) (*domain.TrackedToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM tracked_tokens WHERE id = $1`

	t, err := scanToken(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tracked token: %w", err)
	}
	return t, nil
}

// Deactivate marks a token inactive.
func (s *TokenStore) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE tracked_tokens SET active = FALSE, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate tracked token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListActive returns active tokens ordered by ID.
func (s *TokenStore) ListActive(ctx context.Context, chain domain.Chain) ([]*domain.TrackedToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tracked_tokens
		WHERE active AND ($1 = '' OR chain = $1)
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(chain))
	if err != nil {
		return nil, fmt.Errorf("query tracked tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.TrackedToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked tokens: %w", err)
	}
	return result, nil
}

func encodeDecoration(t *domain.TrackedToken) (tiers, buttons, media []byte, err error) {
	if tiers, err = json.Marshal(nonNil(t.EmojiTiers)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode emoji tiers: %w", err)
	}
	if buttons, err = json.Marshal(nonNil(t.Buttons)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode buttons: %w", err)
	}
	if t.Media != nil {
		if media, err = json.Marshal(t.Media); err != nil {
			return nil, nil, nil, fmt.Errorf("encode media: %w", err)
		}
	}
	return tiers, buttons, media, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanToken(row pgx.Row) (*domain.TrackedToken, error) {
	var (
		t                      domain.TrackedToken
		minAmount, minUSD, whl string
		tiers, buttons, media  []byte
	)

	err := row.Scan(
		&t.ID, &t.Chain, &t.Address, &t.PoolAddress, &t.Symbol, &t.ChannelID,
		&minAmount, &minUSD, &whl,
		&tiers, &buttons, &media, &t.MEVFilter, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.MinAmount, err = parseNumeric(minAmount); err != nil {
		return nil, err
	}
	if t.MinAmountUSD, err = parseNumeric(minUSD); err != nil {
		return nil, err
	}
	if t.WhaleThresholdUSD, err = parseNumeric(whl); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tiers, &t.EmojiTiers); err != nil {
		return nil, fmt.Errorf("decode emoji tiers: %w", err)
	}
	if err := json.Unmarshal(buttons, &t.Buttons); err != nil {
		return nil, fmt.Errorf("decode buttons: %w", err)
	}
	if len(media) > 0 {
		t.Media = &domain.Media{}
		if err := json.Unmarshal(media, t.Media); err != nil {
			return nil, fmt.Errorf("decode media: %w", err)
		}
	}
	return &t, nil
}
