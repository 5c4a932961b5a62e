package postgres

import (
	"context"
	"fmt"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// BlacklistStore implements storage.BlacklistStore using PostgreSQL.
type BlacklistStore struct {
	pool *Pool
}

// NewBlacklistStore creates a new BlacklistStore.
func NewBlacklistStore(pool *Pool) *BlacklistStore {
	return &BlacklistStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BlacklistStore = (*BlacklistStore)(nil)

// Add inserts an entry. Returns ErrDuplicateKey if (chain, wallet) exists.
func (s *BlacklistStore) Add(ctx context.Context, e *domain.BlacklistEntry) error {
	if e == nil || e.Wallet == "" || (e.Chain != domain.ChainAny && !e.Chain.IsValid()) {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_blacklist (chain, wallet, reason)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query, e.Chain, domain.NormalizeAddress(e.Chain, e.Wallet), e.Reason).Scan(&e.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}

// Remove deletes an entry.
func (s *BlacklistStore) Remove(ctx context.Context, chain domain.Chain, wallet string) error {
	query := `DELETE FROM wallet_blacklist WHERE chain = $1 AND wallet = $2`

	tag, err := s.pool.Exec(ctx, query, chain, domain.NormalizeAddress(chain, wallet))
	if err != nil {
		return fmt.Errorf("delete blacklist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Contains reports whether wallet is blacklisted on chain or globally.
// Wildcard rows keep their casing, so EVM lookups compare them lowercased.
func (s *BlacklistStore) Contains(ctx context.Context, chain domain.Chain, wallet string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM wallet_blacklist
			WHERE (chain = $1 AND wallet = $2)
			   OR (chain = '*' AND wallet = $2)
		)
	`
	if chain.Family() == domain.FamilyEVM {
		query = `
			SELECT EXISTS(
				SELECT 1 FROM wallet_blacklist
				WHERE (chain = $1 AND wallet = $2)
				   OR (chain = '*' AND lower(wallet) = $2)
			)
		`
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, query, chain, domain.NormalizeAddress(chain, wallet)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return exists, nil
}

// List returns all entries ordered by creation time.
func (s *BlacklistStore) List(ctx context.Context) ([]*domain.BlacklistEntry, error) {
	query := `SELECT chain, wallet, reason, created_at FROM wallet_blacklist ORDER BY created_at, wallet`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer rows.Close()

	var result []*domain.BlacklistEntry
	for rows.Next() {
		var e domain.BlacklistEntry
		if err := rows.Scan(&e.Chain, &e.Wallet, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist: %w", err)
	}
	return result, nil
}
