package storage

import (
	"context"
	"time"

	"safeguard-bot/internal/domain"
)

// TokenStore manages tracked tokens. Tokens are deactivated, never deleted.
type TokenStore interface {
	// Insert adds a new token and assigns its ID and timestamps.
	// Returns ErrDuplicateKey if an active token with the same
	// (chain, address, channel) exists.
	Insert(ctx context.Context, token *domain.TrackedToken) error

	// GetByID retrieves a token by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.TrackedToken, error)

	// Deactivate marks a token inactive. Returns ErrNotFound if absent.
	Deactivate(ctx context.Context, id int64) error

	// ListActive returns active tokens ordered by ID.
	// An empty chain returns tokens for every chain.
	ListActive(ctx context.Context, chain domain.Chain) ([]*domain.TrackedToken, error)
}

// TransactionStore manages classified swap transactions.
type TransactionStore interface {
	// Insert adds a new transaction and assigns its ID and CreatedAt.
	// Returns ErrDuplicateKey if (chain, tx_hash) exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)

	// GetByHash retrieves a transaction by (chain, tx_hash). Returns ErrNotFound if absent.
	GetByHash(ctx context.Context, chain domain.Chain, txHash string) (*domain.Transaction, error)

	// Exists reports whether (chain, tx_hash) is already recorded.
	Exists(ctx context.Context, chain domain.Chain, txHash string) (bool, error)

	// MarkAlertSent sets alert_sent if it is currently false.
	// Returns true only for the call that flipped the flag.
	MarkAlertSent(ctx context.Context, id int64) (bool, error)

	// ListByToken returns the most recent transactions for a token, newest first.
	ListByToken(ctx context.Context, tokenID int64, limit int) ([]*domain.Transaction, error)
}

// AggregateStore maintains per-day swap statistics.
type AggregateStore interface {
	// Increment applies one new transaction to the day's aggregate for
	// tokenAddress, creating the row on first use.
	Increment(ctx context.Context, tokenAddress string, tx *domain.Transaction) error

	// Get returns the aggregate for (day, chain, tokenAddress). Returns ErrNotFound if absent.
	Get(ctx context.Context, day time.Time, chain domain.Chain, tokenAddress string) (*domain.DailyAggregate, error)
}

// BlacklistStore manages wallets excluded from alerts.
type BlacklistStore interface {
	// Add inserts an entry. Returns ErrDuplicateKey if (chain, wallet) exists.
	Add(ctx context.Context, entry *domain.BlacklistEntry) error

	// Remove deletes an entry. Returns ErrNotFound if absent.
	Remove(ctx context.Context, chain domain.Chain, wallet string) error

	// Contains reports whether wallet is blacklisted on chain or on every chain.
	Contains(ctx context.Context, chain domain.Chain, wallet string) (bool, error)

	// List returns all entries ordered by creation time.
	List(ctx context.Context) ([]*domain.BlacklistEntry, error)
}
