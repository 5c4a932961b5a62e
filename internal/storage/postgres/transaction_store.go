package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	id, token_id, chain, tx_hash, wallet, direction,
	token_amount::text, native_amount::text, usd_value::text,
	timestamp, block_number, alert_sent, created_at
`

// Insert adds a new transaction. Returns ErrDuplicateKey if (chain, tx_hash) exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			token_id, chain, tx_hash, wallet, direction,
			token_amount, native_amount, usd_value, timestamp, block_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query,
		tx.TokenID,
		tx.Chain,
		tx.TxHash,
		tx.Wallet,
		tx.Direction,
		numericArg(tx.TokenAmount),
		numericArg(tx.NativeAmount),
		nullNumericArg(tx.USDValue),
		tx.Timestamp,
		int64(tx.BlockNumber),
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by ID.
func (s *TransactionStore) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// GetByHash retrieves a transaction by (chain, tx_hash).
func (s *TransactionStore) GetByHash(ctx context.Context, chain domain.Chain, txHash string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE chain = $1 AND tx_hash = $2`
	return s.getOne(ctx, query, chain, txHash)
}

func (s *TransactionStore) getOne(ctx context.Context, query string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// Exists reports whether (chain, tx_hash) is recorded.
func (s *TransactionStore) Exists(ctx context.Context, chain domain.Chain, txHash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE chain = $1 AND tx_hash = $2)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, chain, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction exists: %w", err)
	}
	return exists, nil
}

// MarkAlertSent flips alert_sent if currently false.
func (s *TransactionStore) MarkAlertSent(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE transactions SET alert_sent = TRUE WHERE id = $1 AND NOT alert_sent`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark alert sent: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "already sent" from "no such row".
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction exists: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

// ListByToken returns the most recent transactions for a token, newest first.
func (s *TransactionStore) ListByToken(ctx context.Context, tokenID int64, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE token_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT NULLIF($2, 0)
	`

	rows, err := s.pool.Query(ctx, query, tokenID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                   domain.Transaction
		tokenAmount, native  string
		usd                  *string
		blockNumber          int64
	)

	err := row.Scan(
		&tx.ID, &tx.TokenID, &tx.Chain, &tx.TxHash, &tx.Wallet, &tx.Direction,
		&tokenAmount, &native, &usd,
		&tx.Timestamp, &blockNumber, &tx.AlertSent, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.BlockNumber = uint64(blockNumber)
	if tx.TokenAmount, err = parseNumeric(tokenAmount); err != nil {
		return nil, err
	}
	if tx.NativeAmount, err = parseNumeric(native); err != nil {
		return nil, err
	}
	if tx.USDValue, err = parseNullNumeric(usd); err != nil {
		return nil, err
	}
	return &tx, nil
}
