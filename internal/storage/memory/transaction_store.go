package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Transaction
	byHash map[string]int64 // keyed by chain|tx_hash
	now    func() time.Time
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byID:   make(map[int64]*domain.Transaction),
		byHash: make(map[string]int64),
		now:    time.Now,
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

func txKey(chain domain.Chain, txHash string) string {
	return string(chain) + "|" + txHash
}

// Insert adds a new transaction. Returns ErrDuplicateKey if (chain, tx_hash) exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.TxHash == "" || !tx.Chain.IsValid() || !tx.Direction.IsValid() {
		return storage.ErrInvalidInput
	}

	key := txKey(tx.Chain, tx.TxHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	tx.ID = s.nextID
	tx.CreatedAt = s.now().UTC()

	copy := *tx
	s.byID[tx.ID] = &copy
	s.byHash[key] = tx.ID
	return nil
}

// GetByID retrieves a transaction by ID.
func (s *TransactionStore) GetByID(_ context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *tx
	return &copy, nil
}

// GetByHash retrieves a transaction by (chain, tx_hash).
func (s *TransactionStore) GetByHash(_ context.Context, chain domain.Chain, txHash string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[txKey(chain, txHash)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *s.byID[id]
	return &copy, nil
}

// Exists reports whether (chain, tx_hash) is recorded.
func (s *TransactionStore) Exists(_ context.Context, chain domain.Chain, txHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byHash[txKey(chain, txHash)]
	return ok, nil
}

// MarkAlertSent flips alert_sent if currently false.
func (s *TransactionStore) MarkAlertSent(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if tx.AlertSent {
		return false, nil
	}
	tx.AlertSent = true
	return true, nil
}

// ListByToken returns the most recent transactions for a token, newest first.
func (s *TransactionStore) ListByToken(_ context.Context, tokenID int64, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.byID {
		if tx.TokenID == tokenID {
			copy := *tx
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
