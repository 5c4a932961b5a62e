package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// BlacklistStore is an in-memory implementation of storage.BlacklistStore.
type BlacklistStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BlacklistEntry // keyed by chain|wallet
	now  func() time.Time
}

// NewBlacklistStore creates a new in-memory blacklist store.
func NewBlacklistStore() *BlacklistStore {
	return &BlacklistStore{
		data: make(map[string]*domain.BlacklistEntry),
		now:  time.Now,
	}
}

// Compile-time interface check.
var _ storage.BlacklistStore = (*BlacklistStore)(nil)

func blacklistKey(chain domain.Chain, wallet string) string {
	return string(chain) + "|" + domain.NormalizeAddress(chain, wallet)
}

// Add inserts an entry. Returns ErrDuplicateKey if it exists.
func (s *BlacklistStore) Add(_ context.Context, entry *domain.BlacklistEntry) error {
	if entry == nil || entry.Wallet == "" || (entry.Chain != domain.ChainAny && !entry.Chain.IsValid()) {
		return storage.ErrInvalidInput
	}

	key := blacklistKey(entry.Chain, entry.Wallet)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	entry.CreatedAt = s.now().UTC()
	copy := *entry
	s.data[key] = &copy
	return nil
}

// Remove deletes an entry.
func (s *BlacklistStore) Remove(_ context.Context, chain domain.Chain, wallet string) error {
	key := blacklistKey(chain, wallet)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// Contains reports whether wallet is blacklisted on chain or globally.
func (s *BlacklistStore) Contains(_ context.Context, chain domain.Chain, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data[blacklistKey(chain, wallet)]; ok {
		return true, nil
	}
	for _, e := range s.data {
		if e.Chain == domain.ChainAny && domain.NormalizeAddress(chain, e.Wallet) == domain.NormalizeAddress(chain, wallet) {
			return true, nil
		}
	}
	return false, nil
}

// List returns all entries ordered by creation time.
func (s *BlacklistStore) List(_ context.Context) ([]*domain.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BlacklistEntry, 0, len(s.data))
	for _, e := range s.data {
		copy := *e
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Wallet < result[j].Wallet
	})
	return result, nil
}
