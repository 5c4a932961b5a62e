package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.TrackedToken
	now    func() time.Time
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[int64]*domain.TrackedToken),
		now:  time.Now,
	}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if an active duplicate exists.
func (s *TokenStore) Insert(_ context.Context, token *domain.TrackedToken) error {
	if token == nil || token.Address == "" || !token.Chain.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data {
		if existing.Active &&
			existing.Chain == token.Chain &&
			existing.Address == token.Address &&
			existing.ChannelID == token.ChannelID {
			return storage.ErrDuplicateKey
		}
	}

	s.nextID++
	now := s.now().UTC()
	token.ID = s.nextID
	token.Active = true
	token.CreatedAt = now
	token.UpdatedAt = now

	s.data[token.ID] = token.Clone()
	return nil
}

// GetByID retrieves a token by ID.
func (s *TokenStore) GetByID(_ context.Context, id int64) (*domain.TrackedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// Deactivate marks a token inactive.
func (s *TokenStore) Deactivate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Active = false
	t.UpdatedAt = s.now().UTC()
	return nil
}

// ListActive returns active tokens ordered by ID.
func (s *TokenStore) ListActive(_ context.Context, chain domain.Chain) ([]*domain.TrackedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrackedToken
	for _, t := range s.data {
		if !t.Active {
			continue
		}
		if chain != "" && t.Chain != chain {
			continue
		}
		result = append(result, t.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
