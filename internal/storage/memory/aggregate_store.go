package memory

import (
	"context"
	"sync"
	"time"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

type aggregateEntry struct {
	agg     domain.DailyAggregate
	buyers  map[string]struct{}
	sellers map[string]struct{}
}

// AggregateStore is an in-memory implementation of storage.AggregateStore.
type AggregateStore struct {
	mu   sync.Mutex
	data map[string]*aggregateEntry // keyed by day|chain|token
}

// NewAggregateStore creates a new in-memory aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		data: make(map[string]*aggregateEntry),
	}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

func aggregateKey(day time.Time, chain domain.Chain, tokenAddress string) string {
	return day.Format("2006-01-02") + "|" + string(chain) + "|" + tokenAddress
}

// Increment applies a transaction to the day's aggregate.
func (s *AggregateStore) Increment(_ context.Context, tokenAddress string, tx *domain.Transaction) error {
	if tx == nil || tokenAddress == "" || !tx.Direction.IsValid() {
		return storage.ErrInvalidInput
	}

	day := domain.DayOf(tx.Timestamp)
	key := aggregateKey(day, tx.Chain, tokenAddress)
	wallet := domain.NormalizeAddress(tx.Chain, tx.Wallet)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		e = &aggregateEntry{
			agg: domain.DailyAggregate{
				Date:         day,
				Chain:        tx.Chain,
				TokenAddress: tokenAddress,
			},
			buyers:  make(map[string]struct{}),
			sellers: make(map[string]struct{}),
		}
		s.data[key] = e
	}

	switch tx.Direction {
	case domain.DirectionBuy:
		e.agg.BuyCount++
		e.buyers[wallet] = struct{}{}
		e.agg.UniqueBuyers = int64(len(e.buyers))
	case domain.DirectionSell:
		e.agg.SellCount++
		e.sellers[wallet] = struct{}{}
		e.agg.UniqueSellers = int64(len(e.sellers))
	}
	if tx.USDValue.Valid {
		e.agg.VolumeUSD = e.agg.VolumeUSD.Add(tx.USDValue.Decimal)
	}
	return nil
}

// Get returns the aggregate for (day, chain, tokenAddress).
func (s *AggregateStore) Get(_ context.Context, day time.Time, chain domain.Chain, tokenAddress string) (*domain.DailyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[aggregateKey(domain.DayOf(day), chain, tokenAddress)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := e.agg
	return &copy, nil
}
