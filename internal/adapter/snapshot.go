// Package adapter turns chain activity into raw events for the pipeline.
package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/observability"
)

// DefaultRefreshInterval is how often the token snapshot reloads.
const DefaultRefreshInterval = 60 * time.Second

// TokenLister lists active tracked tokens. storage.TokenStore satisfies it.
type TokenLister interface {
	ListActive(ctx context.Context, chain domain.Chain) ([]*domain.TrackedToken, error)
}

// SnapshotOptions configures a TokenSnapshot.
type SnapshotOptions struct {
	Store    TokenLister
	Interval time.Duration
	Logger   *zerolog.Logger
}

// TokenSnapshot is a periodically refreshed copy of the active tokens.
type TokenSnapshot struct {
	store    TokenLister
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	tokens  []*domain.TrackedToken
	updated chan struct{}
}

// NewTokenSnapshot creates an empty snapshot. Call Refresh or Run to load it.
func NewTokenSnapshot(opts SnapshotOptions) *TokenSnapshot {
	s := &TokenSnapshot{
		store:    opts.Store,
		interval: opts.Interval,
		logger:   zerolog.Nop(),
		updated:  make(chan struct{}),
	}
	if s.interval <= 0 {
		s.interval = DefaultRefreshInterval
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "token_snapshot").Logger()
	}
	return s
}

// Refresh reloads active tokens from the store.
func (s *TokenSnapshot) Refresh(ctx context.Context) error {
	tokens, err := s.store.ListActive(ctx, "")
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}

	counts := make(map[domain.Chain]int)
	for _, t := range tokens {
		counts[t.Chain]++
	}
	for _, c := range append([]domain.Chain{domain.ChainSolana}, domain.EVMChains...) {
		observability.SetActiveTokens(string(c), counts[c])
	}

	s.mu.Lock()
	changed := !sameTokens(s.tokens, tokens)
	s.tokens = tokens
	if changed {
		close(s.updated)
		s.updated = make(chan struct{})
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info().Int("tokens", len(tokens)).Msg("token snapshot updated")
	}
	return nil
}

// Updated returns a channel closed at the next content change.
func (s *TokenSnapshot) Updated() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Chain returns the active tokens on c.
func (s *TokenSnapshot) Chain(c domain.Chain) []*domain.TrackedToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.TrackedToken
	for _, t := range s.tokens {
		if t.Chain == c {
			out = append(out, t)
		}
	}
	return out
}

// Family returns the active tokens whose chain belongs to f.
func (s *TokenSnapshot) Family(f domain.Family) []*domain.TrackedToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.TrackedToken
	for _, t := range s.tokens {
		if t.Chain.Family() == f {
			out = append(out, t)
		}
	}
	return out
}

// Run loads the snapshot and refreshes it on a cron schedule until ctx is done.
func (s *TokenSnapshot) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	c := cron.New()
	_, err := c.AddFunc("@every "+s.interval.String(), func() {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("token snapshot refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule token refresh: %w", err)
	}
	c.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("token snapshot started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// sameTokens compares by ID and update time.
func sameTokens(a, b []*domain.TrackedToken) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].UpdatedAt.Equal(b[i].UpdatedAt) {
			return false
		}
	}
	return true
}
