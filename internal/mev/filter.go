// Package mev flags wallets that must never trigger alerts, such as known
// MEV bots, backed by the wallet blacklist and a TTL cache.
package mev

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"safeguard-bot/internal/cache"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/storage"
)

// DefaultTTL is how long a blacklist lookup result is cached.
const DefaultTTL = 5 * time.Minute

var (
	hitValue  = []byte{1}
	missValue = []byte{0}
)

// FilterOptions configures a Filter.
type FilterOptions struct {
	Store  storage.BlacklistStore
	Cache  cache.Cache // nil uses an in-process cache
	TTL    time.Duration
	Logger *zerolog.Logger
}

// Filter answers whether a wallet is blacklisted on a chain.
type Filter struct {
	store  storage.BlacklistStore
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewFilter creates a Filter.
func NewFilter(opts FilterOptions) *Filter {
	f := &Filter{
		store:  opts.Store,
		cache:  opts.Cache,
		ttl:    opts.TTL,
		logger: zerolog.Nop(),
	}
	if f.cache == nil {
		f.cache = cache.NewMemory()
	}
	if f.ttl <= 0 {
		f.ttl = DefaultTTL
	}
	if opts.Logger != nil {
		f.logger = opts.Logger.With().Str("component", "mev").Logger()
	}
	return f
}

func cacheKey(chain domain.Chain, wallet string) string {
	return "mev:" + string(chain) + ":" + domain.NormalizeAddress(chain, wallet)
}

// IsBlacklisted reports whether wallet is blacklisted on chain or on every chain.
func (f *Filter) IsBlacklisted(ctx context.Context, wallet string, chain domain.Chain) (bool, error) {
	key := cacheKey(chain, wallet)
	if v, ok, err := f.cache.Get(ctx, key); err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("blacklist cache read failed")
	} else if ok && len(v) == 1 {
		return v[0] == 1, nil
	}

	hit, err := f.store.Contains(ctx, chain, wallet)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup %s/%s: %w", chain, wallet, err)
	}

	v := missValue
	if hit {
		v = hitValue
	}
	if err := f.cache.Set(ctx, key, v, f.ttl); err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("blacklist cache write failed")
	}
	return hit, nil
}

// Invalidate drops the cached result for wallet on chain. A wildcard chain
// invalidates every supported chain.
func (f *Filter) Invalidate(ctx context.Context, wallet string, chain domain.Chain) {
	chains := []domain.Chain{chain}
	if chain == domain.ChainAny {
		chains = append([]domain.Chain{domain.ChainSolana}, domain.EVMChains...)
	}
	for _, c := range chains {
		if err := f.cache.Delete(ctx, cacheKey(c, wallet)); err != nil {
			f.logger.Warn().Err(err).Str("chain", string(c)).Msg("blacklist cache invalidate failed")
		}
	}
}
