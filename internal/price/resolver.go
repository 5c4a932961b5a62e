// Package price converts swap amounts to USD using DEX and market-data
// quotes behind a TTL cache.
package price

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/cache"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/observability"
)

// DefaultTTL is how long a quote may be served from cache.
const DefaultTTL = 60 * time.Second

// NativeSource quotes native chain assets by symbol.
type NativeSource interface {
	NativePriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// TokenSource quotes tokens by chain and address.
type TokenSource interface {
	TokenPriceUSD(ctx context.Context, chain domain.Chain, address string) (decimal.Decimal, error)
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Native  NativeSource
	Token   TokenSource // optional
	Cache   cache.Cache // nil uses an in-process cache
	TTL     time.Duration
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Resolver resolves USD values for swaps.
type Resolver struct {
	native  NativeSource
	token   TokenSource
	cache   cache.Cache
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

type cachedQuote struct {
	USD       decimal.Decimal `json:"usd"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		native:  opts.Native,
		token:   opts.Token,
		cache:   opts.Cache,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	if r.cache == nil {
		r.cache = cache.NewMemory()
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if opts.Logger != nil {
		r.logger = opts.Logger.With().Str("component", "price").Logger()
	}
	return r
}

// ResolveUSD values a swap in USD. When tokenAmount is given the token's DEX
// unit price is tried first; otherwise, or on failure, the native amount is
// valued at the native asset price. The result is invalid when both fail.
func (r *Resolver) ResolveUSD(ctx context.Context, chain domain.Chain, tokenAddress string, nativeAmount decimal.Decimal, nativeSymbol string, tokenAmount *decimal.Decimal) decimal.NullDecimal {
	if tokenAmount != nil && r.token != nil && tokenAddress != "" {
		key := "price:token:" + string(chain) + ":" + domain.NormalizeAddress(chain, tokenAddress)
		unit, ok := r.quote(ctx, key, "dex", func(ctx context.Context) (decimal.Decimal, error) {
			return r.token.TokenPriceUSD(ctx, chain, tokenAddress)
		})
		if ok {
			return decimal.NewNullDecimal(tokenAmount.Mul(unit))
		}
	}

	if r.native != nil && nativeSymbol != "" {
		key := "price:native:" + nativeSymbol
		unit, ok := r.quote(ctx, key, "native", func(ctx context.Context) (decimal.Decimal, error) {
			return r.native.NativePriceUSD(ctx, nativeSymbol)
		})
		if ok {
			return decimal.NewNullDecimal(nativeAmount.Mul(unit))
		}
	}

	return decimal.NullDecimal{}
}

// quote returns a fresh cached quote or fetches and caches a new one.
func (r *Resolver) quote(ctx context.Context, key, source string, fetch func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, bool) {
	if raw, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("price cache read failed")
	} else if ok {
		var q cachedQuote
		if err := json.Unmarshal(raw, &q); err == nil && r.now().Sub(q.FetchedAt) < r.ttl {
			observability.RecordPriceLookup(source, "cache_hit")
			return q.USD, true
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	unit, err := fetch(fetchCtx)
	if err != nil {
		observability.RecordPriceLookup(source, "error")
		r.logger.Debug().Err(err).Str("source", source).Str("key", key).Msg("price lookup failed")
		return decimal.Zero, false
	}
	observability.RecordPriceLookup(source, "fetched")

	raw, err := json.Marshal(cachedQuote{USD: unit, FetchedAt: r.now()})
	if err == nil {
		if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("price cache write failed")
		}
	}
	return unit, true
}
