package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"safeguard-bot/internal/domain"
)

// DefaultDexScreenerURL is the public DexScreener API base.
const DefaultDexScreenerURL = "https://api.dexscreener.com"

type dexTokensResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID   string `json:"chainId"`
	PriceUSD  string `json:"priceUsd"`
	BaseToken struct {
		Address string `json:"address"`
	} `json:"baseToken"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// DexScreener quotes tokens from the deepest DexScreener pair on their chain.
type DexScreener struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
}

// NewDexScreener creates a DexScreener source. An empty baseURL uses the public API.
func NewDexScreener(baseURL string, timeout time.Duration) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DexScreener{client: newHTTPClient(), baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// TokenPriceUSD returns the USD unit price of a token.
func (d *DexScreener) TokenPriceUSD(ctx context.Context, chain domain.Chain, address string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, address)
	var body dexTokensResponse
	if err := getJSON(ctx, d.client, u, d.timeout, &body); err != nil {
		return decimal.Zero, err
	}

	want := domain.NormalizeAddress(chain, address)
	var (
		best      decimal.Decimal
		bestDepth = -1.0
	)
	for _, p := range body.Pairs {
		if p.ChainID != string(chain) || domain.NormalizeAddress(chain, p.BaseToken.Address) != want {
			continue
		}
		price, err := decimal.NewFromString(p.PriceUSD)
		if err != nil || !price.IsPositive() {
			continue
		}
		if p.Liquidity.USD > bestDepth {
			best, bestDepth = price, p.Liquidity.USD
		}
	}
	if bestDepth < 0 {
		return decimal.Zero, fmt.Errorf("%w: %s %s", ErrNoPrice, chain, address)
	}
	return best, nil
}
