package price

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

// DefaultCoinGeckoURL is the public CoinGecko API base.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// coinIDs maps native symbols to CoinGecko coin IDs.
var coinIDs = map[string]string{
	"SOL": "solana",
	"ETH": "ethereum",
	"BNB": "binancecoin",
}

// CoinGecko quotes native assets from the CoinGecko simple price endpoint.
type CoinGecko struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
}

// NewCoinGecko creates a CoinGecko source. An empty baseURL uses the public API.
func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CoinGecko{client: newHTTPClient(), baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// NativePriceUSD returns the USD price of a native asset symbol.
func (c *CoinGecko) NativePriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id, ok := coinIDs[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown native symbol %q", ErrNoPrice, symbol)
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(id))
	var body map[string]map[string]decimal.Decimal
	if err := getJSON(ctx, c.client, u, c.timeout, &body); err != nil {
		return decimal.Zero, err
	}

	p, ok := body[id]["usd"]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return p, nil
}
