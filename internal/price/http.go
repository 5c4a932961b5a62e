package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultTimeout bounds every outbound price request.
const DefaultTimeout = 5 * time.Second

// ErrNoPrice is returned when a source has no quote for the asset.
var ErrNoPrice = errors.New("no price available")

func newHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		Name:                "safeguard-bot",
		MaxConnsPerHost:     32,
		ReadTimeout:         DefaultTimeout,
		WriteTimeout:        DefaultTimeout,
		MaxIdleConnDuration: time.Minute,
	}
}

// getJSON performs a GET and decodes a JSON body into out. The effective
// timeout is the smaller of timeout and the context deadline.
func getJSON(ctx context.Context, client *fasthttp.Client, url string, timeout time.Duration, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return fmt.Errorf("get %s: unexpected status code: %d", url, status)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
