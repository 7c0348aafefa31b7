// Package price implements the asset-to-USD price-quote capability against
// the Jupiter price API. Assets are identified by mint address; SOL uses
// the wrapped-SOL mint.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// DefaultBaseURL is the Jupiter price API endpoint.
const DefaultBaseURL = "https://lite-api.jup.ag/price/v2"

// Client implements whiskypay.PriceQuoter.
type Client struct {
	// BaseURL is the price API endpoint. If empty, DefaultBaseURL is used.
	BaseURL string

	// HTTPClient is the underlying client. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Retry is the retry policy for quote requests.
	Retry retry.Config

	// Timeout bounds each attempt (default 10s).
	Timeout time.Duration
}

var _ whiskypay.PriceQuoter = (*Client)(nil)

// USDPrice returns the USD price of the asset identified by mint. A missing
// or non-positive quote surfaces whiskypay.ErrPriceUnavailable.
func (c *Client) USDPrice(ctx context.Context, mint string) (float64, error) {
	return retry.WithRetry(ctx, c.Retry, nil, func() (float64, error) {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		endpoint := c.base() + "?ids=" + url.QueryEscape(mint)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", whiskypay.ErrNetwork, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return 0, retryOn5xx(resp.StatusCode)
		}

		var parsed struct {
			Data map[string]struct {
				Price string `json:"price"`
			} `json:"data"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
			return 0, fmt.Errorf("decode price response: %w", err)
		}

		entry, ok := parsed.Data[mint]
		if !ok {
			return 0, retry.Permanent(fmt.Errorf("%w: no quote for %s", whiskypay.ErrPriceUnavailable, mint))
		}
		quote, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil || quote <= 0 {
			return 0, retry.Permanent(fmt.Errorf("%w: bad quote %q", whiskypay.ErrPriceUnavailable, entry.Price))
		}
		return quote, nil
	})
}

// retryOn5xx marks client errors permanent and server errors retryable.
func retryOn5xx(status int) error {
	err := fmt.Errorf("%w: price API status %d", whiskypay.ErrPriceUnavailable, status)
	if status >= 500 || status == http.StatusTooManyRequests {
		return err
	}
	return retry.Permanent(err)
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
