// Package swap implements the swap-quote and swap-build capability against
// the Jupiter v6 API. Quotes are requested exact-out so the merchant always
// receives the precise settlement amount regardless of source-asset price
// movement.
package swap

import (
	"bytes"
	"context"
	"encoding/base64"
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

// DefaultBaseURL is the Jupiter v6 quote/swap API endpoint.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// DefaultSlippageBps is the allowed slippage on the source side, in basis
// points. The output side is exact.
const DefaultSlippageBps = 50

// Client implements whiskypay.SwapProvider.
type Client struct {
	// BaseURL is the swap API endpoint. If empty, DefaultBaseURL is used.
	BaseURL string

	// HTTPClient is the underlying client. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Retry is the retry policy for quote and build requests.
	Retry retry.Config

	// SlippageBps overrides DefaultSlippageBps when positive.
	SlippageBps int

	// Timeout bounds each attempt (default 15s).
	Timeout time.Duration
}

var _ whiskypay.SwapProvider = (*Client)(nil)

// SwapTransaction quotes an exact-out swap and returns the signable
// serialized transaction produced by the swap API.
func (c *Client) SwapTransaction(ctx context.Context, req whiskypay.SwapRequest) (whiskypay.SignableTransaction, error) {
	quote, err := c.quote(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.build(ctx, req, quote)
}

// quote requests an exact-out quote and returns the raw quote document,
// which the build call echoes back verbatim.
func (c *Client) quote(ctx context.Context, req whiskypay.SwapRequest) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("inputMint", req.SourceMint)
	params.Set("outputMint", req.TargetMint)
	params.Set("amount", strconv.FormatUint(req.AmountOut, 10))
	params.Set("swapMode", "ExactOut")
	params.Set("slippageBps", strconv.Itoa(c.slippageBps()))

	endpoint := c.base() + "/quote?" + params.Encode()
	body, err := c.roundTrip(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("swap quote: %w", err)
	}
	return json.RawMessage(body), nil
}

// build exchanges the quote for a serialized transaction.
func (c *Client) build(ctx context.Context, req whiskypay.SwapRequest, quote json.RawMessage) (whiskypay.SignableTransaction, error) {
	payload := map[string]interface{}{
		"quoteResponse":    quote,
		"userPublicKey":    req.UserAddress,
		"wrapAndUnwrapSol": true,
	}
	if req.DestinationTokenAccount != "" {
		payload["destinationTokenAccount"] = req.DestinationTokenAccount
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	body, err := c.roundTrip(ctx, http.MethodPost, c.base()+"/swap", data)
	if err != nil {
		return nil, fmt.Errorf("swap build: %w", err)
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	return whiskypay.SignableTransaction(raw), nil
}

// roundTrip performs one API call with the client's retry policy.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	return retry.WithRetry(ctx, c.Retry, nil, func() ([]byte, error) {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", whiskypay.ErrNetwork, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", whiskypay.ErrNetwork, err)
		}

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("swap API status %d", resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return nil, err
			}
			return nil, retry.Permanent(err)
		}
		return data, nil
	})
}

func (c *Client) slippageBps() int {
	if c.SlippageBps > 0 {
		return c.SlippageBps
	}
	return DefaultSlippageBps
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
