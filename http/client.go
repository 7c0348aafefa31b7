// Package http implements WhiskyPay's backend API clients: a resilient
// transport with dual-endpoint fallback and bounded retry, the session
// gateway, and the payment verification gateway.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Client is the resilient HTTP transport. Failed attempts are retried with
// exponential backoff per the configured policy; within each attempt a 404
// from the primary URL, or any transport failure before a response is
// obtained, falls through to the fallback URL once.
type Client struct {
	// HTTPClient is the underlying client. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Retry is the default retry policy. Zero value means a single attempt.
	Retry retry.Config
}

// Request describes one logical backend call.
type Request struct {
	// Primary is the preferred endpoint URL.
	Primary string

	// Fallback is tried within an attempt when the primary 404s or fails at
	// the transport level. Empty disables fallback.
	Fallback string

	// Method is the HTTP method.
	Method string

	// Body, when non-nil, is JSON-encoded into the request body.
	Body interface{}

	// BodyFunc, when set, builds a fresh body before every attempt and takes
	// precedence over Body. Used for calls whose body carries per-attempt
	// parameters such as a nonce.
	BodyFunc func() interface{}

	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// Retry overrides the client's retry policy for this call.
	Retry *retry.Config

	// NoCache disables intermediary caching. Required for verification
	// calls, where a replayed stale response would be incorrect.
	NoCache bool

	// Decorate, when set, is applied to every outgoing attempt. Used to
	// attach per-attempt parameters such as a fresh nonce.
	Decorate func(*http.Request)
}

// Response is a parsed backend response.
type Response struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Body is the response body.
	Body []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Body is the response body, for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Code)
}

// Retryable reports whether the status may resolve on retry.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// retryableError reports whether an attempt failure is worth retrying:
// transport failures, timeouts, and 5xx/429 statuses.
func retryableError(err error) bool {
	if errors.Is(err, whiskypay.ErrNetwork) || errors.Is(err, whiskypay.ErrTimeout) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

// Do executes the request with fallback and retry. All attempts of one call
// share a single X-Request-Id so the backend can detect duplicates.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	cfg := c.Retry
	if req.Retry != nil {
		cfg = *req.Retry
	}

	requestID := uuid.NewString()

	return retry.WithRetry(ctx, cfg, retryableError, func() (*Response, error) {
		body, err := req.marshalBody()
		if err != nil {
			return nil, retry.Permanent(err)
		}

		resp, err := c.attempt(ctx, req, req.Primary, requestID, body)
		if req.Fallback != "" && shouldFallback(resp, err) {
			resp, err = c.attempt(ctx, req, req.Fallback, requestID, body)
		}
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
			// Terminal client errors: retrying cannot change the verdict.
			return nil, retry.Permanent(&StatusError{Code: resp.StatusCode, Body: string(resp.Body)})
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, &StatusError{Code: resp.StatusCode, Body: string(resp.Body)}
		default:
			return nil, retry.Permanent(&StatusError{Code: resp.StatusCode, Body: string(resp.Body)})
		}
	})
}

// marshalBody encodes the attempt's request body. BodyFunc runs once per
// attempt so its output is never replayed across retries.
func (r Request) marshalBody() ([]byte, error) {
	src := r.Body
	if r.BodyFunc != nil {
		src = r.BodyFunc()
	}
	if src == nil {
		return nil, nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return data, nil
}

// shouldFallback reports whether an attempt should fall through to the
// fallback URL: transport-level failure, or a 404 from the primary.
func shouldFallback(resp *Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}

// attempt issues a single HTTP request against one URL. Timeouts surface as
// whiskypay.ErrTimeout, other transport failures as whiskypay.ErrNetwork.
func (c *Client) attempt(ctx context.Context, req Request, url, requestID string, body []byte) (*Response, error) {
	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("X-Request-Id", requestID)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.NoCache {
		httpReq.Header.Set("Cache-Control", "no-store, no-cache")
		httpReq.Header.Set("Pragma", "no-cache")
	}
	if req.Decorate != nil {
		req.Decorate(httpReq)
	}

	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", whiskypay.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", whiskypay.ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", whiskypay.ErrNetwork, err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: data}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
