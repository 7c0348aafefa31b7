package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
	"github.com/weknowyourgame/whiskypay-solana-sdk/validation"
)

// SessionClient creates and fetches payment sessions. Backend responses are
// normalized into the Session model through per-field key aliases; missing
// mandatory fields invalidate the whole record rather than degrading it.
type SessionClient struct {
	// Base is the explicit backend base URL override.
	Base string

	// Origin is the current request origin, used when Base is empty. If both
	// are empty, whiskypay.DefaultBaseURL is used.
	Origin string

	// Client is the resilient transport. If nil, a default is used.
	Client *Client

	// Timeouts contains per-call-site timeouts.
	// Zero fields fall back to whiskypay.DefaultTimeouts.
	Timeouts whiskypay.TimeoutConfig
}

// Create creates a payment session and returns its id. Inputs are validated
// and sanitized locally before any network call: the email must match a
// standard address grammar and identifiers must be non-empty once markup
// and whitespace are stripped.
func (s *SessionClient) Create(ctx context.Context, merchantID, email, plan string) (string, error) {
	merchantID = validation.Sanitize(merchantID)
	email = validation.Sanitize(email)
	plan = validation.Sanitize(plan)

	if merchantID == "" {
		return "", fmt.Errorf("%w: merchant id", whiskypay.ErrInvalidInput)
	}
	if plan == "" {
		return "", fmt.Errorf("%w: plan", whiskypay.ErrInvalidInput)
	}
	if !validation.ValidEmail(email) {
		return "", fmt.Errorf("%w: %q", whiskypay.ErrInvalidEmail, email)
	}

	resp, err := s.client().Do(ctx, Request{
		Primary:  s.base() + "/api/session",
		Fallback: s.base() + "/session",
		Method:   http.MethodPost,
		Body: map[string]interface{}{
			"merchantId": merchantID,
			"email":      email,
			"plan":       plan,
			"timestamp":  time.Now().UnixMilli(),
		},
		Timeout: s.createTimeout(),
	})
	if err != nil {
		return "", err
	}

	var fields map[string]interface{}
	if err := resp.JSON(&fields); err != nil {
		return "", fmt.Errorf("%w: %v", whiskypay.ErrMissingSessionID, err)
	}
	id := firstString(fields, "sessionId", "id", "_id", "session_id")
	if id == "" {
		return "", whiskypay.ErrMissingSessionID
	}
	return id, nil
}

// Fetch retrieves a session by id. Ids containing characters outside
// [A-Za-z0-9_-] are rejected before any network call; a malformed id is a
// tampering signal, not a cleanup target.
func (s *SessionClient) Fetch(ctx context.Context, id string) (*whiskypay.Session, error) {
	if !validation.ValidSessionID(id) {
		return nil, fmt.Errorf("%w: %q", whiskypay.ErrInvalidSessionID, id)
	}

	resp, err := s.client().Do(ctx, Request{
		Primary:  s.base() + "/api/session/" + id,
		Fallback: s.base() + "/session/" + id,
		Method:   http.MethodGet,
		Timeout:  s.fetchTimeout(),
	})
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := resp.JSON(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", whiskypay.ErrInvalidSession, err)
	}
	return normalizeSession(fields)
}

// normalizeSession maps heterogeneous backend JSON into the Session model.
// The six core fields are mandatory; absence of any fails the whole record.
func normalizeSession(fields map[string]interface{}) (*whiskypay.Session, error) {
	sess := &whiskypay.Session{
		ID:              firstString(fields, "id", "_id", "sessionId", "session_id"),
		MerchantID:      firstString(fields, "merchantId", "merchant_id", "merchant"),
		MerchantName:    firstString(fields, "merchantName", "merchant_name", "name"),
		CustomerEmail:   firstString(fields, "email", "customerEmail", "customer_email", "userEmail"),
		MerchantAddress: firstString(fields, "merchantAddress", "merchant_address", "address", "wallet"),
		MerchantLogoURL: firstString(fields, "logoUrl", "merchantLogoUrl", "logo_url", "logo"),
		PlanName:        firstString(fields, "plan", "planName", "plan_name"),
		PriceUSD:        firstNumber(fields, "priceUsd", "price_usd", "price", "amountUsd"),
	}

	switch {
	case sess.ID == "":
		return nil, fmt.Errorf("%w: missing id", whiskypay.ErrInvalidSession)
	case sess.MerchantID == "":
		return nil, fmt.Errorf("%w: missing merchant id", whiskypay.ErrInvalidSession)
	case sess.CustomerEmail == "":
		return nil, fmt.Errorf("%w: missing email", whiskypay.ErrInvalidSession)
	case sess.MerchantAddress == "":
		return nil, fmt.Errorf("%w: missing merchant address", whiskypay.ErrInvalidSession)
	case sess.PlanName == "":
		return nil, fmt.Errorf("%w: missing plan", whiskypay.ErrInvalidSession)
	case sess.PriceUSD <= 0:
		return nil, fmt.Errorf("%w: price must be positive", whiskypay.ErrInvalidSession)
	}

	sess.CreatedAt = parseCreatedAt(fields)
	return sess, nil
}

// parseCreatedAt accepts RFC3339 strings and unix-epoch numbers, defaulting
// to the fetch time when absent or unparseable.
func parseCreatedAt(fields map[string]interface{}) time.Time {
	for _, key := range []string{"createdAt", "created_at", "created"} {
		switch v := fields[key].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		case float64:
			// Millisecond epochs are far larger than second epochs.
			if v > 1e12 {
				return time.UnixMilli(int64(v))
			}
			if v > 0 {
				return time.Unix(int64(v), 0)
			}
		}
	}
	return time.Now()
}

// firstString returns the first alias that resolves to a non-empty string.
func firstString(fields map[string]interface{}, aliases ...string) string {
	for _, key := range aliases {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// firstNumber returns the first alias that resolves to a positive number.
// Numeric strings are accepted, some backends quote prices.
func firstNumber(fields map[string]interface{}, aliases ...string) float64 {
	for _, key := range aliases {
		switch v := fields[key].(type) {
		case float64:
			if v > 0 {
				return v
			}
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%g", &f); err == nil && f > 0 {
				return f
			}
		case json.Number:
			if f, err := v.Float64(); err == nil && f > 0 {
				return f
			}
		}
	}
	return 0
}

func (s *SessionClient) base() string {
	return whiskypay.ResolveBaseURL(s.Base, s.Origin)
}

func (s *SessionClient) client() *Client {
	if s.Client != nil {
		return s.Client
	}
	return &Client{Retry: whiskypay.DefaultHTTPRetry}
}

func (s *SessionClient) createTimeout() time.Duration {
	if s.Timeouts.SessionCreate > 0 {
		return s.Timeouts.SessionCreate
	}
	return whiskypay.DefaultTimeouts.SessionCreate
}

func (s *SessionClient) fetchTimeout() time.Duration {
	if s.Timeouts.SessionFetch > 0 {
		return s.Timeouts.SessionFetch
	}
	return whiskypay.DefaultTimeouts.SessionFetch
}
