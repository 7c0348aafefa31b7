package whiskypay

import (
	"fmt"
	"strings"
	"time"

	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// DefaultBaseURL is the hardcoded fallback backend host, used only when
// neither an explicit override nor a request origin is available.
const DefaultBaseURL = "https://whiskypay.fun"

// ResolveBaseURL resolves the backend base URL with three-tier precedence:
// an explicit override wins, then the current request origin, then
// DefaultBaseURL. Trailing slashes are stripped so callers can join paths.
func ResolveBaseURL(override, origin string) string {
	if u := strings.TrimSpace(override); u != "" {
		return strings.TrimRight(u, "/")
	}
	if u := strings.TrimSpace(origin); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultBaseURL
}

// TimeoutConfig holds per-call-site timeouts for backend operations.
type TimeoutConfig struct {
	// SessionFetch is the per-attempt timeout for fetching a session.
	SessionFetch time.Duration

	// SessionCreate is the per-attempt timeout for creating a session.
	SessionCreate time.Duration

	// Verify is the per-attempt timeout for payment verification.
	Verify time.Duration
}

// DefaultTimeouts provides the standard per-call-site timeouts.
var DefaultTimeouts = TimeoutConfig{
	SessionFetch:  10 * time.Second,
	SessionCreate: 15 * time.Second,
	Verify:        30 * time.Second,
}

// WithSessionFetch returns a new TimeoutConfig with an updated fetch timeout.
func (tc TimeoutConfig) WithSessionFetch(d time.Duration) TimeoutConfig {
	tc.SessionFetch = d
	return tc
}

// WithSessionCreate returns a new TimeoutConfig with an updated create timeout.
func (tc TimeoutConfig) WithSessionCreate(d time.Duration) TimeoutConfig {
	tc.SessionCreate = d
	return tc
}

// WithVerify returns a new TimeoutConfig with an updated verify timeout.
func (tc TimeoutConfig) WithVerify(d time.Duration) TimeoutConfig {
	tc.Verify = d
	return tc
}

// Validate ensures timeout values are positive.
func (tc TimeoutConfig) Validate() error {
	if tc.SessionFetch <= 0 {
		return fmt.Errorf("session fetch timeout must be positive, got %v", tc.SessionFetch)
	}
	if tc.SessionCreate <= 0 {
		return fmt.Errorf("session create timeout must be positive, got %v", tc.SessionCreate)
	}
	if tc.Verify <= 0 {
		return fmt.Errorf("verify timeout must be positive, got %v", tc.Verify)
	}
	return nil
}

// DefaultHTTPRetry is the transport-tier retry policy: exponential backoff
// from 1s with up to 1s of jitter, capped at 10s.
var DefaultHTTPRetry = retry.Config{
	MaxAttempts:  4,
	InitialDelay: time.Second,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
	Jitter:       time.Second,
}

// DefaultVerifyRetry is the orchestrator-tier verification policy: up to 3
// attempts with a fixed 2s spacing, layered on top of the transport policy.
var DefaultVerifyRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 2 * time.Second,
	Multiplier:   1.0,
}

// DefaultSafetyTimeout bounds how long a payment attempt may run before the
// orchestrator forces completion. See Orchestrator.
const DefaultSafetyTimeout = 60 * time.Second
