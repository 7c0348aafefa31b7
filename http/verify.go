package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// ambiguousFailureMessage is returned when the whole fallback chain is
// exhausted. It must never assert definite failure: the ledger is
// eventually consistent and the payment may still land.
const ambiguousFailureMessage = "payment verification could not be completed; " +
	"the payment may still have succeeded, check your account history before paying again"

// VerifyClient reconciles a transaction signature with the merchant backend.
// Three independent signals are layered, in priority order: the backend's
// authoritative verdict, the ledger's own confirmation state, and a
// best-effort degraded success detector. The backend remains the source of
// truth; the other signals only prevent false negatives while it is
// unreachable.
type VerifyClient struct {
	// Base is the explicit backend base URL override.
	Base string

	// Origin is the current request origin, used when Base is empty. If both
	// are empty, whiskypay.DefaultBaseURL is used.
	Origin string

	// Client is the resilient transport. If nil, a default is used.
	Client *Client

	// Timeout is the per-attempt verification timeout.
	// Zero falls back to whiskypay.DefaultTimeouts.Verify.
	Timeout time.Duration

	// Ledger, when set, is consulted as ground truth after the backend
	// fails: a confirmed or finalized signature is a success regardless of
	// the backend's availability.
	Ledger whiskypay.Ledger

	// Detector, when set, supplies the degraded success signal.
	Detector whiskypay.SuccessSignalDetector

	// Signatures is the verified-signature set shared with the
	// orchestrator. If nil, a private set is created on first use.
	Signatures *whiskypay.SignatureSet

	// OnBeforeVerify is called before the backend call. Returning an error
	// aborts the call.
	OnBeforeVerify func(ctx context.Context, sessionID, signature string) error

	// OnAfterVerify is called after Verify completes, success or failure.
	OnAfterVerify func(ctx context.Context, sessionID, signature string, outcome *whiskypay.VerifyOutcome, err error)
}

var _ whiskypay.Verifier = (*VerifyClient)(nil)

// Verify runs the layered verification policy for one signature. Successful
// outcomes always record the signature in the verified-signature set so a
// duplicate submission short-circuits without a network call.
func (v *VerifyClient) Verify(ctx context.Context, sessionID, signature, payer string) (outcome *whiskypay.VerifyOutcome, err error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, fmt.Errorf("%w: signature", whiskypay.ErrInvalidInput)
	}

	if v.OnAfterVerify != nil {
		defer func() { v.OnAfterVerify(ctx, sessionID, signature, outcome, err) }()
	}

	// Already verified for this session: duplicate submission, not an error.
	if v.signatures().Contains(signature) {
		return &whiskypay.VerifyOutcome{Success: true, Message: "payment already verified"}, nil
	}

	// Degraded shortcut ahead of any network call. This bridges a known
	// backend instability window and trades precision for availability.
	if v.Detector != nil && v.Detector.Scan(ctx, sessionID, signature) {
		v.signatures().Add(signature)
		return &whiskypay.VerifyOutcome{
			Success: true,
			Message: "payment verified via degraded success signal (" + v.Detector.MarkerVersion() + ")",
		}, nil
	}

	if v.OnBeforeVerify != nil {
		if err := v.OnBeforeVerify(ctx, sessionID, signature); err != nil {
			return nil, err
		}
	}

	outcome, backendErr := v.callBackend(ctx, sessionID, signature, payer)
	if backendErr == nil {
		v.signatures().Add(signature)
		return outcome, nil
	}

	// Backend rejected the submission outright; the ledger fallback does
	// not apply to client errors.
	var se *StatusError
	if errors.As(backendErr, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusNotFound) {
		return &whiskypay.VerifyOutcome{
			Success: false,
			Message: "verification rejected by backend; " + ambiguousFailureMessage,
		}, retry.Permanent(backendErr)
	}

	// The backend is unreachable or failing; the ledger is the ground
	// truth it merely caches.
	if v.Ledger != nil {
		status, lerr := v.Ledger.SignatureStatus(ctx, signature)
		if lerr == nil && status >= whiskypay.ConfirmationConfirmed {
			v.signatures().Add(signature)
			return &whiskypay.VerifyOutcome{
				Success: true,
				Message: "payment " + status.String() + " on-chain; backend verification pending",
			}, nil
		}
	}

	// Last re-scan: evidence may have arrived while the backend call ran.
	if v.Detector != nil && v.Detector.Scan(ctx, sessionID, signature) {
		v.signatures().Add(signature)
		return &whiskypay.VerifyOutcome{
			Success: true,
			Message: "payment verified via degraded success signal (" + v.Detector.MarkerVersion() + ")",
		}, nil
	}

	return &whiskypay.VerifyOutcome{Success: false, Message: ambiguousFailureMessage},
		fmt.Errorf("%w: %v", whiskypay.ErrVerificationFailed, backendErr)
}

// callBackend performs the verification POST. Every attempt carries a fresh
// nonce and timestamp and disables caching: replaying a stale verification
// response would be incorrect. HTTP 409 signals an idempotent duplicate
// submission and is a success regardless of body parseability.
func (v *VerifyClient) callBackend(ctx context.Context, sessionID, signature, payer string) (*whiskypay.VerifyOutcome, error) {
	resp, err := v.client().Do(ctx, Request{
		Primary:  v.base() + "/api/verifyPayment",
		Fallback: v.base() + "/verifyPayment",
		Method:   http.MethodPost,
		BodyFunc: func() interface{} {
			return map[string]interface{}{
				"sessionId":  sessionID,
				"signature":  signature,
				"userPubKey": payer,
				"timestamp":  time.Now().UnixMilli(),
				"nonce":      uuid.NewString(),
			}
		},
		Timeout: v.timeout(),
		NoCache: true,
		Decorate: func(req *http.Request) {
			q := req.URL.Query()
			q.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
			q.Set("nonce", uuid.NewString())
			req.URL.RawQuery = q.Encode()
		},
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusConflict {
			return &whiskypay.VerifyOutcome{
				Success: true,
				Message: "payment already verified",
				Raw:     []byte(se.Body),
			}, nil
		}
		return nil, err
	}

	outcome := &whiskypay.VerifyOutcome{Success: true, Message: "payment verified", Raw: resp.Body}
	var parsed struct {
		Message string `json:"message"`
	}
	if jerr := resp.JSON(&parsed); jerr == nil && parsed.Message != "" {
		outcome.Message = parsed.Message
	}
	return outcome, nil
}

func (v *VerifyClient) base() string {
	return whiskypay.ResolveBaseURL(v.Base, v.Origin)
}

func (v *VerifyClient) client() *Client {
	if v.Client != nil {
		return v.Client
	}
	return &Client{Retry: whiskypay.DefaultHTTPRetry}
}

func (v *VerifyClient) timeout() time.Duration {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return whiskypay.DefaultTimeouts.Verify
}

func (v *VerifyClient) signatures() *whiskypay.SignatureSet {
	if v.Signatures == nil {
		v.Signatures = whiskypay.NewSignatureSet()
	}
	return v.Signatures
}
