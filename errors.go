package whiskypay

import (
	"errors"

	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// Sentinel errors for checkout operations.
var (
	// ErrNoWallet indicates no signing wallet is connected.
	ErrNoWallet = errors.New("whiskypay: no wallet connected")

	// ErrInvalidEmail indicates the customer email failed local validation.
	ErrInvalidEmail = errors.New("whiskypay: invalid email address")

	// ErrInvalidInput indicates a required identifier was empty after sanitization.
	ErrInvalidInput = errors.New("whiskypay: missing required field")

	// ErrInvalidSessionID indicates a session id contains characters outside [A-Za-z0-9_-].
	ErrInvalidSessionID = errors.New("whiskypay: invalid session id")

	// ErrInvalidSession indicates the backend session record is missing mandatory fields.
	ErrInvalidSession = errors.New("whiskypay: invalid session record")

	// ErrMissingSessionID indicates the create-session response carried no session id.
	ErrMissingSessionID = errors.New("whiskypay: backend response missing session id")

	// ErrPriceUnavailable indicates the USD price lookup failed or returned a non-positive price.
	ErrPriceUnavailable = errors.New("whiskypay: asset price unavailable")

	// ErrNoSourceAccount indicates the swap source token account does not exist on-chain.
	ErrNoSourceAccount = errors.New("whiskypay: source token account not found, fund your wallet before swapping")

	// ErrInsufficientBalance indicates the swap source account holds a zero balance.
	ErrInsufficientBalance = errors.New("whiskypay: insufficient balance in source token account")

	// ErrTransactionFailed indicates the ledger reported the transaction as failed.
	ErrTransactionFailed = errors.New("whiskypay: transaction failed on-chain")

	// ErrTimeout indicates a request exceeded its per-attempt timeout.
	ErrTimeout = errors.New("whiskypay: request timed out")

	// ErrNetwork indicates a transport-level failure before a response was obtained.
	ErrNetwork = errors.New("whiskypay: network failure")

	// ErrVerificationFailed indicates the verification fallback chain was exhausted.
	// The payment may nonetheless have succeeded; see the outcome message.
	ErrVerificationFailed = errors.New("whiskypay: payment verification failed")

	// ErrPaymentInFlight indicates another payment attempt is already running.
	ErrPaymentInFlight = errors.New("whiskypay: a payment attempt is already in progress")

	// ErrUnsupportedAsset indicates the selected asset is not in the catalog.
	ErrUnsupportedAsset = errors.New("whiskypay: unsupported asset")
)

// ErrorCode names the branch of the error-handling taxonomy an error falls
// into. Embedders switch on it instead of matching individual sentinels.
type ErrorCode string

const (
	// ErrCodeValidation: rejected locally, no network call was made.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeTransient: network or backend failure that was retried with
	// backoff before being surfaced.
	ErrCodeTransient ErrorCode = "TRANSIENT"

	// ErrCodeClient: terminal client error (HTTP 400/404), never retried.
	ErrCodeClient ErrorCode = "CLIENT"

	// ErrCodeAmbiguous: the verification fallback chain was exhausted; the
	// payment may nonetheless have succeeded.
	ErrCodeAmbiguous ErrorCode = "AMBIGUOUS"

	// ErrCodeFatal: the attempt was aborted with a specific, actionable
	// cause (no wallet, empty source account, on-chain failure).
	ErrCodeFatal ErrorCode = "FATAL"
)

// Classify maps an error to its taxonomy branch. Unknown errors are treated
// as fatal to the attempt rather than silently retried.
func Classify(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidSessionID),
		errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrMissingSessionID):
		return ErrCodeValidation
	case errors.Is(err, ErrVerificationFailed):
		return ErrCodeAmbiguous
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNetwork):
		return ErrCodeTransient
	case errors.Is(err, ErrNoWallet),
		errors.Is(err, ErrPriceUnavailable),
		errors.Is(err, ErrNoSourceAccount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrTransactionFailed),
		errors.Is(err, ErrUnsupportedAsset):
		return ErrCodeFatal
	case retry.IsPermanent(err):
		// Backend rejections (400/404) surface as permanent retry errors.
		return ErrCodeClient
	default:
		return ErrCodeFatal
	}
}

// PaymentError couples a failure with its taxonomy code and optional context.
// The orchestrator wraps every terminal failure in one; sentinel matching via
// errors.Is keeps working through Unwrap.
type PaymentError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PaymentError) Unwrap() error { return e.Err }

// NewPaymentError wraps err with a code and a leading message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

// WithDetails attaches a context key/value pair and returns the error for
// chaining.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
