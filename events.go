package whiskypay

import "time"

// PaymentState identifies a stage of the payment state machine.
type PaymentState string

const (
	// StateIdle is emitted once an attempt is accepted, before any work runs.
	StateIdle PaymentState = "idle"

	// StateWalletCheck verifies a signing wallet is connected.
	StateWalletCheck PaymentState = "wallet_check"

	// StatePriceLookup fetches the quote asset's USD price.
	StatePriceLookup PaymentState = "price_lookup"

	// StateBuilding constructs the transaction for the selected asset path.
	StateBuilding PaymentState = "building"

	// StateDispatching submits the signed transaction to the ledger.
	StateDispatching PaymentState = "dispatching"

	// StateAwaitingConfirmation waits for the ledger to finalize the signature.
	StateAwaitingConfirmation PaymentState = "awaiting_confirmation"

	// StateVerifying reconciles the signature with the merchant backend.
	StateVerifying PaymentState = "verifying"

	// StateSuccess is the successful terminal state.
	StateSuccess PaymentState = "success"

	// StateFailure is the failed terminal state.
	StateFailure PaymentState = "failure"
)

// Terminal reports whether the state ends the attempt.
func (s PaymentState) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// PaymentEvent is a payment lifecycle notification. Events are emitted on
// every state transition; the Dispatching event carries the transaction
// signature as soon as it is known, ahead of final confirmation.
type PaymentEvent struct {
	// State is the stage the attempt just entered.
	State PaymentState

	// SessionID identifies the checkout session.
	SessionID string

	// Asset is the symbol of the selected payment asset.
	Asset string

	// Signature is the transaction signature, once dispatched.
	Signature string

	// Err carries the failure cause on StateFailure.
	Err error

	// Timestamp is when the transition occurred.
	Timestamp time.Time
}

// PaymentCallback handles payment lifecycle events. Callbacks are invoked
// synchronously during the payment flow, so they should be fast; run longer
// work in a goroutine inside the callback.
type PaymentCallback func(PaymentEvent)

// CompletionFunc receives the terminal result of a payment attempt. The
// orchestrator invokes it exactly once per attempt, whether the flow
// completed on its own or the safety deadline forced completion.
type CompletionFunc func(PaymentResult)
