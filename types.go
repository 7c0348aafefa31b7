// Package whiskypay implements the WhiskyPay checkout flow for Solana:
// payment session creation and fetch, transaction construction for native,
// stable-asset and swap-then-transfer paths, and the verification state
// machine that reconciles a signature against the merchant backend.
//
// External capabilities (wallet signing, ledger queries, price quotes, swap
// building) are consumed through interfaces; default implementations live in
// the solana, price and swap subpackages.
package whiskypay

import (
	"encoding/json"
	"time"
)

// Version is the SDK version reported to backends and MCP clients.
const Version = "0.4.2"

// Session is a server-issued record binding a merchant, plan, price and
// settlement address to one checkout attempt. It is immutable once fetched.
type Session struct {
	// ID is an opaque token matching [A-Za-z0-9_-]+.
	ID string

	// MerchantID identifies the merchant that created the session.
	MerchantID string

	// MerchantName is optional display metadata; empty when the backend omits it.
	MerchantName string

	// CreatedAt is when the backend created the session.
	CreatedAt time.Time

	// CustomerEmail is the payer's contact address.
	CustomerEmail string

	// MerchantAddress is the Solana address that receives the settlement.
	MerchantAddress string

	// MerchantLogoURL is optional display metadata; empty when omitted.
	MerchantLogoURL string

	// PlanName names the plan being purchased.
	PlanName string

	// PriceUSD is the amount due, in US dollars. Always > 0 for a valid session.
	PriceUSD float64
}

// VerifyOutcome is the result of reconciling a transaction signature with the
// merchant backend. It is produced once per payment attempt.
type VerifyOutcome struct {
	// Success reports whether the payment is considered verified.
	Success bool

	// Message is a human-readable description of the outcome. On failure it
	// always acknowledges that the payment may still have succeeded.
	Message string

	// Raw is the backend response body, when one was obtained.
	Raw json.RawMessage
}

// Confirmation is a ledger confirmation level for a transaction signature.
type Confirmation int

const (
	// ConfirmationNone means the ledger has not seen the signature.
	ConfirmationNone Confirmation = iota

	// ConfirmationProcessed means the transaction was processed by a node.
	ConfirmationProcessed

	// ConfirmationConfirmed means a supermajority of the cluster voted on it.
	ConfirmationConfirmed

	// ConfirmationFinalized means the transaction is irreversible.
	ConfirmationFinalized
)

// String returns the ledger's name for the confirmation level.
func (c Confirmation) String() string {
	switch c {
	case ConfirmationProcessed:
		return "processed"
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationFinalized:
		return "finalized"
	default:
		return "none"
	}
}

// SignableTransaction is a wire-serialized unsigned transaction, ready to be
// signed and submitted by a Wallet. Ledger and SwapProvider implementations
// produce it; the core never inspects its contents.
type SignableTransaction []byte

// PaymentResult is the terminal outcome of one orchestrated payment attempt.
type PaymentResult struct {
	// State is StateSuccess or StateFailure.
	State PaymentState

	// Signature is the submitted transaction signature, when one was dispatched.
	Signature string

	// Outcome is the verification outcome, when verification ran.
	Outcome *VerifyOutcome

	// Forced reports whether the safety deadline fired before the flow
	// reached a terminal state on its own.
	Forced bool

	// Err is the failure cause, nil on success.
	Err error
}

// SwapRequest describes an exact-out swap into the settlement asset followed
// by delivery to the merchant.
type SwapRequest struct {
	// SourceMint is the mint of the asset the user pays with.
	SourceMint string

	// TargetMint is the mint of the settlement asset.
	TargetMint string

	// AmountOut is the exact settlement amount, in the target's smallest unit.
	AmountOut uint64

	// UserAddress is the payer's wallet address.
	UserAddress string

	// DestinationTokenAccount optionally routes the swap output straight to
	// the merchant's token account instead of the payer's.
	DestinationTokenAccount string
}
