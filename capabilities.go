package whiskypay

import "context"

// Wallet is a connected signing and submission capability. It signs a built
// transaction and submits it to the ledger, returning the signature.
type Wallet interface {
	// Address returns the wallet's base58 public key.
	Address() string

	// SignAndSubmit signs the transaction and submits it, returning the
	// transaction signature.
	SignAndSubmit(ctx context.Context, tx SignableTransaction) (string, error)
}

// Ledger is the ledger query and transaction-building capability. The solana
// package provides the default implementation; tests substitute mocks.
type Ledger interface {
	// AccountExists reports whether owner's associated token account for
	// mint exists on-chain.
	AccountExists(ctx context.Context, owner, mint string) (bool, error)

	// TokenBalance returns the balance of owner's associated token account
	// for mint, in the token's smallest unit.
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)

	// SignatureStatus returns the current confirmation level of a signature.
	SignatureStatus(ctx context.Context, signature string) (Confirmation, error)

	// AwaitFinalized blocks until the signature is finalized, the
	// transaction errors on-chain, or ctx is done.
	AwaitFinalized(ctx context.Context, signature string) error

	// BuildNativeTransfer builds an unsigned native transfer of lamports
	// from one address to another.
	BuildNativeTransfer(ctx context.Context, from, to string, lamports uint64) (SignableTransaction, error)

	// BuildTokenTransfer builds an unsigned SPL token transfer, creating the
	// recipient's associated token account when it does not exist yet.
	BuildTokenTransfer(ctx context.Context, from, to, mint string, amount uint64, decimals uint8) (SignableTransaction, error)
}

// PriceQuoter is the asset-to-USD price-quote capability.
type PriceQuoter interface {
	// USDPrice returns the USD price of the asset identified by mint.
	USDPrice(ctx context.Context, mint string) (float64, error)
}

// SwapProvider is the swap-quote and swap-build capability. It returns a
// signable transaction that converts the source asset into the exact target
// amount and delivers it per the request.
type SwapProvider interface {
	SwapTransaction(ctx context.Context, req SwapRequest) (SignableTransaction, error)
}

// Verifier reconciles a transaction signature against the merchant backend.
// The http package provides the default implementation.
type Verifier interface {
	Verify(ctx context.Context, sessionID, signature, payer string) (*VerifyOutcome, error)
}

// SuccessSignalDetector scans ambient diagnostic output for evidence that a
// payment succeeded despite an inconclusive backend response. It is a
// compatibility shim for a known backend instability window, a best-effort
// availability trade-off rather than a correctness guarantee.
type SuccessSignalDetector interface {
	// Scan reports whether a recognized success marker is present for the
	// session/signature pair.
	Scan(ctx context.Context, sessionID, signature string) bool

	// MarkerVersion identifies the marker list in use, so the shim can be
	// audited or disabled when the backend's transient failure is fixed.
	MarkerVersion() string
}
