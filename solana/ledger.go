// Package solana implements the ledger and wallet capabilities on top of
// github.com/gagliardetto/solana-go. The checkout core consumes these only
// through the whiskypay capability interfaces, so tests and alternative
// backends can substitute their own.
package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
)

// RPCClient is the subset of Solana RPC operations the ledger needs. It
// allows dependency injection and easier testing.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// Ledger implements whiskypay.Ledger against a Solana RPC endpoint.
type Ledger struct {
	// Client is the RPC client. Required.
	Client RPCClient

	// PollInterval is the spacing between confirmation polls (default 2s).
	PollInterval time.Duration

	// ConfirmTimeout bounds AwaitFinalized (default 90s).
	ConfirmTimeout time.Duration
}

var _ whiskypay.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger for the given RPC endpoint URL.
func NewLedger(rpcURL string) *Ledger {
	return &Ledger{Client: rpc.New(rpcURL)}
}

// AccountExists reports whether owner's associated token account for mint
// exists on-chain.
func (l *Ledger) AccountExists(ctx context.Context, owner, mint string) (bool, error) {
	ata, err := deriveATA(owner, mint)
	if err != nil {
		return false, err
	}

	info, err := l.Client.GetAccountInfo(ctx, ata)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get account info: %w", err)
	}
	return info != nil && info.Value != nil, nil
}

// TokenBalance returns the balance of owner's associated token account for
// mint, in the token's smallest unit.
func (l *Ledger) TokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	ata, err := deriveATA(owner, mint)
	if err != nil {
		return 0, err
	}

	res, err := l.Client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	if res == nil || res.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

// SignatureStatus returns the current confirmation level of a signature. A
// transaction the ledger reports as errored surfaces ErrTransactionFailed.
func (l *Ledger) SignatureStatus(ctx context.Context, signature string) (whiskypay.Confirmation, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return whiskypay.ConfirmationNone, fmt.Errorf("parse signature: %w", err)
	}

	res, err := l.Client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return whiskypay.ConfirmationNone, fmt.Errorf("get signature status: %w", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return whiskypay.ConfirmationNone, nil
	}

	status := res.Value[0]
	if status.Err != nil {
		return whiskypay.ConfirmationNone, fmt.Errorf("%w: %v", whiskypay.ErrTransactionFailed, status.Err)
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return whiskypay.ConfirmationFinalized, nil
	case rpc.ConfirmationStatusConfirmed:
		return whiskypay.ConfirmationConfirmed, nil
	case rpc.ConfirmationStatusProcessed:
		return whiskypay.ConfirmationProcessed, nil
	default:
		return whiskypay.ConfirmationNone, nil
	}
}

// AwaitFinalized polls until the signature is finalized, the transaction
// errors on-chain, or the context or confirm timeout expires.
func (l *Ledger) AwaitFinalized(ctx context.Context, signature string) error {
	interval := l.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := l.ConfirmTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := l.SignatureStatus(ctx, signature)
		if err != nil && errors.Is(err, whiskypay.ErrTransactionFailed) {
			return err
		}
		if err == nil && status == whiskypay.ConfirmationFinalized {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: confirmation wait: %v", whiskypay.ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// deriveATA derives the associated token account for an owner and mint.
func deriveATA(owner, mint string) (solana.PublicKey, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid owner address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint address: %w", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token account: %w", err)
	}
	return ata, nil
}
