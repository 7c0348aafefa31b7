package whiskypay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// Orchestrator drives one payment attempt end to end: wallet check, price
// lookup, transaction construction for the selected asset path, dispatch,
// confirmation wait, and backend verification. One generic
// submit-confirm-verify pipeline serves all three asset paths; the paths
// differ only in the TransactionIntent they build.
//
// Only one attempt may run at a time per Orchestrator; Pay returns
// ErrPaymentInFlight while one is outstanding.
type Orchestrator struct {
	wallet   Wallet
	ledger   Ledger
	prices   PriceQuoter
	swaps    SwapProvider
	verifier Verifier

	signatures    *SignatureSet
	verifyRetry   retry.Config
	safetyTimeout time.Duration
	onProgress    PaymentCallback

	inFlight atomic.Bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator) error

// NewOrchestrator creates an Orchestrator. Wallet, ledger and verifier are
// required; the price quoter is required for the native path and the swap
// provider for the swap path.
func NewOrchestrator(wallet Wallet, ledger Ledger, verifier Verifier, opts ...OrchestratorOption) (*Orchestrator, error) {
	if ledger == nil {
		return nil, fmt.Errorf("whiskypay: ledger capability is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("whiskypay: verifier capability is required")
	}

	o := &Orchestrator{
		wallet:        wallet,
		ledger:        ledger,
		verifier:      verifier,
		signatures:    NewSignatureSet(),
		verifyRetry:   DefaultVerifyRetry,
		safetyTimeout: DefaultSafetyTimeout,
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithPriceQuoter sets the price-quote capability.
func WithPriceQuoter(p PriceQuoter) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.prices = p
		return nil
	}
}

// WithSwapProvider sets the swap capability.
func WithSwapProvider(s SwapProvider) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.swaps = s
		return nil
	}
}

// WithSignatureSet shares a verified-signature set between the orchestrator
// and the verification gateway.
func WithSignatureSet(s *SignatureSet) OrchestratorOption {
	return func(o *Orchestrator) error {
		if s == nil {
			return fmt.Errorf("whiskypay: signature set must not be nil")
		}
		o.signatures = s
		return nil
	}
}

// WithVerifyRetry sets the orchestrator-tier verification retry policy.
// This tier is independent of the HTTP transport's own retry policy.
func WithVerifyRetry(cfg retry.Config) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.verifyRetry = cfg
		return nil
	}
}

// WithSafetyTimeout sets the attempt deadline after which completion is
// forced. Zero disables the deadline.
func WithSafetyTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.safetyTimeout = d
		return nil
	}
}

// WithProgress sets the lifecycle event callback.
func WithProgress(cb PaymentCallback) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.onProgress = cb
		return nil
	}
}

// Signatures returns the verified-signature set in use.
func (o *Orchestrator) Signatures() *SignatureSet {
	return o.signatures
}

// attempt owns the mutable state of one payment run: the exactly-once
// completion and the cancellable safety deadline. It replaces the older
// process-wide completed flag and detached timer.
type attempt struct {
	session  *Session
	asset    Asset
	complete CompletionFunc
	once     sync.Once
	timer    *time.Timer
}

// finish delivers the terminal result exactly once and cancels the safety
// deadline.
func (a *attempt) finish(res PaymentResult) {
	a.once.Do(func() {
		if a.timer != nil {
			a.timer.Stop()
		}
		if a.complete != nil {
			a.complete(res)
		}
	})
}

// Pay runs one payment attempt for the session using the selected asset and
// returns the terminal result. complete, when non-nil, is invoked exactly
// once with the same result, or earlier with a forced success-equivalent
// result if the safety deadline fires before the flow reaches a terminal
// state.
func (o *Orchestrator) Pay(ctx context.Context, session *Session, asset Asset, complete CompletionFunc) (*PaymentResult, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPaymentInFlight
	}
	defer o.inFlight.Store(false)

	if session == nil || session.ID == "" {
		return nil, fmt.Errorf("%w: session", ErrInvalidInput)
	}

	a := &attempt{session: session, asset: asset, complete: complete}
	if o.safetyTimeout > 0 {
		a.timer = time.AfterFunc(o.safetyTimeout, func() {
			a.finish(PaymentResult{State: StateSuccess, Forced: true})
		})
	}

	res := o.run(ctx, a)
	a.finish(*res)
	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// run executes the state machine and returns the terminal result.
func (o *Orchestrator) run(ctx context.Context, a *attempt) *PaymentResult {
	s := a.session

	o.emit(StateIdle, s, a.asset, "", nil)

	o.emit(StateWalletCheck, s, a.asset, "", nil)
	if o.wallet == nil || o.wallet.Address() == "" {
		return o.fail(a, "", ErrNoWallet)
	}

	o.emit(StatePriceLookup, s, a.asset, "", nil)
	intent, err := o.buildIntent(ctx, s, a.asset)
	if err != nil {
		return o.fail(a, "", err)
	}

	o.emit(StateBuilding, s, a.asset, "", nil)
	tx, err := o.buildTransaction(ctx, s, intent)
	if err != nil {
		return o.fail(a, "", err)
	}

	sig, err := o.wallet.SignAndSubmit(ctx, tx)
	if err != nil {
		return o.fail(a, "", fmt.Errorf("dispatch: %w", err))
	}
	// The signature is surfaced immediately as a progress signal; it is not
	// final confirmation.
	o.emit(StateDispatching, s, a.asset, sig, nil)

	o.emit(StateAwaitingConfirmation, s, a.asset, sig, nil)
	if err := o.ledger.AwaitFinalized(ctx, sig); err != nil {
		return o.fail(a, sig, err)
	}

	o.emit(StateVerifying, s, a.asset, sig, nil)
	outcome, err := o.verify(ctx, s, sig)
	if err != nil || !outcome.Success {
		res := o.fail(a, sig, err)
		res.Outcome = outcome
		return res
	}

	o.signatures.Add(sig)
	o.emit(StateSuccess, s, a.asset, sig, nil)
	return &PaymentResult{State: StateSuccess, Signature: sig, Outcome: outcome}
}

// buildIntent resolves the asset path into a TransactionIntent, performing
// the price lookup for the native path and the account prechecks for the
// swap path.
func (o *Orchestrator) buildIntent(ctx context.Context, s *Session, asset Asset) (TransactionIntent, error) {
	switch asset.Kind {
	case AssetNative:
		if o.prices == nil {
			return nil, ErrPriceUnavailable
		}
		quote, err := o.prices.USDPrice(ctx, asset.Mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
		}
		lamports, err := AtomicAmount(s.PriceUSD, quote, asset.Decimals)
		if err != nil {
			return nil, err
		}
		return DirectTransferIntent{Asset: asset, Lamports: lamports}, nil

	case AssetStable:
		amount, err := StableAtomicAmount(s.PriceUSD, asset.Decimals)
		if err != nil {
			return nil, err
		}
		return StableTransferIntent{Asset: asset, Amount: amount}, nil

	case AssetSwap:
		// A user cannot swap from an asset they do not hold; check before
		// any quote is requested.
		exists, err := o.ledger.AccountExists(ctx, o.wallet.Address(), asset.Mint)
		if err != nil {
			return nil, fmt.Errorf("account precheck: %w", err)
		}
		if !exists {
			return nil, ErrNoSourceAccount
		}
		balance, err := o.ledger.TokenBalance(ctx, o.wallet.Address(), asset.Mint)
		if err != nil {
			return nil, fmt.Errorf("balance precheck: %w", err)
		}
		if balance == 0 {
			return nil, ErrInsufficientBalance
		}
		target := SettlementAsset
		amount, err := StableAtomicAmount(s.PriceUSD, target.Decimals)
		if err != nil {
			return nil, err
		}
		return SwapTransferIntent{Source: asset, Target: target, TargetAmount: amount}, nil

	default:
		return nil, ErrUnsupportedAsset
	}
}

// buildTransaction turns an intent into a signable transaction via the
// matching capability.
func (o *Orchestrator) buildTransaction(ctx context.Context, s *Session, intent TransactionIntent) (SignableTransaction, error) {
	switch in := intent.(type) {
	case DirectTransferIntent:
		return o.ledger.BuildNativeTransfer(ctx, o.wallet.Address(), s.MerchantAddress, in.Lamports)

	case StableTransferIntent:
		return o.ledger.BuildTokenTransfer(ctx, o.wallet.Address(), s.MerchantAddress, in.Asset.Mint, in.Amount, in.Asset.Decimals)

	case SwapTransferIntent:
		if o.swaps == nil {
			return nil, fmt.Errorf("%w: no swap provider configured", ErrUnsupportedAsset)
		}
		return o.swaps.SwapTransaction(ctx, SwapRequest{
			SourceMint:  in.Source.Mint,
			TargetMint:  in.Target.Mint,
			AmountOut:   in.TargetAmount,
			UserAddress: o.wallet.Address(),
		})

	default:
		return nil, ErrUnsupportedAsset
	}
}

// verify drives the verification gateway with the orchestrator-tier retry
// policy. A single gateway call failing does not necessarily mean the
// underlying reconciliation signal is unavailable, so failed calls are
// retried on a fixed spacing before the attempt is declared failed.
func (o *Orchestrator) verify(ctx context.Context, s *Session, sig string) (*VerifyOutcome, error) {
	attempts := o.verifyRetry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last *VerifyOutcome
	var lastErr error
	for i := 0; i < attempts; i++ {
		outcome, err := o.verifier.Verify(ctx, s.ID, sig, o.walletAddress())
		if err == nil && outcome != nil && outcome.Success {
			return outcome, nil
		}
		last, lastErr = outcome, err

		// A backend rejection (HTTP 400/404) will not change on retry.
		if retry.IsPermanent(err) {
			break
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(o.verifyRetry.Delay(i)):
		}
	}

	if lastErr == nil {
		lastErr = ErrVerificationFailed
	}
	return last, lastErr
}

func (o *Orchestrator) walletAddress() string {
	if o.wallet == nil {
		return ""
	}
	return o.wallet.Address()
}

func (o *Orchestrator) fail(a *attempt, sig string, err error) *PaymentResult {
	perr := NewPaymentError(Classify(err), "payment attempt failed", err).
		WithDetails("sessionId", a.session.ID).
		WithDetails("asset", a.asset.Symbol)
	if sig != "" {
		perr.WithDetails("signature", sig)
	}
	o.emit(StateFailure, a.session, a.asset, sig, perr)
	return &PaymentResult{State: StateFailure, Signature: sig, Err: perr}
}

func (o *Orchestrator) emit(state PaymentState, s *Session, asset Asset, sig string, err error) {
	if o.onProgress == nil {
		return
	}
	o.onProgress(PaymentEvent{
		State:     state,
		SessionID: s.ID,
		Asset:     asset.Symbol,
		Signature: sig,
		Err:       err,
		Timestamp: time.Now(),
	})
}
