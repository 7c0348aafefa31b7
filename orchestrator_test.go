package whiskypay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/weknowyourgame/whiskypay-solana-sdk/retry"
)

// testSession is the canonical fixture used across orchestrator tests.
func testSession() *Session {
	return &Session{
		ID:              "abc123",
		MerchantID:      "m1",
		CustomerEmail:   "e@x.com",
		MerchantAddress: "M",
		PlanName:        "pro",
		PriceUSD:        10,
	}
}

type mockWallet struct {
	address    string
	dispatched int32
	signature  string
	submitErr  error
}

func (w *mockWallet) Address() string { return w.address }
func (w *mockWallet) SignAndSubmit(context.Context, SignableTransaction) (string, error) {
	atomic.AddInt32(&w.dispatched, 1)
	if w.submitErr != nil {
		return "", w.submitErr
	}
	return w.signature, nil
}

type mockLedger struct {
	exists      bool
	existsErr   error
	balance     uint64
	finalizeErr error
	builtNative uint64
	builtToken  uint64
}

func (l *mockLedger) AccountExists(context.Context, string, string) (bool, error) {
	return l.exists, l.existsErr
}
func (l *mockLedger) TokenBalance(context.Context, string, string) (uint64, error) {
	return l.balance, nil
}
func (l *mockLedger) SignatureStatus(context.Context, string) (Confirmation, error) {
	return ConfirmationFinalized, nil
}
func (l *mockLedger) AwaitFinalized(context.Context, string) error { return l.finalizeErr }
func (l *mockLedger) BuildNativeTransfer(_ context.Context, _, _ string, lamports uint64) (SignableTransaction, error) {
	l.builtNative = lamports
	return SignableTransaction("native"), nil
}
func (l *mockLedger) BuildTokenTransfer(_ context.Context, _, _, _ string, amount uint64, _ uint8) (SignableTransaction, error) {
	l.builtToken = amount
	return SignableTransaction("token"), nil
}

type mockQuoter struct {
	price float64
	err   error
}

func (q *mockQuoter) USDPrice(context.Context, string) (float64, error) { return q.price, q.err }

type mockSwapper struct {
	calls int32
	req   SwapRequest
}

func (s *mockSwapper) SwapTransaction(_ context.Context, req SwapRequest) (SignableTransaction, error) {
	atomic.AddInt32(&s.calls, 1)
	s.req = req
	return SignableTransaction("swap"), nil
}

type mockVerifier struct {
	calls    int32
	failures int32
	outcome  *VerifyOutcome
	err      error
}

func (v *mockVerifier) Verify(context.Context, string, string, string) (*VerifyOutcome, error) {
	n := atomic.AddInt32(&v.calls, 1)
	if n <= v.failures {
		return nil, fmt.Errorf("%w: backend unreachable", ErrVerificationFailed)
	}
	if v.err != nil {
		return nil, v.err
	}
	if v.outcome != nil {
		return v.outcome, nil
	}
	return &VerifyOutcome{Success: true, Message: "payment verified"}, nil
}

func nativeAsset() Asset { a, _ := FindAsset("SOL"); return a }
func stableAsset() Asset { a, _ := FindAsset("USDC"); return a }
func swapAsset() Asset   { a, _ := FindAsset("USDT"); return a }

func newTestOrchestrator(t *testing.T, wallet Wallet, ledger Ledger, verifier Verifier, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	base := []OrchestratorOption{
		WithVerifyRetry(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}),
		WithSafetyTimeout(0),
	}
	o, err := NewOrchestrator(wallet, ledger, verifier, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func TestPay_NativePathComputesLamports(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	ledger := &mockLedger{}
	verifier := &mockVerifier{}

	o := newTestOrchestrator(t, wallet, ledger, verifier,
		WithPriceQuoter(&mockQuoter{price: 100}))

	result, err := o.Pay(context.Background(), testSession(), nativeAsset(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateSuccess {
		t.Fatalf("expected success, got %s", result.State)
	}
	// $10 at $100/SOL is 0.1 SOL = 100_000_000 lamports.
	if ledger.builtNative != 100_000_000 {
		t.Errorf("expected 100000000 lamports, got %d", ledger.builtNative)
	}
	if !o.Signatures().Contains("sig1") {
		t.Error("expected signature recorded in the verified set")
	}
}

func TestPay_StablePathUsesFixedUnits(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	ledger := &mockLedger{}

	o := newTestOrchestrator(t, wallet, ledger, &mockVerifier{})

	result, err := o.Pay(context.Background(), testSession(), stableAsset(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateSuccess {
		t.Fatalf("expected success, got %s", result.State)
	}
	// $10 in micro-USDC.
	if ledger.builtToken != 10_000_000 {
		t.Errorf("expected 10000000 units, got %d", ledger.builtToken)
	}
}

func TestPay_NoWalletFailsFast(t *testing.T) {
	o := newTestOrchestrator(t, nil, &mockLedger{}, &mockVerifier{})

	result, err := o.Pay(context.Background(), testSession(), stableAsset(), nil)
	if !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
	if result.State != StateFailure {
		t.Errorf("expected failure state, got %s", result.State)
	}

	var perr *PaymentError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a PaymentError, got %T", err)
	}
	if perr.Code != ErrCodeFatal {
		t.Errorf("expected %s, got %s", ErrCodeFatal, perr.Code)
	}
	if perr.Details["sessionId"] != "abc123" {
		t.Errorf("expected session detail, got %v", perr.Details)
	}
}

func TestPay_FailureCarriesTaxonomyCode(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *Orchestrator
		asset Asset
		want  ErrorCode
	}{
		{
			"price lookup down",
			func(t *testing.T) *Orchestrator {
				return newTestOrchestrator(t, &mockWallet{address: "payer"}, &mockLedger{}, &mockVerifier{},
					WithPriceQuoter(&mockQuoter{err: errors.New("quote api down")}))
			},
			nativeAsset(), ErrCodeFatal,
		},
		{
			"missing source account",
			func(t *testing.T) *Orchestrator {
				return newTestOrchestrator(t, &mockWallet{address: "payer"}, &mockLedger{}, &mockVerifier{},
					WithSwapProvider(&mockSwapper{}))
			},
			swapAsset(), ErrCodeFatal,
		},
		{
			"verification exhausted",
			func(t *testing.T) *Orchestrator {
				return newTestOrchestrator(t, &mockWallet{address: "payer", signature: "sig1"},
					&mockLedger{}, &mockVerifier{failures: 99})
			},
			stableAsset(), ErrCodeAmbiguous,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(t).Pay(context.Background(), testSession(), tt.asset, nil)
			var perr *PaymentError
			if !errors.As(err, &perr) {
				t.Fatalf("expected a PaymentError, got %v", err)
			}
			if perr.Code != tt.want {
				t.Errorf("expected %s, got %s", tt.want, perr.Code)
			}
		})
	}
}

func TestPay_PriceLookupFailureIsFatal(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}

	o := newTestOrchestrator(t, wallet, &mockLedger{}, &mockVerifier{},
		WithPriceQuoter(&mockQuoter{err: errors.New("quote api down")}))

	_, err := o.Pay(context.Background(), testSession(), nativeAsset(), nil)
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	if wallet.dispatched != 0 {
		t.Error("no transaction should be dispatched on price failure")
	}
}

func TestPay_SwapPathMissingAccountAbortsBeforeDispatch(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	swapper := &mockSwapper{}

	o := newTestOrchestrator(t, wallet, &mockLedger{exists: false}, &mockVerifier{},
		WithSwapProvider(swapper))

	_, err := o.Pay(context.Background(), testSession(), swapAsset(), nil)
	if !errors.Is(err, ErrNoSourceAccount) {
		t.Fatalf("expected ErrNoSourceAccount, got %v", err)
	}
	if wallet.dispatched != 0 {
		t.Error("no transaction should be dispatched when the source account is missing")
	}
	if atomic.LoadInt32(&swapper.calls) != 0 {
		t.Error("no swap quote should be requested when the source account is missing")
	}
}

func TestPay_SwapPathEmptyBalanceAborts(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}

	o := newTestOrchestrator(t, wallet, &mockLedger{exists: true, balance: 0}, &mockVerifier{},
		WithSwapProvider(&mockSwapper{}))

	_, err := o.Pay(context.Background(), testSession(), swapAsset(), nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPay_SwapPathRequestsExactOut(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	swapper := &mockSwapper{}

	o := newTestOrchestrator(t, wallet, &mockLedger{exists: true, balance: 5_000_000}, &mockVerifier{},
		WithSwapProvider(swapper))

	result, err := o.Pay(context.Background(), testSession(), swapAsset(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateSuccess {
		t.Fatalf("expected success, got %s", result.State)
	}
	if swapper.req.AmountOut != 10_000_000 {
		t.Errorf("expected exact-out of 10000000, got %d", swapper.req.AmountOut)
	}
	if swapper.req.TargetMint != USDCMint {
		t.Errorf("expected settlement mint, got %s", swapper.req.TargetMint)
	}
}

func TestPay_ConfirmationFailureIsFatal(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	ledger := &mockLedger{finalizeErr: ErrTransactionFailed}
	verifier := &mockVerifier{}

	o := newTestOrchestrator(t, wallet, ledger, verifier)

	_, err := o.Pay(context.Background(), testSession(), stableAsset(), nil)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	if atomic.LoadInt32(&verifier.calls) != 0 {
		t.Error("verification must not run after a failed confirmation")
	}
}

func TestPay_VerificationRetriesThenSucceeds(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	verifier := &mockVerifier{failures: 2}

	o := newTestOrchestrator(t, wallet, &mockLedger{}, verifier)

	result, err := o.Pay(context.Background(), testSession(), stableAsset(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateSuccess {
		t.Fatalf("expected success, got %s", result.State)
	}
	if got := atomic.LoadInt32(&verifier.calls); got != 3 {
		t.Errorf("expected 3 verification attempts, got %d", got)
	}
}

func TestPay_VerificationExhaustionFails(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	verifier := &mockVerifier{failures: 99}

	o := newTestOrchestrator(t, wallet, &mockLedger{}, verifier)

	result, err := o.Pay(context.Background(), testSession(), stableAsset(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if result.State != StateFailure {
		t.Errorf("expected failure state, got %s", result.State)
	}
	if got := atomic.LoadInt32(&verifier.calls); got != 3 {
		t.Errorf("expected 3 verification attempts, got %d", got)
	}
}

func TestPay_CompletionInvokedExactlyOnce(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}

	var completions int32
	o := newTestOrchestrator(t, wallet, &mockLedger{}, &mockVerifier{})

	_, err := o.Pay(context.Background(), testSession(), stableAsset(), func(PaymentResult) {
		atomic.AddInt32(&completions, 1)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&completions); got != 1 {
		t.Errorf("expected exactly 1 completion, got %d", got)
	}
}

func TestPay_SafetyDeadlineCancelledOnTerminalFailure(t *testing.T) {
	wallet := &mockWallet{address: "payer", submitErr: errors.New("wallet rejected")}

	var results []PaymentResult
	o := newTestOrchestrator(t, wallet, &mockLedger{}, &mockVerifier{},
		WithSafetyTimeout(30*time.Millisecond))

	_, err := o.Pay(context.Background(), testSession(), stableAsset(), func(r PaymentResult) {
		results = append(results, r)
	})
	if err == nil {
		t.Fatal("expected an error")
	}

	// If the deadline were not cancelled it would fire here with a forced
	// success after the flow already failed.
	time.Sleep(60 * time.Millisecond)

	if len(results) != 1 {
		t.Fatalf("expected exactly 1 completion, got %d", len(results))
	}
	if results[0].Forced || results[0].State != StateFailure {
		t.Errorf("expected genuine failure completion, got %+v", results[0])
	}
}

func TestPay_SafetyDeadlineForcesCompletionWhenFlowStalls(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	stall := &stallLedger{mockLedger: &mockLedger{}, block: 200 * time.Millisecond}

	done := make(chan PaymentResult, 1)
	o := newTestOrchestrator(t, wallet, stall, &mockVerifier{},
		WithSafetyTimeout(20*time.Millisecond))

	go o.Pay(context.Background(), testSession(), stableAsset(), func(r PaymentResult) {
		done <- r
	})

	select {
	case r := <-done:
		if !r.Forced {
			t.Errorf("expected forced completion, got %+v", r)
		}
	case <-time.After(150 * time.Millisecond):
		t.Fatal("safety deadline did not force completion")
	}
}

// stallLedger blocks confirmation to simulate a silently stalled chain.
type stallLedger struct {
	*mockLedger
	block time.Duration
}

func (l *stallLedger) AwaitFinalized(ctx context.Context, sig string) error {
	select {
	case <-time.After(l.block):
	case <-ctx.Done():
	}
	return l.mockLedger.AwaitFinalized(ctx, sig)
}

func TestPay_RejectsReentrantAttempt(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}
	stall := &stallLedger{mockLedger: &mockLedger{}, block: 100 * time.Millisecond}

	o := newTestOrchestrator(t, wallet, stall, &mockVerifier{})

	started := make(chan struct{})
	go func() {
		close(started)
		o.Pay(context.Background(), testSession(), stableAsset(), nil)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err := o.Pay(context.Background(), testSession(), stableAsset(), nil)
	if !errors.Is(err, ErrPaymentInFlight) {
		t.Fatalf("expected ErrPaymentInFlight, got %v", err)
	}
}

func TestPay_EmitsStatesInOrder(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}

	var states []PaymentState
	o := newTestOrchestrator(t, wallet, &mockLedger{}, &mockVerifier{},
		WithProgress(func(ev PaymentEvent) {
			states = append(states, ev.State)
		}))

	if _, err := o.Pay(context.Background(), testSession(), stableAsset(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []PaymentState{
		StateIdle, StateWalletCheck, StatePriceLookup, StateBuilding,
		StateDispatching, StateAwaitingConfirmation, StateVerifying, StateSuccess,
	}
	if len(states) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(states), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], states[i])
		}
	}
	for _, s := range states[:len(states)-1] {
		if s.Terminal() {
			t.Errorf("intermediate event %s must not be terminal", s)
		}
	}
	if !states[len(states)-1].Terminal() {
		t.Error("final event must be terminal")
	}
}

func TestPay_EmitsSignatureOnDispatch(t *testing.T) {
	wallet := &mockWallet{address: "payer", signature: "sig1"}

	var dispatchSig string
	o := newTestOrchestrator(t, wallet, &mockLedger{}, &mockVerifier{},
		WithProgress(func(ev PaymentEvent) {
			if ev.State == StateDispatching {
				dispatchSig = ev.Signature
			}
		}))

	if _, err := o.Pay(context.Background(), testSession(), stableAsset(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispatchSig != "sig1" {
		t.Errorf("expected signature surfaced at dispatch, got %q", dispatchSig)
	}
}
