package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcpproto "github.com/mark3labs/mcp-go/mcp"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
	wphttp "github.com/weknowyourgame/whiskypay-solana-sdk/http"
)

// stubVerifier returns a fixed verification result.
type stubVerifier struct {
	outcome *whiskypay.VerifyOutcome
	err     error
}

func (v *stubVerifier) Verify(context.Context, string, string, string) (*whiskypay.VerifyOutcome, error) {
	return v.outcome, v.err
}

func verifyRequest() mcpproto.CallToolRequest {
	return mcpproto.CallToolRequest{
		Params: mcpproto.CallToolParams{
			Name: "verify_payment",
			Arguments: map[string]interface{}{
				"session_id": "abc123",
				"signature":  "sig1",
			},
		},
	}
}

func resultText(t *testing.T, res *mcpproto.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcpproto.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleVerifyPayment_Success(t *testing.T) {
	s := NewServer("test", &wphttp.SessionClient{}, &stubVerifier{
		outcome: &whiskypay.VerifyOutcome{Success: true, Message: "payment verified"},
	})

	res, err := s.handleVerifyPayment(context.Background(), verifyRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatal("expected a non-error result")
	}

	var parsed struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !parsed.Success || parsed.Message != "payment verified" {
		t.Errorf("unexpected result %+v", parsed)
	}
}

func TestHandleVerifyPayment_NilOutcomeIsToolError(t *testing.T) {
	tests := []struct {
		name     string
		verifier *stubVerifier
	}{
		{"nil outcome with error", &stubVerifier{err: errors.New("backend down")}},
		{"nil outcome without error", &stubVerifier{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("test", &wphttp.SessionClient{}, tt.verifier)

			res, err := s.handleVerifyPayment(context.Background(), verifyRequest())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.IsError {
				t.Error("expected a tool error result")
			}
		})
	}
}

func TestHandleVerifyPayment_FailureOutcomeStillReported(t *testing.T) {
	s := NewServer("test", &wphttp.SessionClient{}, &stubVerifier{
		outcome: &whiskypay.VerifyOutcome{Success: false, Message: "check your account history"},
		err:     whiskypay.ErrVerificationFailed,
	})

	res, err := s.handleVerifyPayment(context.Background(), verifyRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatal("an outcome-bearing failure must surface as a result, not a tool error")
	}

	var parsed struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if parsed.Success {
		t.Error("expected success=false")
	}
}
