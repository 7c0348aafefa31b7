// Package mcp exposes checkout operations as MCP tools so agent clients can
// create sessions, inspect them, and check verification status without
// embedding the SDK directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
	wphttp "github.com/weknowyourgame/whiskypay-solana-sdk/http"
)

// Server wraps an MCP server with WhiskyPay session and verification tools.
type Server struct {
	mcpServer *mcpserver.MCPServer
	sessions  *wphttp.SessionClient
	verifier  whiskypay.Verifier
}

// NewServer creates an MCP server exposing create_session, get_session and
// verify_payment tools.
func NewServer(name string, sessions *wphttp.SessionClient, verifier whiskypay.Verifier) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, whiskypay.Version),
		sessions:  sessions,
		verifier:  verifier,
	}

	s.mcpServer.AddTool(mcpproto.NewTool(
		"create_session",
		mcpproto.WithDescription("Create a payment session for a merchant plan"),
		mcpproto.WithString("merchant_id", mcpproto.Required(), mcpproto.Description("Merchant identifier")),
		mcpproto.WithString("email", mcpproto.Required(), mcpproto.Description("Customer email address")),
		mcpproto.WithString("plan", mcpproto.Required(), mcpproto.Description("Plan name")),
	), s.handleCreateSession)

	s.mcpServer.AddTool(mcpproto.NewTool(
		"get_session",
		mcpproto.WithDescription("Fetch a payment session by id"),
		mcpproto.WithString("session_id", mcpproto.Required(), mcpproto.Description("Session identifier")),
	), s.handleGetSession)

	s.mcpServer.AddTool(mcpproto.NewTool(
		"verify_payment",
		mcpproto.WithDescription("Reconcile a transaction signature with the payment backend"),
		mcpproto.WithString("session_id", mcpproto.Required(), mcpproto.Description("Session identifier")),
		mcpproto.WithString("signature", mcpproto.Required(), mcpproto.Description("Transaction signature")),
		mcpproto.WithString("payer", mcpproto.Description("Payer wallet address")),
	), s.handleVerifyPayment)

	return s
}

// Handler returns the HTTP handler serving the MCP protocol.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start serves the MCP protocol on addr.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleCreateSession(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()
	merchantID, _ := args["merchant_id"].(string)
	email, _ := args["email"].(string)
	plan, _ := args["plan"].(string)

	id, err := s.sessions.Create(ctx, merchantID, email, plan)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]string{"sessionId": id})
}

func (s *Server) handleGetSession(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["session_id"].(string)

	session, err := s.sessions.Fetch(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]interface{}{
		"id":              session.ID,
		"merchantId":      session.MerchantID,
		"merchantName":    session.MerchantName,
		"email":           session.CustomerEmail,
		"merchantAddress": session.MerchantAddress,
		"plan":            session.PlanName,
		"priceUsd":        session.PriceUSD,
	})
}

func (s *Server) handleVerifyPayment(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	args := req.GetArguments()
	sessionID, _ := args["session_id"].(string)
	signature, _ := args["signature"].(string)
	payer, _ := args["payer"].(string)

	outcome, err := s.verifier.Verify(ctx, sessionID, signature, payer)
	if outcome == nil {
		if err == nil {
			err = whiskypay.ErrVerificationFailed
		}
		return toolError(err), nil
	}
	return toolJSON(map[string]interface{}{
		"success": outcome.Success,
		"message": outcome.Message,
	})
}

func toolJSON(v interface{}) (*mcpproto.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.NewTextContent(string(data))},
	}, nil
}

func toolError(err error) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		IsError: true,
		Content: []mcpproto.Content{mcpproto.NewTextContent(err.Error())},
	}
}
