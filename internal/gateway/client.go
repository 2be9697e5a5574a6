// Package gateway provides the client for the remote intelligence service.
// The gateway is an opaque request/response endpoint: free text plus a
// context object in, a structured reply out. Every call settles within the
// configured timeout so the chat fallback path can always run.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/omnihq/omni/internal/core"
)

// Client calls the remote intelligence gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config for the gateway client.
type Config struct {
	BaseURL string // chat endpoint base, e.g. http://localhost:9000
	APIKey  string // optional bearer token
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: os.Getenv("OMNI_GATEWAY_URL"),
		APIKey:  os.Getenv("OMNI_GATEWAY_KEY"),
		Timeout: 15 * time.Second,
	}
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Request is the wire request structure.
type Request struct {
	Message   string      `json:"message"`
	Context   interface{} `json:"context"`
	SessionID string      `json:"session_id"`
}

// Response is the wire response structure.
type Response struct {
	Success      bool     `json:"success"`
	Response     string   `json:"response"`
	Intent       string   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	ActionsTaken []string `json:"actions_taken"`
	Suggestions  []string `json:"suggestions"`
}

// Ask sends one chat message and returns the settled reply.
func (c *Client) Ask(ctx context.Context, message string, userContext core.UserContext, sessionID string) (core.ChatReply, error) {
	if !c.IsConfigured() {
		return core.ChatReply{}, core.ErrGatewayUnavailable
	}

	body, err := json.Marshal(Request{
		Message:   message,
		Context:   userContext,
		SessionID: sessionID,
	})
	if err != nil {
		return core.ChatReply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return core.ChatReply{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.ChatReply{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ChatReply{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.ChatReply{}, fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(respBody))
	}

	var gw Response
	if err := json.Unmarshal(respBody, &gw); err != nil {
		return core.ChatReply{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if !gw.Success {
		return core.ChatReply{}, fmt.Errorf("gateway rejected message: %s", gw.Response)
	}

	return core.ChatReply{
		Response:     gw.Response,
		Intent:       gw.Intent,
		Confidence:   gw.Confidence,
		ActionsTaken: gw.ActionsTaken,
		Suggestions:  gw.Suggestions,
	}, nil
}

// IsConfigured reports whether a gateway URL is set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}
