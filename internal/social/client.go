package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/omnihq/omni/internal/core"
)

// Client calls a hosted publish service that holds the real provider
// credentials. The daemon never talks to the platforms directly.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientConfig for the publish service client.
type ClientConfig struct {
	BaseURL string // publish service base, e.g. http://localhost:9100
	APIKey  string // optional bearer token
	Timeout time.Duration
}

// NewClient creates a publish service client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// IsConfigured reports whether a publish service URL is set.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

type publishRequest struct {
	PostID    string   `json:"postId"`
	Platforms []string `json:"platforms"`
}

type publishResponse struct {
	Success bool                          `json:"success"`
	Results map[string]core.PublishResult `json:"results"`
}

// Publish submits one post for the given platforms and returns the
// per-platform results the service settled.
func (c *Client) Publish(ctx context.Context, postID string, platforms []string) (map[string]core.PublishResult, error) {
	body, err := json.Marshal(publishRequest{PostID: postID, Platforms: platforms})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/social/publish", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("publish service error %d: %s", resp.StatusCode, string(respBody))
	}

	var pub publishResponse
	if err := json.Unmarshal(respBody, &pub); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !pub.Success {
		return nil, fmt.Errorf("publish service rejected post %s", postID)
	}
	return pub.Results, nil
}
