// Package embeddings turns text into vectors through an Ollama-compatible
// endpoint. The endpoint is optional infrastructure: callers treat every
// error as "semantic features unavailable" and carry on.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Dimension of nomic-embed-text vectors; the recall collection is created
// with this size.
const Dimension uint64 = 768

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "nomic-embed-text"
)

// Config locates the embedding endpoint.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig reads the conventional Ollama env vars and falls back to a
// local instance.
func DefaultConfig() Config {
	cfg := Config{
		BaseURL: os.Getenv("OLLAMA_HOST"),
		Model:   os.Getenv("OLLAMA_EMBED_MODEL"),
		Timeout: 30 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return cfg
}

// Client embeds text against one model.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates an embedding client. Zero-valued config fields take
// the defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the model in use.
func (c *Client) Model() string { return c.model }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed: %s - %s", resp.Status, string(detail))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response carried no vector")
	}
	return out.Embedding, nil
}

// Health reports whether the endpoint answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama unhealthy: %s", resp.Status)
	}
	return nil
}
