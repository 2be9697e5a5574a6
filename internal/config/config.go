// Package config handles Omni configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Logging
	LogLevel string `json:"log_level"`

	// Server
	Server ServerConfig `json:"server"`

	// External services
	Gateway  GatewayConfig  `json:"gateway"`
	Social   SocialConfig   `json:"social"`
	Qdrant   QdrantConfig   `json:"qdrant"`
	Ollama   OllamaConfig   `json:"ollama"`
	Services ServicesConfig `json:"services"`

	// Features
	Features FeatureConfig `json:"features"`
}

// ServerConfig for the HTTP server
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// GatewayConfig for the remote intelligence gateway
type GatewayConfig struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SocialConfig for the remote social-publish endpoint
type SocialConfig struct {
	PublishURL     string `json:"publish_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// QdrantConfig for the vector database
type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// OllamaConfig for local embeddings
type OllamaConfig struct {
	URL   string `json:"url"`
	Model string `json:"model"`
}

// ServicesConfig holds credentials for task/message connectors.
// Tokens are never written back to disk.
type ServicesConfig struct {
	TodoistToken      string `json:"todoist_token,omitempty"`
	SlackToken        string `json:"slack_token,omitempty"`
	GoogleCredentials string `json:"google_credentials,omitempty"` // path to oauth client file
}

// FeatureConfig for feature flags
type FeatureConfig struct {
	EnableSync        bool `json:"enable_sync"`        // outbox drain loop
	EnableRecall      bool `json:"enable_recall"`      // vector memory
	EnableAutomations bool `json:"enable_automations"` // automation engine
	DebugMode         bool `json:"debug_mode"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir:  filepath.Join(home, ".omni"),
		LogLevel: "info",
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Gateway: GatewayConfig{
			URL:            os.Getenv("OMNI_GATEWAY_URL"),
			APIKey:         os.Getenv("OMNI_GATEWAY_KEY"),
			TimeoutSeconds: 15,
		},
		Social: SocialConfig{
			PublishURL:     os.Getenv("OMNI_SOCIAL_URL"),
			TimeoutSeconds: 20,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Ollama: OllamaConfig{
			URL:   "http://localhost:11434",
			Model: "nomic-embed-text",
		},
		Services: ServicesConfig{
			TodoistToken: os.Getenv("TODOIST_API_TOKEN"),
			SlackToken:   os.Getenv("SLACK_BOT_TOKEN"),
		},
		Features: FeatureConfig{
			EnableSync:        true,
			EnableRecall:      true,
			EnableAutomations: true,
			DebugMode:         false,
		},
	}
}

// Load loads config from file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.applyEnv(), nil // Use defaults
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg.applyEnv(), nil
}

// applyEnv lets environment variables override file values.
func (c *Config) applyEnv() *Config {
	if dir := os.Getenv("OMNI_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if port := os.Getenv("OMNI_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if url := os.Getenv("OMNI_GATEWAY_URL"); url != "" {
		c.Gateway.URL = url
	}
	if key := os.Getenv("OMNI_GATEWAY_KEY"); key != "" {
		c.Gateway.APIKey = key
	}
	if url := os.Getenv("OMNI_SOCIAL_URL"); url != "" {
		c.Social.PublishURL = url
	}
	if tok := os.Getenv("TODOIST_API_TOKEN"); tok != "" {
		c.Services.TodoistToken = tok
	}
	if tok := os.Getenv("SLACK_BOT_TOKEN"); tok != "" {
		c.Services.SlackToken = tok
	}
	if lvl := os.Getenv("OMNI_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	return c
}

// DatabasePath returns the SQLite database location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "omni.db")
}

// SnapshotPath returns the durable state snapshot location.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "snapshot.json")
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Don't save service tokens to file
	safeCfg := *c
	safeCfg.Gateway.APIKey = ""
	safeCfg.Services.TodoistToken = ""
	safeCfg.Services.SlackToken = ""

	data, err := json.MarshalIndent(safeCfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
