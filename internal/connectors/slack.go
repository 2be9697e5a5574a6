package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/omnihq/omni/internal/core"
)

const slackBaseURL = "https://slack.com/api"

// Slack reads recent messages from one channel with a bot token. Slack
// wraps every response in {"ok": bool}; failures carry an "error" string
// instead of a status code.
type Slack struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	token     string
	channel   string
	team      string
	connected bool
}

// NewSlack creates a disconnected Slack connector.
func NewSlack() *Slack {
	return NewSlackWithBaseURL(slackBaseURL)
}

// NewSlackWithBaseURL creates a connector against an explicit API root.
func NewSlackWithBaseURL(baseURL string) *Slack {
	return &Slack{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the service identifier
func (s *Slack) Name() string { return "slack" }

// Connect verifies the token with auth.test. The channel to read comes
// from creds.Extra["channel"].
func (s *Slack) Connect(ctx context.Context, creds Credentials) error {
	if creds.Token == "" {
		return fmt.Errorf("slack token: %w", core.ErrMissingRequired)
	}

	s.mu.Lock()
	s.token = creds.Token
	s.channel = creds.Extra["channel"]
	s.connected = false
	s.mu.Unlock()

	var auth struct {
		OK    bool   `json:"ok"`
		Team  string `json:"team"`
		User  string `json:"user"`
		Error string `json:"error"`
	}
	if err := s.call(ctx, "auth.test", nil, &auth); err != nil {
		return fmt.Errorf("verify slack token: %w", err)
	}
	if !auth.OK {
		return fmt.Errorf("slack auth.test: %s: %w", auth.Error, core.ErrAuthenticationFailed)
	}

	s.mu.Lock()
	s.team = auth.Team
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Disconnect drops the token.
func (s *Slack) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.channel = ""
	s.team = ""
	s.connected = false
	s.mu.Unlock()
	return nil
}

// Connected reports whether auth.test has passed.
func (s *Slack) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Team returns the workspace name reported by auth.test.
func (s *Slack) Team() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.team
}

// Messages reads the last ten messages from the configured channel. With
// no channel configured there is nothing to read.
func (s *Slack) Messages(ctx context.Context) ([]core.Message, error) {
	s.mu.RLock()
	channel := s.channel
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return nil, fmt.Errorf("slack: %w", core.ErrServiceNotConnected)
	}
	if channel == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("channel", channel)
	params.Set("limit", "10")

	var history struct {
		OK       bool   `json:"ok"`
		Error    string `json:"error"`
		Messages []struct {
			Type string `json:"type"`
			User string `json:"user"`
			Text string `json:"text"`
			TS   string `json:"ts"`
		} `json:"messages"`
	}
	if err := s.call(ctx, "conversations.history", params, &history); err != nil {
		return nil, fmt.Errorf("slack history: %w", err)
	}
	if !history.OK {
		return nil, fmt.Errorf("slack conversations.history: %s", history.Error)
	}

	out := make([]core.Message, 0, len(history.Messages))
	for _, msg := range history.Messages {
		if msg.Type != "message" {
			continue
		}
		out = append(out, core.Message{
			ID:        msg.TS,
			Sender:    msg.User,
			Recipient: channel,
			Content:   msg.Text,
			Service:   "slack",
			Sync:      core.SyncSynced,
			Timestamp: slackTime(msg.TS),
		})
	}
	return out, nil
}

func (s *Slack) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	endpoint := s.baseURL + "/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// slackTime converts Slack's "seconds.microseconds" timestamp ids.
func slackTime(ts string) time.Time {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nsec int64
	if micro, err := strconv.ParseInt(fracPart, 10, 64); err == nil {
		nsec = micro * 1000
	}
	return time.Unix(sec, nsec).UTC()
}
