package mockservers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// SlackMessage is one channel history entry served by the double.
type SlackMessage struct {
	Type string `json:"type"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

// SlackServer mocks the two Slack Web API methods the connector uses:
// auth.test and conversations.history.
type SlackServer struct {
	Server *httptest.Server
	Token  string
	Team   string

	mu       sync.Mutex
	messages map[string][]SlackMessage // channel -> history
}

// NewSlackServer starts a Slack double accepting the given token.
func NewSlackServer(t *testing.T, token string) *SlackServer {
	t.Helper()

	s := &SlackServer{
		Token:    token,
		Team:     "Acme",
		messages: make(map[string][]SlackMessage),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeJSON(w, map[string]interface{}{"ok": false, "error": "invalid_auth"})
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "team": s.Team, "user": "omni-bot"})
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeJSON(w, map[string]interface{}{"ok": false, "error": "invalid_auth"})
			return
		}
		channel := r.URL.Query().Get("channel")
		s.mu.Lock()
		history := append([]SlackMessage(nil), s.messages[channel]...)
		s.mu.Unlock()
		writeJSON(w, map[string]interface{}{"ok": true, "messages": history})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the server's base URL.
func (s *SlackServer) URL() string { return s.Server.URL }

// Post adds a message to a channel's history, newest first like the API.
func (s *SlackServer) Post(channel, user, text string) {
	msg := SlackMessage{
		Type: "message",
		User: user,
		Text: text,
		TS:   fmt.Sprintf("%d.000100", time.Now().Unix()),
	}
	s.mu.Lock()
	s.messages[channel] = append([]SlackMessage{msg}, s.messages[channel]...)
	s.mu.Unlock()
}

func (s *SlackServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.Token
}
