// Package mockservers provides httptest doubles for Omni's external
// services: the intelligence gateway, the social publish service,
// Todoist, and Slack.
package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// GatewayReply is the wire shape the chat endpoint returns.
type GatewayReply struct {
	Success      bool     `json:"success"`
	Response     string   `json:"response"`
	Intent       string   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	ActionsTaken []string `json:"actions_taken"`
	Suggestions  []string `json:"suggestions"`
}

// GatewayServer mocks the remote intelligence gateway.
type GatewayServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	reply    GatewayReply
	failWith int // when non-zero, every request returns this status
	requests []string
}

// NewGatewayServer starts a gateway double with a default reply. It is
// closed when the test completes.
func NewGatewayServer(t *testing.T) *GatewayServer {
	t.Helper()

	g := &GatewayServer{
		reply: GatewayReply{
			Success:     true,
			Response:    "Here is what I found.",
			Intent:      "general_query",
			Confidence:  0.9,
			Suggestions: []string{"Show my tasks"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		g.mu.Lock()
		g.requests = append(g.requests, req.Message)
		status := g.failWith
		reply := g.reply
		g.mu.Unlock()

		if status != 0 {
			http.Error(w, "gateway down", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	})

	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Server.Close)
	return g
}

// URL returns the server's base URL.
func (g *GatewayServer) URL() string { return g.Server.URL }

// SetReply changes the reply returned to subsequent requests.
func (g *GatewayServer) SetReply(reply GatewayReply) {
	g.mu.Lock()
	g.reply = reply
	g.mu.Unlock()
}

// FailWith makes every subsequent request return the given HTTP status.
// Pass 0 to restore normal replies.
func (g *GatewayServer) FailWith(status int) {
	g.mu.Lock()
	g.failWith = status
	g.mu.Unlock()
}

// Requests returns the messages received so far.
func (g *GatewayServer) Requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requests...)
}
