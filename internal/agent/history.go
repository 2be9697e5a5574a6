package agent

import (
	"sync"
	"time"
)

// maxHistory bounds the retained exchanges per session.
const maxHistory = 20

// Exchange is one turn of a conversation.
type Exchange struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// History keeps bounded per-session conversation context for the gateway.
type History struct {
	mu       sync.RWMutex
	sessions map[string][]Exchange
}

// NewHistory creates an empty history keeper.
func NewHistory() *History {
	return &History{sessions: make(map[string][]Exchange)}
}

// Record appends a user/assistant turn pair and trims the session to the
// retention bound.
func (h *History) Record(sessionID, userMessage, reply string) {
	now := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.sessions[sessionID],
		Exchange{Role: "user", Content: userMessage, At: now},
		Exchange{Role: "assistant", Content: reply, At: now},
	)
	if len(s) > maxHistory {
		s = s[len(s)-maxHistory:]
	}
	h.sessions[sessionID] = s
}

// Session returns a copy of the retained exchanges for a session id.
func (h *History) Session(sessionID string) []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.sessions[sessionID]
	out := make([]Exchange, len(s))
	copy(out, s)
	return out
}

// Clear drops one session's context.
func (h *History) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}

// Sessions returns the ids with retained context.
func (h *History) Sessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		out = append(out, id)
	}
	return out
}
