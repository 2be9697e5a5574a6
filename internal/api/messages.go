package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihq/omni/internal/state"
)

// handleListMessages returns the inbox, newest first as stored, plus the
// derived unread count.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.state.Messages()
	if err != nil {
		s.fail(w, err)
		return
	}
	unread, _ := s.state.UnreadCount()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
		"unread":   unread,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Recipient string `json:"recipient"`
		Content   string `json:"content"`
		Service   string `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg, err := s.state.AddMessage(state.MessageInput{
		Sender:    "me",
		Recipient: input.Recipient,
		Content:   input.Content,
		Service:   input.Service,
	})
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.state.MarkMessageRead(id); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

func (s *Server) handleMarkMessageUnread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.state.MarkMessageUnread(id); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "marked as unread"})
}
