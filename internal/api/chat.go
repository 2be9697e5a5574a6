package api

import (
	"encoding/json"
	"net/http"
)

// handleChat runs one chat turn: the user entry and the assistant entry
// both land in the transcript, and the assistant entry comes back with
// the intent contract fields filled in.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	entry, err := s.state.SendChatMessage(r.Context(), input.Message)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"response":      entry.Content,
		"intent":        entry.Intent,
		"confidence":    entry.Confidence,
		"actions_taken": entry.ActionsTaken,
		"suggestions":   entry.Suggestions,
		"entry_id":      entry.ID,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.state.ChatHistory()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
		"typing":  s.state.IsTyping(),
	})
}
