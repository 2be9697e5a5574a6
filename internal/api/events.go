package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omnihq/omni/internal/state"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.state.Events()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleCreateEvent adds a calendar event. Reminder rows for the event are
// cut by the reminder service observing the store, not here.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Start       time.Time `json:"start"`
		End         time.Time `json:"end"`
		Location    string    `json:"location"`
		Service     string    `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ev, err := s.state.AddEvent(state.EventInput{
		Title:       input.Title,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		Location:    input.Location,
		Service:     input.Service,
	})
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, ev)
}

// handleDeleteEvent removes an event; its pending reminders are cancelled
// by the same observer path that scheduled them.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.state.DeleteEvent(id); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
