package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/state"
)

// handleListTasks returns tasks, optionally filtered by ?status=pending
// or ?status=completed.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []core.Task
		err   error
	)
	switch r.URL.Query().Get("status") {
	case "pending":
		tasks, err = s.state.PendingTasks()
	case "completed":
		tasks, err = s.state.CompletedTasks()
	default:
		tasks, err = s.state.Tasks()
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Priority    string     `json:"priority"`
		DueDate     *time.Time `json:"due_date"`
		Service     string     `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	task, err := s.state.AddTask(state.TaskInput{
		Title:       input.Title,
		Description: input.Description,
		Priority:    core.Priority(input.Priority),
		DueDate:     input.DueDate,
		Service:     input.Service,
	})
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input struct {
		Title        *string    `json:"title"`
		Description  *string    `json:"description"`
		Priority     *string    `json:"priority"`
		DueDate      *time.Time `json:"due_date"`
		ClearDueDate bool       `json:"clear_due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch := state.TaskPatch{
		Title:        input.Title,
		Description:  input.Description,
		DueDate:      input.DueDate,
		ClearDueDate: input.ClearDueDate,
	}
	if input.Priority != nil {
		p := core.Priority(*input.Priority)
		patch.Priority = &p
	}

	task, err := s.state.UpdateTask(id, patch)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, task)
}

// handleDeleteTask removes a task. Deleting an unknown id succeeds; the
// end state is the same either way.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.state.DeleteTask(id); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := s.state.CompleteTask(id)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := s.state.ToggleTask(id)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, task)
}
