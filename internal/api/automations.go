package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihq/omni/internal/automation"
)

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	autos, err := s.automations.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"automations": autos,
		"count":       len(autos),
	})
}

// handleCreateAutomation accepts either a full definition or, when
// template_id is set, instantiates a built-in template.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var input struct {
		automation.Definition
		TemplateID string `json:"template_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var (
		auto automation.Automation
		err  error
	)
	if input.TemplateID != "" {
		auto, err = s.automations.CreateFromTemplate(r.Context(), input.TemplateID)
	} else {
		auto, err = s.automations.Create(r.Context(), input.Definition)
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, auto)
}

func (s *Server) handleAutomationTemplates(w http.ResponseWriter, r *http.Request) {
	templates := automation.Templates()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// handleAutomationSuggestions recommends templates for observed activity
// patterns. Patterns come as a repeated ?pattern= query parameter.
func (s *Server) handleAutomationSuggestions(w http.ResponseWriter, r *http.Request) {
	activity := make(map[string]bool)
	for _, p := range r.URL.Query()["pattern"] {
		activity[p] = true
	}

	suggestions := automation.SuggestAutomations(activity)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

func (s *Server) handleToggleAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := s.automations.Automation(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	auto, err := s.automations.SetEnabled(r.Context(), id, !current.Enabled)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, auto)
}

// handleRunAutomation triggers a manual run. A disabled automation or an
// unmet gate condition is a conflict, not a server fault.
func (s *Server) handleRunAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.automations.Run(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.automations.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
