package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/intelligence"
)

// handleGetContext returns the situational record.
func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	uc, err := s.state.UserContext()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, uc)
}

// handleUpdateContext replaces the mutable parts of the situational
// record. Time-derived fields are recomputed, not taken from the client.
func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Location       string   `json:"location"`
		CurrentFocus   string   `json:"current_focus"`
		RecentActivity []string `json:"recent_activity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	uc := intelligence.BuildContext(time.Now())
	uc.Location = input.Location
	uc.CurrentFocus = input.CurrentFocus
	uc.RecentActivity = input.RecentActivity

	if err := s.state.SetUserContext(uc); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, uc)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.respondError(w, http.StatusServiceUnavailable, "intelligence engine not configured")
		return
	}

	ins, err := s.insights.Insights()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"insights": ins,
		"count":    len(ins),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.respondError(w, http.StatusServiceUnavailable, "intelligence engine not configured")
		return
	}

	analytics, err := s.insights.Analytics()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.state.Metrics()
	if err != nil {
		s.fail(w, err)
		return
	}
	overall, _ := s.state.OverallScore()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"life_metrics":  metrics,
		"overall_score": overall,
	})
}

func (s *Server) handleGetMetricCategory(w http.ResponseWriter, r *http.Request) {
	category := core.MetricCategory(chi.URLParam(r, "category"))

	metrics, err := s.state.Metrics()
	if err != nil {
		s.fail(w, err)
		return
	}

	scores, ok := metrics[category]
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown metric category: "+string(category))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"metrics":  scores,
	})
}

// handleUpdateMetric sets one score within a category and returns the new
// derived overall score.
func (s *Server) handleUpdateMetric(w http.ResponseWriter, r *http.Request) {
	category := core.MetricCategory(chi.URLParam(r, "category"))

	var input struct {
		Metric string  `json:"metric"`
		Value  float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	overall, err := s.state.UpdateLifeMetric(category, input.Metric, input.Value)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"category":      category,
		"metric":        input.Metric,
		"value":         core.ClampScore(input.Value),
		"overall_score": overall,
	})
}
