package api

import (
	"encoding/json"
	"net/http"

	"github.com/omnihq/omni/internal/planner"
)

func (s *Server) handleListTripPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planner.TripPlans()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"count": len(plans),
	})
}

func (s *Server) handlePlanTrip(w http.ResponseWriter, r *http.Request) {
	var req planner.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	plan, err := s.planner.PlanTrip(req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListFinanceProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.planner.FinanceProfiles()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func (s *Server) handlePlanFinance(w http.ResponseWriter, r *http.Request) {
	var req planner.FinanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	profile, err := s.planner.PlanFinance(req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, profile)
}

// handlePlanMeals derives a weekly meal template from a calorie target
// and goal. Plans are derived on demand and not persisted.
func (s *Server) handlePlanMeals(w http.ResponseWriter, r *http.Request) {
	var req planner.MealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	plan, err := planner.BuildMealPlan(req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handlePlanExercise(w http.ResponseWriter, r *http.Request) {
	var req planner.ExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	plan, err := planner.BuildExercisePlan(req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}
