package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/storage"
)

// Budget shares per spending bucket. Lodging, food and transport are
// rounded to cents; activities absorbs the remainder so the split always
// sums to the budget exactly.
const (
	shareLodging   = 0.35
	shareFood      = 0.25
	shareTransport = 0.25
)

// maxTripDays bounds the itinerary length.
const maxTripDays = 365

// dayThemes rotate across the middle days of a trip.
var dayThemes = []string{
	"Explore the neighborhood",
	"Museums and landmarks",
	"Local food tour",
	"Day trip out of town",
	"Markets and shopping",
	"Rest and recharge",
}

// TripRequest is the trip planner form input.
type TripRequest struct {
	Destination string    `json:"destination"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Budget      float64   `json:"budget"`
	Travelers   int       `json:"travelers"`
}

// PlanTrip builds, persists and returns a budgeted trip skeleton: the
// budget split across spending buckets, a per-day allowance, and one
// itinerary entry per calendar day.
func (s *Service) PlanTrip(req TripRequest) (core.TripPlan, error) {
	plan, err := buildTripPlan(req)
	if err != nil {
		return core.TripPlan{}, err
	}

	plan.ID = newPlanID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.Sync = core.SyncPending

	if err := s.save(core.CollectionTripPlans, plan.ID, plan, now); err != nil {
		return core.TripPlan{}, fmt.Errorf("failed to save trip plan: %w", err)
	}
	s.log.Info("trip plan for %s: %d days, budget %.2f", plan.Destination, len(plan.Itinerary), plan.Budget)
	return plan, nil
}

// TripPlans returns the stored trip plans, newest first. Records that no
// longer decode are skipped.
func (s *Service) TripPlans() ([]core.TripPlan, error) {
	records, err := s.docs.Query(core.CollectionTripPlans, storage.Filter{OwnerID: s.ownerID}, storage.OrderCreatedDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip plans: %w", err)
	}
	plans := make([]core.TripPlan, 0, len(records))
	for _, rec := range records {
		var plan core.TripPlan
		if err := json.Unmarshal(rec.Data, &plan); err != nil {
			s.log.Warn("trip plan %s does not decode: %v", rec.ID, err)
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// buildTripPlan is the pure arithmetic core of PlanTrip.
func buildTripPlan(req TripRequest) (core.TripPlan, error) {
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return core.TripPlan{}, fmt.Errorf("trip destination: %w", core.ErrMissingRequired)
	}
	if req.Budget <= 0 {
		return core.TripPlan{}, fmt.Errorf("trip budget: %w", core.ErrInvalidInput)
	}
	if req.EndDate.Before(req.StartDate) {
		return core.TripPlan{}, fmt.Errorf("trip dates: %w", core.ErrInvalidInput)
	}

	days := tripDays(req.StartDate, req.EndDate)
	if days > maxTripDays {
		return core.TripPlan{}, fmt.Errorf("trip length: %w", core.ErrInvalidInput)
	}

	travelers := req.Travelers
	if travelers < 1 {
		travelers = 1
	}

	lodging := roundCents(req.Budget * shareLodging)
	food := roundCents(req.Budget * shareFood)
	transport := roundCents(req.Budget * shareTransport)
	split := core.BudgetSplit{
		Lodging:    lodging,
		Food:       food,
		Transport:  transport,
		Activities: roundCents(req.Budget - lodging - food - transport),
	}

	return core.TripPlan{
		Destination: destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Travelers:   travelers,
		Budget:      req.Budget,
		Split:       split,
		PerDay:      roundCents(req.Budget / float64(days)),
		Itinerary:   buildItinerary(req.StartDate, days),
	}, nil
}

// tripDays counts calendar days, inclusive of both ends.
func tripDays(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Hours()/24)) + 1
}

// buildItinerary lays out one entry per day: arrival first, departure
// last, themed days rotating in between.
func buildItinerary(start time.Time, days int) []core.ItineraryDay {
	itinerary := make([]core.ItineraryDay, 0, days)
	for i := 0; i < days; i++ {
		var theme string
		switch {
		case i == 0:
			theme = "Arrive and settle in"
		case i == days-1:
			theme = "Pack up and depart"
		default:
			theme = dayThemes[(i-1)%len(dayThemes)]
		}
		itinerary = append(itinerary, core.ItineraryDay{
			Day:   i + 1,
			Date:  start.AddDate(0, 0, i),
			Theme: theme,
		})
	}
	return itinerary
}
