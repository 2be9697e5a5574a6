package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/storage"
)

const (
	// goalHorizonMonths caps projections; a goal beyond it reports -1.
	goalHorizonMonths = 600

	// maxAnnualReturn bounds the assumed investment return.
	maxAnnualReturn = 0.20
)

// GoalInput is one savings target on the finance planner form.
type GoalInput struct {
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Saved  float64 `json:"saved"`
}

// FinanceRequest is the finance planner form input. AnnualReturn is the
// assumed investment return; it is clamped to [0, 0.20] and defaults to
// cash (zero growth).
type FinanceRequest struct {
	MonthlyIncome   float64     `json:"monthly_income"`
	MonthlyExpenses float64     `json:"monthly_expenses"`
	AnnualReturn    float64     `json:"annual_return"`
	Goals           []GoalInput `json:"goals,omitempty"`
}

// PlanFinance derives a finance profile from the budget form: savings
// rate, and for every goal the months until it is reached at the current
// monthly surplus with returns compounded monthly. The profile is
// persisted; the newest one is the current profile.
func (s *Service) PlanFinance(req FinanceRequest) (core.FinanceProfile, error) {
	profile, err := buildFinanceProfile(req)
	if err != nil {
		return core.FinanceProfile{}, err
	}

	profile.ID = newPlanID()
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	profile.Sync = core.SyncPending

	if err := s.save(core.CollectionFinanceProfiles, profile.ID, profile, now); err != nil {
		return core.FinanceProfile{}, fmt.Errorf("failed to save finance profile: %w", err)
	}
	s.log.Info("finance profile: savings rate %.0f%%, %d goals", profile.SavingsRate*100, len(profile.Goals))
	return profile, nil
}

// FinanceProfiles returns the stored profiles, newest first.
func (s *Service) FinanceProfiles() ([]core.FinanceProfile, error) {
	records, err := s.docs.Query(core.CollectionFinanceProfiles, storage.Filter{OwnerID: s.ownerID}, storage.OrderCreatedDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to list finance profiles: %w", err)
	}
	profiles := make([]core.FinanceProfile, 0, len(records))
	for _, rec := range records {
		var profile core.FinanceProfile
		if err := json.Unmarshal(rec.Data, &profile); err != nil {
			s.log.Warn("finance profile %s does not decode: %v", rec.ID, err)
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// buildFinanceProfile is the pure arithmetic core of PlanFinance.
func buildFinanceProfile(req FinanceRequest) (core.FinanceProfile, error) {
	if req.MonthlyIncome <= 0 {
		return core.FinanceProfile{}, fmt.Errorf("monthly income: %w", core.ErrInvalidInput)
	}
	if req.MonthlyExpenses < 0 {
		return core.FinanceProfile{}, fmt.Errorf("monthly expenses: %w", core.ErrInvalidInput)
	}

	monthly := req.MonthlyIncome - req.MonthlyExpenses
	annualReturn := clampRate(req.AnnualReturn, maxAnnualReturn)

	goals := make([]core.SavingsGoal, 0, len(req.Goals))
	for _, g := range req.Goals {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return core.FinanceProfile{}, fmt.Errorf("goal name: %w", core.ErrMissingRequired)
		}
		if g.Target <= 0 || g.Saved < 0 {
			return core.FinanceProfile{}, fmt.Errorf("goal %q amounts: %w", name, core.ErrInvalidInput)
		}
		goals = append(goals, core.SavingsGoal{
			Name:         name,
			Target:       g.Target,
			Saved:        g.Saved,
			MonthsToGoal: MonthsToGoal(g.Saved, g.Target, monthly, annualReturn),
		})
	}

	return core.FinanceProfile{
		MonthlyIncome:   req.MonthlyIncome,
		MonthlyExpenses: req.MonthlyExpenses,
		SavingsRate:     core.ClampScore(monthly / req.MonthlyIncome),
		Goals:           goals,
	}, nil
}

// MonthsToGoal counts the months of saving monthly, compounded at
// annualReturn, until balance reaches target. 0 means already there; -1
// means unreachable within the horizon.
func MonthsToGoal(balance, target, monthly, annualReturn float64) int {
	if balance >= target {
		return 0
	}
	if monthly <= 0 && (annualReturn <= 0 || balance <= 0) {
		return -1
	}
	rate := clampRate(annualReturn, maxAnnualReturn) / 12
	for month := 1; month <= goalHorizonMonths; month++ {
		balance = balance*(1+rate) + monthly
		if balance >= target {
			return month
		}
	}
	return -1
}

// ProjectSavings returns month-end balances for saving monthly at an
// annual return compounded monthly, starting from balance. months is
// clamped to [1, 600].
func ProjectSavings(balance, monthly, annualReturn float64, months int) []float64 {
	if months < 1 {
		months = 1
	}
	if months > goalHorizonMonths {
		months = goalHorizonMonths
	}
	rate := clampRate(annualReturn, maxAnnualReturn) / 12

	out := make([]float64, months)
	for i := range out {
		balance = balance*(1+rate) + monthly
		out[i] = roundCents(balance)
	}
	return out
}

// clampRate bounds a rate to [0, max].
func clampRate(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
