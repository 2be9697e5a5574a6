package intelligence

import (
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
)

// Thresholds for the balance rules.
const (
	lowBalanceThreshold  = 0.4
	highBalanceThreshold = 0.8
	lowCompletionRate    = 0.6
	highWorkLifeRatio    = 0.8
)

// StateReader is the read surface the engine consumes.
type StateReader interface {
	UserContext() (core.UserContext, error)
	Metrics() (core.LifeMetrics, error)
	OverallScore() (float64, error)
	PendingTasks() ([]core.Task, error)
	CompletedTasks() ([]core.Task, error)
}

// Engine computes insights, analytics, and recommendations over the
// current state.
type Engine struct {
	state StateReader
}

// NewEngine creates an engine over a state reader.
func NewEngine(state StateReader) *Engine {
	return &Engine{state: state}
}

// Insights evaluates the rule set against the current context and metrics.
// Rules: energy (high window / low dip), time (morning planning / evening
// reflection), pattern (peak activity period), balance (overall score
// outside the healthy band).
func (e *Engine) Insights() ([]core.Insight, error) {
	uc, err := e.state.UserContext()
	if err != nil {
		return nil, err
	}
	overall, err := e.state.OverallScore()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	insights := make([]core.Insight, 0, 4)
	add := func(typ, title, message, severity string) {
		insights = append(insights, core.Insight{
			ID:        uuid.New().String(),
			Type:      typ,
			Title:     title,
			Message:   message,
			Severity:  severity,
			CreatedAt: now,
		})
	}

	switch uc.EnergyLevel {
	case core.EnergyHigh:
		add("energy", "High Energy Window",
			"You have high energy right now - perfect for tackling challenging tasks!",
			"suggestion")
	case core.EnergyLow:
		add("energy", "Low Energy Detected",
			"Your energy is low - consider taking a break or doing lighter tasks.",
			"suggestion")
	}

	switch uc.TimeOfDay {
	case core.TimeMorning:
		add("time", "Morning Planning",
			"Good morning! This is a great time to plan your day.",
			"info")
	case core.TimeEvening:
		add("time", "Evening Reflection",
			"Time to reflect on your day and prepare for tomorrow.",
			"info")
	}

	if peak := peakPeriod(defaultPeakHours); peak != "" {
		add("pattern", "Pattern Recognition",
			"You're most active during "+peak+" periods.",
			"info")
	}

	switch {
	case overall < lowBalanceThreshold:
		add("balance", "Life Balance Alert",
			"Your overall life satisfaction is below average. Consider focusing on self-care.",
			"warning")
	case overall > highBalanceThreshold:
		add("balance", "Life Balance Excellent",
			"Your life balance is excellent! Keep up the great work.",
			"info")
	}

	return insights, nil
}

// Recommendation is one actionable improvement suggestion.
type Recommendation struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Effort      string `json:"effort"`
}

// Recommendations evaluates the improvement rules against context and
// task throughput.
func (e *Engine) Recommendations() ([]Recommendation, error) {
	uc, err := e.state.UserContext()
	if err != nil {
		return nil, err
	}
	rate, err := e.completionRate()
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, 3)

	if uc.EnergyLevel == core.EnergyLow {
		recs = append(recs, Recommendation{
			Category:    "energy",
			Title:       "Energy Boost",
			Description: "Take a 10-minute walk or do some light stretching",
			Impact:      "high",
			Effort:      "low",
		})
	}

	if rate < lowCompletionRate {
		recs = append(recs, Recommendation{
			Category:    "productivity",
			Title:       "Task Prioritization",
			Description: "Use the Eisenhower Matrix to prioritize your tasks",
			Impact:      "high",
			Effort:      "medium",
		})
	}

	if e.workLifeRatio() > highWorkLifeRatio {
		recs = append(recs, Recommendation{
			Category:    "balance",
			Title:       "Work-Life Balance",
			Description: "Schedule dedicated personal time in your calendar",
			Impact:      "high",
			Effort:      "low",
		})
	}

	return recs, nil
}

// Suggestions returns a short contextual tip for a named situation.
func (e *Engine) Suggestions(situation string) ([]string, error) {
	uc, err := e.state.UserContext()
	if err != nil {
		return nil, err
	}

	switch situation {
	case "task_planning":
		if uc.EnergyLevel == core.EnergyHigh {
			return []string{"Focus on your most challenging tasks now"}, nil
		}
		return []string{"Start with quick, easy tasks to build momentum"}, nil
	case "communication":
		if uc.TimeOfDay == core.TimeMorning {
			return []string{"Send important emails now for better response rates"}, nil
		}
		return []string{"Use Slack for quick updates, save emails for tomorrow"}, nil
	case "break_planning":
		if uc.EnergyLevel == core.EnergyLow {
			return []string{"Take a longer break - try meditation or a walk"}, nil
		}
		return []string{"A 5-minute break should be sufficient"}, nil
	}
	return nil, nil
}

// workLifeRatio is a profile prior until calendar history can derive it.
func (e *Engine) workLifeRatio() float64 {
	return defaultWorkLifeRatio
}

func (e *Engine) completionRate() (float64, error) {
	completed, err := e.state.CompletedTasks()
	if err != nil {
		return 0, err
	}
	pending, err := e.state.PendingTasks()
	if err != nil {
		return 0, err
	}

	total := len(completed) + len(pending)
	if total == 0 {
		return defaultCompletionRate, nil
	}
	return float64(len(completed)) / float64(total), nil
}
