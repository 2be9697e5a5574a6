package intelligence

import "github.com/omnihq/omni/internal/core"

// Profile priors used until enough history accumulates to derive them.
const (
	defaultCompletionRate = 0.75
	defaultFocusMinutes   = 180
	defaultInterruptions  = 2.5
	defaultEnergyScore    = 0.7
	defaultWorkLifeRatio  = 0.6
)

var defaultPeakHours = []int{9, 10, 11, 14, 15}

var defaultActivities = []string{"email", "meetings", "coding", "planning"}

// ProductivityMetrics summarizes task throughput and focus quality.
type ProductivityMetrics struct {
	CompletionRate   float64 `json:"daily_tasks_completed"`
	FocusTimeMinutes int     `json:"focus_time"`
	Interruptions    float64 `json:"interruption_frequency"`
	EnergyEfficiency float64 `json:"energy_efficiency"`
}

// LifeBalance summarizes the non-work side of the metrics.
type LifeBalance struct {
	WorkLifeRatio       float64 `json:"work_life_ratio"`
	HealthTrend         string  `json:"health_trend"`
	LearningVelocity    float64 `json:"learning_velocity"`
	RelationshipQuality float64 `json:"relationship_quality"`
}

// Patterns captures recurring behavior observations.
type Patterns struct {
	PeakHours          []int              `json:"peak_productivity_hours"`
	CommonActivities   []string           `json:"common_activities"`
	EnergyByPeriod     map[string]string  `json:"energy_patterns"`
	CommunicationSplit map[string]float64 `json:"communication_preferences"`
}

// Analytics is the full analytics view served by the dashboard.
type Analytics struct {
	Productivity    ProductivityMetrics `json:"productivity_metrics"`
	LifeBalance     LifeBalance         `json:"life_balance"`
	Patterns        Patterns            `json:"patterns"`
	Recommendations []Recommendation    `json:"recommendations"`
}

// Analytics assembles the analytics view. Task completion is computed
// from live task data; the remaining series fall back to profile priors
// until tracked history exists.
func (e *Engine) Analytics() (Analytics, error) {
	metrics, err := e.state.Metrics()
	if err != nil {
		return Analytics{}, err
	}
	rate, err := e.completionRate()
	if err != nil {
		return Analytics{}, err
	}
	recs, err := e.Recommendations()
	if err != nil {
		return Analytics{}, err
	}

	return Analytics{
		Productivity: ProductivityMetrics{
			CompletionRate:   rate,
			FocusTimeMinutes: defaultFocusMinutes,
			Interruptions:    defaultInterruptions,
			EnergyEfficiency: defaultEnergyScore,
		},
		LifeBalance: LifeBalance{
			WorkLifeRatio:       e.workLifeRatio(),
			HealthTrend:         healthTrend(metrics),
			LearningVelocity:    metricOr(metrics, core.MetricLearning, "velocity", 0.6),
			RelationshipQuality: categoryMean(metrics, core.MetricRelationships, 0.7),
		},
		Patterns: Patterns{
			PeakHours:        defaultPeakHours,
			CommonActivities: defaultActivities,
			EnergyByPeriod: map[string]string{
				"morning":   "high",
				"afternoon": "medium",
				"evening":   "low",
			},
			CommunicationSplit: map[string]float64{
				"email":     0.4,
				"slack":     0.3,
				"phone":     0.2,
				"in_person": 0.1,
			},
		},
		Recommendations: recs,
	}, nil
}

// healthTrend maps the health-category mean to a coarse direction label.
func healthTrend(m core.LifeMetrics) string {
	mean := categoryMean(m, core.MetricHealth, 0.5)
	switch {
	case mean >= 0.6:
		return "improving"
	case mean >= 0.4:
		return "steady"
	default:
		return "needs_attention"
	}
}

func categoryMean(m core.LifeMetrics, cat core.MetricCategory, fallback float64) float64 {
	metrics := m[cat]
	if len(metrics) == 0 {
		return fallback
	}
	var sum float64
	for _, v := range metrics {
		sum += v
	}
	return sum / float64(len(metrics))
}

func metricOr(m core.LifeMetrics, cat core.MetricCategory, name string, fallback float64) float64 {
	if v, ok := m[cat][name]; ok {
		return v
	}
	return fallback
}

// peakPeriod names the time bucket holding the most peak hours.
func peakPeriod(hours []int) string {
	if len(hours) == 0 {
		return ""
	}
	counts := map[string]int{}
	for _, h := range hours {
		switch {
		case h >= 5 && h < 12:
			counts["morning"]++
		case h >= 12 && h < 17:
			counts["afternoon"]++
		default:
			counts["evening"]++
		}
	}
	best, n := "", 0
	for _, period := range []string{"morning", "afternoon", "evening"} {
		if counts[period] > n {
			best, n = period, counts[period]
		}
	}
	return best
}
