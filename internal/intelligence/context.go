// Package intelligence derives situational context, insights, analytics,
// and recommendations from the local state. Everything here is computed;
// nothing is stored except through the state container.
package intelligence

import (
	"time"

	"github.com/omnihq/omni/internal/core"
)

// TimeOfDayAt buckets a clock time.
func TimeOfDayAt(t time.Time) core.TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 8:
		return core.TimeEarlyMorning
	case h >= 8 && h < 12:
		return core.TimeMorning
	case h >= 12 && h < 17:
		return core.TimeAfternoon
	case h >= 17 && h < 21:
		return core.TimeEvening
	default:
		return core.TimeNight
	}
}

// EnergyFor estimates energy from the time bucket: mornings run high,
// afternoons medium, everything else low.
func EnergyFor(tod core.TimeOfDay) core.EnergyLevel {
	switch tod {
	case core.TimeMorning:
		return core.EnergyHigh
	case core.TimeAfternoon:
		return core.EnergyMedium
	default:
		return core.EnergyLow
	}
}

// BuildContext assembles a fresh situational record for the given time.
// Location and focus start at their neutral defaults until the user sets
// them.
func BuildContext(now time.Time) core.UserContext {
	tod := TimeOfDayAt(now)
	return core.UserContext{
		CurrentTime:  now,
		TimeOfDay:    tod,
		EnergyLevel:  EnergyFor(tod),
		Location:     "Unknown",
		CurrentFocus: "General",
	}
}

// DefaultMetrics seeds the seven life-metric categories with baseline
// scores. Raw quantities from tracked habits (sleep hours, workout
// minutes, streak days) are expressed against their targets so every
// stored value is a [0,1] score and the overall mean stays meaningful.
func DefaultMetrics() core.LifeMetrics {
	return core.LifeMetrics{
		core.MetricHealth: {
			"sleep":     0.83,
			"exercise":  0.5,
			"hydration": 0.8,
			"energy":    0.7,
			"mood":      0.6,
		},
		core.MetricFinance: {
			"savings":      0.3,
			"growth":       0.8,
			"stability":    0.6,
			"debt_control": 0.8,
		},
		core.MetricLearning: {
			"velocity":    0.6,
			"consistency": 0.7,
			"progress":    0.5,
		},
		core.MetricHabits: {
			"morning_routine":      1.0,
			"exercise_consistency": 0.8,
			"meditation":           0.6,
			"reading":              0.7,
			"journaling":           0.4,
			"streak":               0.7,
		},
		core.MetricRelationships: {
			"family_time":   0.7,
			"connections":   0.5,
			"social_energy": 0.6,
			"communication": 0.8,
			"satisfaction":  0.7,
		},
		core.MetricCareer: {
			"job_satisfaction":  0.7,
			"productivity":      0.8,
			"skill_development": 0.6,
			"work_life_balance": 0.5,
			"growth":            0.6,
			"collaboration":     0.8,
		},
		core.MetricPersonalGrowth: {
			"goal_achievement":   0.6,
			"self_reflection":    0.7,
			"creativity":         0.5,
			"spiritual_practice": 0.3,
			"hobby_engagement":   0.6,
			"fulfillment":        0.6,
		},
	}
}
