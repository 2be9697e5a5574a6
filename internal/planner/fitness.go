package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/omnihq/omni/internal/core"
)

// Calorie shares per meal slot; they sum to 1.
var mealShares = []struct {
	name  string
	share float64
}{
	{"Breakfast", 0.25},
	{"Lunch", 0.35},
	{"Dinner", 0.30},
	{"Snack", 0.10},
}

var weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// macroShares maps a goal to its protein/carbs/fat calorie split.
var macroShares = map[string][3]float64{
	"lose":     {0.40, 0.30, 0.30},
	"maintain": {0.30, 0.40, 0.30},
	"gain":     {0.30, 0.50, 0.20},
}

// workoutFocus maps a goal to its session rotation.
var workoutFocus = map[string][]string{
	"strength":    {"Upper body", "Lower body", "Push", "Pull", "Legs and core"},
	"endurance":   {"Intervals", "Tempo run", "Long run", "Cross training", "Recovery ride"},
	"flexibility": {"Yoga flow", "Deep stretch", "Mobility drills", "Balance work", "Restorative yoga"},
	"general":     {"Full body", "Cardio", "Core and mobility", "Full body", "Cardio"},
}

// MealRequest is the meal planner form input.
type MealRequest struct {
	DailyCalories int    `json:"daily_calories"` // default 2000
	Goal          string `json:"goal"`           // lose, maintain, gain
}

// MacroTargets is the daily macro budget derived from the calorie target.
type MacroTargets struct {
	ProteinGrams int `json:"protein_grams"`
	CarbsGrams   int `json:"carbs_grams"`
	FatGrams     int `json:"fat_grams"`
}

// MealSlot is one meal of a day with its calorie allowance.
type MealSlot struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"`
}

// MealDay is one day of the weekly meal template.
type MealDay struct {
	Day   string     `json:"day"`
	Meals []MealSlot `json:"meals"`
}

// MealPlan is a weekly meal template based on a calorie target.
type MealPlan struct {
	Goal          string       `json:"goal"`
	DailyCalories int          `json:"daily_calories"`
	Macros        MacroTargets `json:"macros"`
	Days          []MealDay    `json:"days"`
}

// BuildMealPlan derives a weekly meal template: the calorie target split
// across four meal slots, and macro gram targets from the goal's split
// (protein and carbs at 4 kcal/g, fat at 9).
func BuildMealPlan(req MealRequest) (MealPlan, error) {
	calories := req.DailyCalories
	if calories == 0 {
		calories = 2000
	}
	if calories < 800 || calories > 6000 {
		return MealPlan{}, fmt.Errorf("daily calories: %w", core.ErrInvalidInput)
	}

	goal := strings.ToLower(strings.TrimSpace(req.Goal))
	if goal == "" {
		goal = "maintain"
	}
	shares, ok := macroShares[goal]
	if !ok {
		return MealPlan{}, fmt.Errorf("meal goal %q: %w", req.Goal, core.ErrInvalidInput)
	}

	slots := make([]MealSlot, len(mealShares))
	for i, m := range mealShares {
		slots[i] = MealSlot{Name: m.name, Calories: int(math.Round(float64(calories) * m.share))}
	}

	days := make([]MealDay, len(weekdays))
	for i, day := range weekdays {
		meals := make([]MealSlot, len(slots))
		copy(meals, slots)
		days[i] = MealDay{Day: day, Meals: meals}
	}

	return MealPlan{
		Goal:          goal,
		DailyCalories: calories,
		Macros: MacroTargets{
			ProteinGrams: int(math.Round(float64(calories) * shares[0] / 4)),
			CarbsGrams:   int(math.Round(float64(calories) * shares[1] / 4)),
			FatGrams:     int(math.Round(float64(calories) * shares[2] / 9)),
		},
		Days: days,
	}, nil
}

// ExerciseRequest is the exercise planner form input.
type ExerciseRequest struct {
	Goal        string `json:"goal"`          // strength, endurance, flexibility, general
	DaysPerWeek int    `json:"days_per_week"` // default 3, clamped to [1, 7]
	Minutes     int    `json:"minutes"`       // per session, default 45, clamped to [10, 180]
}

// WorkoutDay is one day of the weekly schedule. Rest days carry zero
// minutes.
type WorkoutDay struct {
	Day     string `json:"day"`
	Focus   string `json:"focus"`
	Minutes int    `json:"minutes"`
}

// ExercisePlan is a weekly workout template.
type ExercisePlan struct {
	Goal        string       `json:"goal"`
	DaysPerWeek int          `json:"days_per_week"`
	Minutes     int          `json:"minutes"`
	Schedule    []WorkoutDay `json:"schedule"`
}

// BuildExercisePlan derives a weekly schedule: training days spread evenly
// across the week, session focus rotating through the goal's split, rest
// days in between.
func BuildExercisePlan(req ExerciseRequest) (ExercisePlan, error) {
	goal := strings.ToLower(strings.TrimSpace(req.Goal))
	if goal == "" {
		goal = "general"
	}
	rotation, ok := workoutFocus[goal]
	if !ok {
		return ExercisePlan{}, fmt.Errorf("exercise goal %q: %w", req.Goal, core.ErrInvalidInput)
	}

	daysPerWeek := req.DaysPerWeek
	if daysPerWeek == 0 {
		daysPerWeek = 3
	}
	if daysPerWeek < 1 {
		daysPerWeek = 1
	}
	if daysPerWeek > 7 {
		daysPerWeek = 7
	}

	minutes := req.Minutes
	if minutes == 0 {
		minutes = 45
	}
	if minutes < 10 {
		minutes = 10
	}
	if minutes > 180 {
		minutes = 180
	}

	training := make(map[int]bool, daysPerWeek)
	for i := 0; i < daysPerWeek; i++ {
		training[i*7/daysPerWeek] = true
	}

	schedule := make([]WorkoutDay, len(weekdays))
	session := 0
	for i, day := range weekdays {
		if !training[i] {
			schedule[i] = WorkoutDay{Day: day, Focus: "Rest"}
			continue
		}
		schedule[i] = WorkoutDay{
			Day:     day,
			Focus:   rotation[session%len(rotation)],
			Minutes: minutes,
		}
		session++
	}

	return ExercisePlan{
		Goal:        goal,
		DaysPerWeek: daysPerWeek,
		Minutes:     minutes,
		Schedule:    schedule,
	}, nil
}
