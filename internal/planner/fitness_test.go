package planner

import (
	"errors"
	"testing"

	"github.com/omnihq/omni/internal/core"
)

func TestBuildMealPlan_Defaults(t *testing.T) {
	plan, err := BuildMealPlan(MealRequest{})
	if err != nil {
		t.Fatalf("BuildMealPlan() error = %v", err)
	}

	if plan.Goal != "maintain" || plan.DailyCalories != 2000 {
		t.Errorf("defaults = %q/%d, want maintain/2000", plan.Goal, plan.DailyCalories)
	}

	want := MacroTargets{ProteinGrams: 150, CarbsGrams: 200, FatGrams: 67}
	if plan.Macros != want {
		t.Errorf("Macros = %+v, want %+v", plan.Macros, want)
	}

	if len(plan.Days) != 7 {
		t.Fatalf("days = %d, want 7", len(plan.Days))
	}
	if plan.Days[0].Day != "Monday" || plan.Days[6].Day != "Sunday" {
		t.Errorf("week = %s..%s, want Monday..Sunday", plan.Days[0].Day, plan.Days[6].Day)
	}

	wantMeals := []MealSlot{
		{Name: "Breakfast", Calories: 500},
		{Name: "Lunch", Calories: 700},
		{Name: "Dinner", Calories: 600},
		{Name: "Snack", Calories: 200},
	}
	for d, day := range plan.Days {
		if len(day.Meals) != len(wantMeals) {
			t.Fatalf("day %d meals = %d, want %d", d, len(day.Meals), len(wantMeals))
		}
		for i, meal := range day.Meals {
			if meal != wantMeals[i] {
				t.Errorf("day %d meal[%d] = %+v, want %+v", d, i, meal, wantMeals[i])
			}
		}
	}
}

func TestBuildMealPlan_Goals(t *testing.T) {
	tests := []struct {
		goal string
		cals int
		want MacroTargets
	}{
		{"lose", 1800, MacroTargets{ProteinGrams: 180, CarbsGrams: 135, FatGrams: 60}},
		{"gain", 3000, MacroTargets{ProteinGrams: 225, CarbsGrams: 375, FatGrams: 67}},
		{" MAINTAIN ", 2400, MacroTargets{ProteinGrams: 180, CarbsGrams: 240, FatGrams: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.goal, func(t *testing.T) {
			plan, err := BuildMealPlan(MealRequest{DailyCalories: tt.cals, Goal: tt.goal})
			if err != nil {
				t.Fatalf("BuildMealPlan() error = %v", err)
			}
			if plan.Macros != tt.want {
				t.Errorf("Macros = %+v, want %+v", plan.Macros, tt.want)
			}
		})
	}
}

func TestBuildMealPlan_Validation(t *testing.T) {
	if _, err := BuildMealPlan(MealRequest{DailyCalories: 500}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("low calories error = %v, want ErrInvalidInput", err)
	}
	if _, err := BuildMealPlan(MealRequest{DailyCalories: 9000}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("high calories error = %v, want ErrInvalidInput", err)
	}
	if _, err := BuildMealPlan(MealRequest{Goal: "bulk"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("unknown goal error = %v, want ErrInvalidInput", err)
	}
}

func TestBuildExercisePlan_Defaults(t *testing.T) {
	plan, err := BuildExercisePlan(ExerciseRequest{})
	if err != nil {
		t.Fatalf("BuildExercisePlan() error = %v", err)
	}

	if plan.Goal != "general" || plan.DaysPerWeek != 3 || plan.Minutes != 45 {
		t.Errorf("defaults = %q/%d/%d, want general/3/45", plan.Goal, plan.DaysPerWeek, plan.Minutes)
	}
	if len(plan.Schedule) != 7 {
		t.Fatalf("schedule = %d entries, want 7", len(plan.Schedule))
	}

	// Three sessions spread Monday / Wednesday / Friday.
	wantFocus := map[string]string{
		"Monday":    "Full body",
		"Wednesday": "Cardio",
		"Friday":    "Core and mobility",
	}
	sessions := 0
	for _, day := range plan.Schedule {
		focus, training := wantFocus[day.Day]
		if training {
			sessions++
			if day.Focus != focus || day.Minutes != 45 {
				t.Errorf("%s = %q/%d, want %q/45", day.Day, day.Focus, day.Minutes, focus)
			}
			continue
		}
		if day.Focus != "Rest" || day.Minutes != 0 {
			t.Errorf("%s = %q/%d, want a rest day", day.Day, day.Focus, day.Minutes)
		}
	}
	if sessions != 3 {
		t.Errorf("training days = %d, want 3", sessions)
	}
}

func TestBuildExercisePlan_StrengthSplit(t *testing.T) {
	plan, err := BuildExercisePlan(ExerciseRequest{Goal: "strength", DaysPerWeek: 5, Minutes: 60})
	if err != nil {
		t.Fatalf("BuildExercisePlan() error = %v", err)
	}

	var focuses []string
	for _, day := range plan.Schedule {
		if day.Focus != "Rest" {
			focuses = append(focuses, day.Focus)
		}
	}
	want := []string{"Upper body", "Lower body", "Push", "Pull", "Legs and core"}
	if len(focuses) != len(want) {
		t.Fatalf("training days = %d, want %d", len(focuses), len(want))
	}
	for i := range want {
		if focuses[i] != want[i] {
			t.Errorf("session %d = %q, want %q", i, focuses[i], want[i])
		}
	}
}

func TestBuildExercisePlan_Clamps(t *testing.T) {
	plan, err := BuildExercisePlan(ExerciseRequest{Goal: "endurance", DaysPerWeek: 12, Minutes: 500})
	if err != nil {
		t.Fatalf("BuildExercisePlan() error = %v", err)
	}
	if plan.DaysPerWeek != 7 || plan.Minutes != 180 {
		t.Errorf("clamped = %d days/%d min, want 7/180", plan.DaysPerWeek, plan.Minutes)
	}
	for _, day := range plan.Schedule {
		if day.Focus == "Rest" {
			t.Errorf("%s is a rest day in a 7-day week", day.Day)
		}
	}

	short, _ := BuildExercisePlan(ExerciseRequest{Minutes: 3})
	if short.Minutes != 10 {
		t.Errorf("minutes floor = %d, want 10", short.Minutes)
	}
}

func TestBuildExercisePlan_UnknownGoal(t *testing.T) {
	if _, err := BuildExercisePlan(ExerciseRequest{Goal: "parkour"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("unknown goal error = %v, want ErrInvalidInput", err)
	}
}
