package automation

import (
	"context"
	"testing"

	"github.com/omnihq/omni/internal/core"
)

func TestTemplates(t *testing.T) {
	wantIDs := []string{
		"morning_routine",
		"task_completion_celebration",
		"focus_time_automation",
		"meeting_preparation",
		"evening_wind_down",
		"health_reminder",
		"deadline_alert",
	}

	tpls := Templates()
	if len(tpls) != len(wantIDs) {
		t.Fatalf("Templates() = %d entries, want %d", len(tpls), len(wantIDs))
	}
	for i, tpl := range tpls {
		if tpl.ID != wantIDs[i] {
			t.Errorf("templates[%d].ID = %q, want %q", i, tpl.ID, wantIDs[i])
		}
		if tpl.Name == "" || tpl.Description == "" {
			t.Errorf("template %q missing name or description", tpl.ID)
		}
		if len(tpl.Actions) == 0 {
			t.Errorf("template %q has no actions", tpl.ID)
		}
	}

	// Mutating the returned slice must not touch the builtins.
	tpls[0].Name = "scribbled"
	if fresh := Templates(); fresh[0].Name == "scribbled" {
		t.Error("Templates() exposes the builtin slice")
	}
}

func TestTemplateByID(t *testing.T) {
	tpl, ok := TemplateByID("health_reminder")
	if !ok {
		t.Fatal("TemplateByID(health_reminder) not found")
	}
	if tpl.Trigger != core.TriggerTimeBased || tpl.TriggerSpec != "every 2h" {
		t.Errorf("template = %+v, want the two-hourly schedule", tpl)
	}

	if _, ok := TemplateByID("underwater_basket"); ok {
		t.Error("TemplateByID(unknown) = ok")
	}
}

func TestTemplates_AllInstantiate(t *testing.T) {
	engine, st, _ := createTestEngine(t)

	for _, tpl := range Templates() {
		if _, err := engine.CreateFromTemplate(context.Background(), tpl.ID); err != nil {
			t.Errorf("CreateFromTemplate(%q) error = %v", tpl.ID, err)
		}
	}

	mirrors, err := st.Automations()
	if err != nil {
		t.Fatalf("Automations() error = %v", err)
	}
	if len(mirrors) != len(Templates()) {
		t.Errorf("mirror count = %d, want %d", len(mirrors), len(Templates()))
	}
}

func TestSuggestAutomations(t *testing.T) {
	tests := []struct {
		name     string
		activity map[string]bool
		want     []Suggestion
	}{
		{
			"no patterns",
			map[string]bool{},
			nil,
		},
		{
			"frequent task creation",
			map[string]bool{"frequent_task_creation": true},
			[]Suggestion{{
				Template: "task_completion_celebration",
				Reason:   "You create many tasks - celebrate completions!",
				Impact:   "high",
			}},
		},
		{
			"long work sessions",
			map[string]bool{"long_work_sessions": true},
			[]Suggestion{{
				Template: "health_reminder",
				Reason:   "You work long sessions - stay healthy with breaks!",
				Impact:   "medium",
			}},
		},
		{
			"morning planning",
			map[string]bool{"morning_planning": true},
			[]Suggestion{{
				Template: "morning_routine",
				Reason:   "You plan in the morning - automate your routine!",
				Impact:   "high",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestAutomations(tt.activity)
			if len(got) != len(tt.want) {
				t.Fatalf("SuggestAutomations() = %d suggestions, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("suggestion[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSuggestAutomations_AllPatterns(t *testing.T) {
	got := SuggestAutomations(map[string]bool{
		"frequent_task_creation": true,
		"long_work_sessions":     true,
		"morning_planning":       true,
	})
	if len(got) != 3 {
		t.Fatalf("SuggestAutomations() = %d, want 3", len(got))
	}
	order := []string{"task_completion_celebration", "health_reminder", "morning_routine"}
	for i, want := range order {
		if got[i].Template != want {
			t.Errorf("suggestion[%d] = %q, want %q", i, got[i].Template, want)
		}
	}
}
