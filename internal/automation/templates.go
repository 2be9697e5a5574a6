package automation

import "github.com/omnihq/omni/internal/core"

// Template is a prebuilt automation the dashboard offers one-click.
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Trigger     core.TriggerType `json:"trigger"`
	TriggerSpec string           `json:"trigger_spec"`
	Actions     []Action         `json:"actions"`
	Conditions  []string         `json:"conditions,omitempty"`
}

var templates = []Template{
	{
		ID:          "morning_routine",
		Name:        "Morning Routine",
		Description: "Automated morning routine with task planning and motivation",
		Trigger:     core.TriggerTimeBased,
		TriggerSpec: "08:00",
		Actions: []Action{
			{
				Type: ActionCreateTask,
				Parameters: map[string]interface{}{
					"title":       "Plan your day",
					"description": "Review goals and prioritize tasks",
					"priority":    "high",
				},
			},
			{
				Type: ActionSendMessage,
				Parameters: map[string]interface{}{
					"message":   "Good morning! Here's your daily plan and motivation quote.",
					"recipient": "self",
				},
				DelaySeconds: 30,
			},
		},
		Conditions: []string{"work_mode"},
	},
	{
		ID:          "task_completion_celebration",
		Name:        "Task Completion Celebration",
		Description: "Celebrates completed tasks and suggests next steps",
		Trigger:     core.TriggerEventBased,
		TriggerSpec: EventTaskCompleted,
		Actions: []Action{
			{
				Type: ActionSendMessage,
				Parameters: map[string]interface{}{
					"message":   "🎉 Great job completing that task! What's next?",
					"recipient": "self",
				},
			},
			{
				Type: ActionSendNotification,
				Parameters: map[string]interface{}{
					"title":   "Task completed",
					"message": "Keep the momentum going!",
				},
			},
		},
	},
	{
		ID:          "focus_time_automation",
		Name:        "Focus Time Automation",
		Description: "Creates optimal focus environment when starting deep work",
		Trigger:     core.TriggerManual,
		TriggerSpec: "start_focus",
		Actions: []Action{
			{
				Type: ActionSendMessage,
				Parameters: map[string]interface{}{
					"message":   "🔇 Focus mode activated. I'll minimize distractions.",
					"recipient": "self",
				},
			},
			{
				Type: ActionSetReminder,
				Parameters: map[string]interface{}{
					"message":       "Time for a break!",
					"delay_minutes": 25,
				},
			},
		},
	},
	{
		ID:          "meeting_preparation",
		Name:        "Meeting Preparation",
		Description: "Prepares for upcoming meetings with relevant information",
		Trigger:     core.TriggerTimeBased,
		TriggerSpec: "every 15m",
		Actions: []Action{
			{
				Type: ActionSendMessage,
				Parameters: map[string]interface{}{
					"message":   "📅 Meeting in 15 minutes. Here's the agenda and prep materials.",
					"recipient": "self",
				},
			},
		},
		Conditions: []string{"upcoming_meeting"},
	},
	{
		ID:          "evening_wind_down",
		Name:        "Evening Wind Down",
		Description: "Helps transition from work to personal time",
		Trigger:     core.TriggerTimeBased,
		TriggerSpec: "18:00",
		Actions: []Action{
			{
				Type: ActionSendMessage,
				Parameters: map[string]interface{}{
					"message":   "🌅 Time to wind down! Here's your evening routine and tomorrow's preview.",
					"recipient": "self",
				},
			},
			{
				Type: ActionCreateTask,
				Parameters: map[string]interface{}{
					"title":       "Evening reflection",
					"description": "Review today's accomplishments and plan for tomorrow",
					"priority":    "medium",
				},
			},
		},
		Conditions: []string{"work_mode"},
	},
	{
		ID:          "health_reminder",
		Name:        "Health Reminder",
		Description: "Reminds to take breaks and maintain health habits",
		Trigger:     core.TriggerTimeBased,
		TriggerSpec: "every 2h",
		Actions: []Action{
			{
				Type: ActionSendMessage,
				Parameters: map[string]interface{}{
					"message":   "💧 Time for a water break and stretch!",
					"recipient": "self",
				},
			},
		},
		Conditions: []string{"work_mode"},
	},
	{
		ID:          "deadline_alert",
		Name:        "Deadline Alert",
		Description: "Alerts about upcoming deadlines and helps prioritize",
		Trigger:     core.TriggerConditionBased,
		TriggerSpec: "deadline_approaching",
		Actions: []Action{
			{
				Type: ActionSendNotification,
				Parameters: map[string]interface{}{
					"title":   "⚠️ Deadline approaching",
					"message": "A task is due within 24 hours. Review your priorities.",
				},
			},
		},
	},
}

// Templates returns the built-in templates in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateByID resolves a template id.
func TemplateByID(id string) (Template, bool) {
	for _, tpl := range templates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return Template{}, false
}

// Suggestion recommends a template based on observed activity.
type Suggestion struct {
	Template string `json:"template"`
	Reason   string `json:"reason"`
	Impact   string `json:"impact"`
}

// SuggestAutomations recommends templates for the activity patterns the
// caller has observed.
func SuggestAutomations(activity map[string]bool) []Suggestion {
	var suggestions []Suggestion

	if activity["frequent_task_creation"] {
		suggestions = append(suggestions, Suggestion{
			Template: "task_completion_celebration",
			Reason:   "You create many tasks - celebrate completions!",
			Impact:   "high",
		})
	}
	if activity["long_work_sessions"] {
		suggestions = append(suggestions, Suggestion{
			Template: "health_reminder",
			Reason:   "You work long sessions - stay healthy with breaks!",
			Impact:   "medium",
		})
	}
	if activity["morning_planning"] {
		suggestions = append(suggestions, Suggestion{
			Template: "morning_routine",
			Reason:   "You plan in the morning - automate your routine!",
			Impact:   "high",
		})
	}

	return suggestions
}
