// Package agent implements the local intelligence layer: a pattern-based
// intent classifier, per-session conversation history, and an assistant
// that fronts the remote gateway with deterministic degradation.
package agent

import (
	"regexp"
	"strings"
)

// Intent names understood by the classifier.
const (
	IntentCreateTask       = "create_task"
	IntentScheduleMeeting  = "schedule_meeting"
	IntentSendMessage      = "send_message"
	IntentPostSocial       = "post_social"
	IntentCheckSchedule    = "check_schedule"
	IntentSearchInfo       = "search_information"
	IntentAutomateWorkflow = "automate_workflow"
	IntentGeneralQuery     = "general_query"
)

// Classification is the output of local intent analysis.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Urgency    string  `json:"urgency"`
	Relevance  float64 `json:"relevance"`
	Reasoning  string  `json:"reasoning"`
}

// intentRule pairs an intent with the patterns that signal it. Rules are
// evaluated in order and the first match wins.
type intentRule struct {
	intent   string
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

var intentRules = []intentRule{
	{IntentCreateTask, compileAll(
		`create.*task`,
		`add.*task`,
		`new.*task`,
		`remind.*me.*to`,
		`i need to`,
		`i should`,
		`i have to`,
	)},
	{IntentScheduleMeeting, compileAll(
		`schedule.*meeting`,
		`book.*meeting`,
		`arrange.*meeting`,
		`meet.*with`,
		`call.*with`,
	)},
	{IntentSendMessage, compileAll(
		`send.*message`,
		`text.*to`,
		`email.*to`,
		`contact.*`,
		`message.*`,
	)},
	{IntentPostSocial, compileAll(
		`post.*on`,
		`share.*on`,
		`update.*status`,
		`tweet.*about`,
		`post.*to.*facebook`,
		`post.*to.*instagram`,
	)},
	{IntentCheckSchedule, compileAll(
		`what.*my.*schedule`,
		`what.*am.*i.*doing`,
		`when.*is.*my.*next`,
		`check.*calendar`,
		`show.*me.*today`,
	)},
	{IntentSearchInfo, compileAll(
		`search.*for`,
		`find.*information`,
		`look.*up`,
		`what.*is`,
		`how.*to`,
		`tell.*me.*about`,
	)},
	{IntentAutomateWorkflow, compileAll(
		`automate.*this`,
		`create.*workflow`,
		`set.*up.*automation`,
		`when.*this.*happens`,
		`if.*then`,
	)},
}

var intentCategories = map[string]string{
	IntentCreateTask:       "task",
	IntentScheduleMeeting:  "communication",
	IntentSendMessage:      "communication",
	IntentPostSocial:       "social",
	IntentCheckSchedule:    "information",
	IntentSearchInfo:       "information",
	IntentAutomateWorkflow: "automation",
}

// Classify analyzes a user message against the intent rules. Matching is
// case-insensitive; an unmatched message falls through to general_query
// with low confidence.
func Classify(message string) Classification {
	lower := strings.ToLower(message)

	for _, rule := range intentRules {
		for _, p := range rule.patterns {
			if p.MatchString(lower) {
				return Classification{
					Intent:     rule.intent,
					Confidence: 0.70,
					Category:   categoryFor(rule.intent),
					Urgency:    "medium",
					Relevance:  0.50,
					Reasoning:  "Matched pattern: " + p.String(),
				}
			}
		}
	}

	return Classification{
		Intent:     IntentGeneralQuery,
		Confidence: 0.30,
		Category:   "other",
		Urgency:    "low",
		Relevance:  0.30,
		Reasoning:  "No specific pattern matched",
	}
}

func categoryFor(intent string) string {
	if c, ok := intentCategories[intent]; ok {
		return c
	}
	return "other"
}

// Suggest returns up to three follow-up suggestions keyed on message
// keywords.
func Suggest(message string) []string {
	lower := strings.ToLower(message)
	var out []string

	if strings.Contains(lower, "task") {
		out = append(out,
			"Would you like me to set a reminder for this task?",
			"Should I add this to your calendar as well?",
			"Would you like me to break this down into smaller subtasks?",
		)
	}
	if strings.Contains(lower, "message") || strings.Contains(lower, "email") {
		out = append(out,
			"Would you like me to schedule a follow-up reminder?",
			"Should I add this person to your contacts?",
			"Would you like me to create a template for similar messages?",
		)
	}
	if strings.Contains(lower, "post") || strings.Contains(lower, "social") {
		out = append(out,
			"Would you like me to schedule this post for later?",
			"Should I cross-post this to other platforms?",
			"Would you like me to suggest relevant hashtags?",
		)
	}

	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
