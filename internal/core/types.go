// Package core defines the fundamental types for Omni.
// Every other package speaks in these types.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// COLLECTIONS - Logical names used against the document store
// -----------------------------------------------------------------------------

// Collection is a type-safe logical collection name.
type Collection string

const (
	CollectionTasks           Collection = "tasks"
	CollectionMessages        Collection = "messages"
	CollectionPosts           Collection = "posts"
	CollectionSocialAccounts  Collection = "social_accounts"
	CollectionTripPlans       Collection = "trip_plans"
	CollectionFinanceProfiles Collection = "finance_profiles"
	CollectionCalendarEvents  Collection = "calendar_events"
)

// -----------------------------------------------------------------------------
// SYNC - Local-first persistence status
// -----------------------------------------------------------------------------

// SyncStatus tracks where a record stands against the document store.
// Local state is authoritative for the session; sync is best-effort.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending" // queued in the outbox, not yet acknowledged
	SyncSynced  SyncStatus = "synced"  // acknowledged by the document store
	SyncFailed  SyncStatus = "failed"  // retries exhausted, divergence recorded
)

// -----------------------------------------------------------------------------
// TASK
// -----------------------------------------------------------------------------

// Priority orders tasks for display and for connector routing.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a single to-do item. Completion is an in-place boolean;
// the pending and completed views are derived filters over one collection,
// so a task lives in exactly one of them at any time.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Service     string     `json:"service"` // originating service ("local", "todoist", ...)
	Completed   bool       `json:"completed"`
	Sync        SyncStatus `json:"sync_status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// MESSAGE
// -----------------------------------------------------------------------------

// Message is one aggregated inbox entry (email, chat, DM).
// Unread is the single canonical read-state field; unread counts are always
// computed from it, never stored separately.
type Message struct {
	ID        string     `json:"id"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient,omitempty"`
	Content   string     `json:"content"`
	Service   string     `json:"service"` // "gmail", "slack", "local", ...
	Unread    bool       `json:"unread"`
	Sync      SyncStatus `json:"sync_status"`
	Timestamp time.Time  `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SOCIAL POST
// -----------------------------------------------------------------------------

// PostStatus is the lifecycle of a composed social post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostFailed    PostStatus = "failed"
)

// PostAnalytics holds per-post engagement counters.
type PostAnalytics struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

// PublishResult is the outcome of publishing to one platform.
type PublishResult struct {
	Success    bool   `json:"success"`
	PlatformID string `json:"post_id,omitempty"` // provider-side id, e.g. "tw_1712..."
	Error      string `json:"error,omitempty"`
}

// SocialPost is a post composed for one or more platforms.
type SocialPost struct {
	ID          string                   `json:"id"`
	Content     string                   `json:"content"`
	Platforms   []string                 `json:"platforms"`
	MediaURLs   []string                 `json:"media_urls,omitempty"`
	ScheduledAt *time.Time               `json:"scheduled_at,omitempty"`
	Status      PostStatus               `json:"status"`
	Analytics   PostAnalytics            `json:"analytics"`
	Results     map[string]PublishResult `json:"results,omitempty"` // keyed by platform
	Sync        SyncStatus               `json:"sync_status"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// AUTOMATION
// -----------------------------------------------------------------------------

// TriggerType says what causes an automation to run.
type TriggerType string

const (
	TriggerTimeBased      TriggerType = "time_based"
	TriggerEventBased     TriggerType = "event_based"
	TriggerConditionBased TriggerType = "condition_based"
	TriggerManual         TriggerType = "manual"
)

// Automation is a user-defined workflow. Run statistics accumulate in place;
// SuccessRate stays clamped to [0,1].
type Automation struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Trigger      TriggerType `json:"trigger"`
	TriggerSpec  string      `json:"trigger_spec,omitempty"` // "08:00", event name, condition name
	Enabled      bool        `json:"enabled"`
	ActionsCount int         `json:"actions_count"`
	RunCount     int         `json:"run_count"`
	SuccessRate  float64     `json:"success_rate"`
	LastRun      *time.Time  `json:"last_run,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// -----------------------------------------------------------------------------
// CHAT
// -----------------------------------------------------------------------------

// ChatRole distinguishes the two sides of the chat transcript.
type ChatRole string

const (
	ChatRoleUser ChatRole = "user"
	ChatRoleAI   ChatRole = "ai"
)

// ChatEntry is one line of the chat transcript. Entries are append-only and
// never mutated after creation.
type ChatEntry struct {
	ID           string    `json:"id"`
	Type         ChatRole  `json:"type"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Intent       string    `json:"intent,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	ActionsTaken []string  `json:"actions_taken,omitempty"`
	Suggestions  []string  `json:"suggestions,omitempty"`
}

// ChatReply is a settled answer to one chat message, from the remote
// gateway or the local fallback path.
type ChatReply struct {
	Response     string   `json:"response"`
	Intent       string   `json:"intent,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`
	ActionsTaken []string `json:"actions_taken,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// FallbackReply is the deterministic canned answer used whenever the
// intelligence path fails. The chat surface never shows a hard failure.
func FallbackReply() ChatReply {
	return ChatReply{
		Response:   "AI service temporarily unavailable. Please try again later.",
		Intent:     "general_query",
		Confidence: 0.3,
		Suggestions: []string{
			"Try asking about tasks",
			"Ask about your schedule",
			"Request help with organization",
		},
	}
}

// -----------------------------------------------------------------------------
// USER CONTEXT
// -----------------------------------------------------------------------------

// TimeOfDay is a coarse bucket of the current local time.
type TimeOfDay string

const (
	TimeEarlyMorning TimeOfDay = "early_morning" // 05:00-08:00
	TimeMorning      TimeOfDay = "morning"       // 08:00-12:00
	TimeAfternoon    TimeOfDay = "afternoon"     // 12:00-17:00
	TimeEvening      TimeOfDay = "evening"       // 17:00-21:00
	TimeNight        TimeOfDay = "night"
)

// EnergyLevel is a coarse estimate used by insights and the agent.
type EnergyLevel string

const (
	EnergyHigh   EnergyLevel = "high"
	EnergyMedium EnergyLevel = "medium"
	EnergyLow    EnergyLevel = "low"
)

// UserContext is the singleton situational record. It is replaced wholesale,
// never patched field by field.
type UserContext struct {
	CurrentTime    time.Time   `json:"current_time"`
	TimeOfDay      TimeOfDay   `json:"time_of_day"`
	EnergyLevel    EnergyLevel `json:"energy_level"`
	Location       string      `json:"location,omitempty"`
	CurrentFocus   string      `json:"current_focus,omitempty"`
	RecentActivity []string    `json:"recent_activity,omitempty"`
}

// -----------------------------------------------------------------------------
// LIFE METRICS
// -----------------------------------------------------------------------------

// MetricCategory is one of the seven tracked life areas.
type MetricCategory string

const (
	MetricHealth         MetricCategory = "health"
	MetricFinance        MetricCategory = "finance"
	MetricLearning       MetricCategory = "learning"
	MetricHabits         MetricCategory = "habits"
	MetricRelationships  MetricCategory = "relationships"
	MetricCareer         MetricCategory = "career"
	MetricPersonalGrowth MetricCategory = "personal_growth"
)

// MetricCategories lists all categories in display order.
func MetricCategories() []MetricCategory {
	return []MetricCategory{
		MetricHealth, MetricFinance, MetricLearning, MetricHabits,
		MetricRelationships, MetricCareer, MetricPersonalGrowth,
	}
}

// LifeMetrics maps category -> metric name -> score in [0,1].
// Scores are clamped at every mutation boundary; the overall score is always
// derived (mean of category means), never stored.
type LifeMetrics map[MetricCategory]map[string]float64

// Clone returns a deep copy.
func (m LifeMetrics) Clone() LifeMetrics {
	out := make(LifeMetrics, len(m))
	for cat, metrics := range m {
		cp := make(map[string]float64, len(metrics))
		for k, v := range metrics {
			cp[k] = v
		}
		out[cat] = cp
	}
	return out
}

// OverallScore derives the composite score: the mean of each category's mean.
// Empty categories are skipped; an empty mapping scores zero.
func (m LifeMetrics) OverallScore() float64 {
	var sum float64
	var n int
	for _, metrics := range m {
		if len(metrics) == 0 {
			continue
		}
		var catSum float64
		for _, v := range metrics {
			catSum += v
		}
		sum += catSum / float64(len(metrics))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ClampScore bounds v to [0,1]. All score-valued mutations pass through here.
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// -----------------------------------------------------------------------------
// CALENDAR
// -----------------------------------------------------------------------------

// CalendarEvent is a scheduled event. Creating one schedules reminders at
// fixed offsets before Start; deleting it cancels any still pending.
type CalendarEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Location    string     `json:"location,omitempty"`
	Service     string     `json:"service"`
	Sync        SyncStatus `json:"sync_status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// PLANNERS
// -----------------------------------------------------------------------------

// BudgetSplit is the estimated allocation of a trip budget.
type BudgetSplit struct {
	Lodging    float64 `json:"lodging"`
	Food       float64 `json:"food"`
	Transport  float64 `json:"transport"`
	Activities float64 `json:"activities"`
}

// ItineraryDay is one planned day of a trip.
type ItineraryDay struct {
	Day   int       `json:"day"`
	Date  time.Time `json:"date"`
	Theme string    `json:"theme"`
}

// TripPlan is a budgeted trip skeleton.
type TripPlan struct {
	ID          string         `json:"id"`
	Destination string         `json:"destination"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     time.Time      `json:"end_date"`
	Travelers   int            `json:"travelers"`
	Budget      float64        `json:"budget"`
	Split       BudgetSplit    `json:"split"`
	Itinerary   []ItineraryDay `json:"itinerary"`
	PerDay      float64        `json:"per_day"`
	Sync        SyncStatus     `json:"sync_status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SavingsGoal is a named target amount within a finance profile.
type SavingsGoal struct {
	Name         string  `json:"name"`
	Target       float64 `json:"target"`
	Saved        float64 `json:"saved"`
	MonthsToGoal int     `json:"months_to_goal"` // -1 when unreachable at current rate
}

// FinanceProfile is the user's budget snapshot with derived projections.
type FinanceProfile struct {
	ID              string        `json:"id"`
	MonthlyIncome   float64       `json:"monthly_income"`
	MonthlyExpenses float64       `json:"monthly_expenses"`
	SavingsRate     float64       `json:"savings_rate"` // derived, clamped to [0,1]
	Goals           []SavingsGoal `json:"goals,omitempty"`
	Sync            SyncStatus    `json:"sync_status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// MISC
// -----------------------------------------------------------------------------

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Insight is one generated observation about the user's current state.
type Insight struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "energy", "time", "pattern", "balance"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"` // "info", "suggestion", "warning"
	CreatedAt time.Time `json:"created_at"`
}
