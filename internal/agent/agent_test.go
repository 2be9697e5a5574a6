package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/gateway"
)

// fakeGateway is a scripted Gateway double.
type fakeGateway struct {
	configured bool
	reply      core.ChatReply
	err        error
	calls      int
}

func (f *fakeGateway) Ask(ctx context.Context, message string, userContext core.UserContext, sessionID string) (core.ChatReply, error) {
	f.calls++
	if f.err != nil {
		return core.ChatReply{}, f.err
	}
	return f.reply, nil
}

func (f *fakeGateway) IsConfigured() bool { return f.configured }

// fakeRecaller is a scripted Recaller double.
type fakeRecaller struct {
	hits []string
	err  error
}

func (f *fakeRecaller) Recall(ctx context.Context, query string, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

// =============================================================================
// Classify Tests
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		wantIntent   string
		wantCategory string
		wantConf     float64
		wantUrgency  string
	}{
		{
			name:         "create task",
			message:      "Create a task to buy groceries",
			wantIntent:   IntentCreateTask,
			wantCategory: "task",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "reminder phrasing",
			message:      "Remind me to call mom tomorrow",
			wantIntent:   IntentCreateTask,
			wantCategory: "task",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "schedule meeting",
			message:      "Schedule a meeting with the design team",
			wantIntent:   IntentScheduleMeeting,
			wantCategory: "communication",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "send message",
			message:      "Send a message to Alex about lunch",
			wantIntent:   IntentSendMessage,
			wantCategory: "communication",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "post social",
			message:      "Post on twitter about the launch",
			wantIntent:   IntentPostSocial,
			wantCategory: "social",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "check schedule",
			message:      "What's my schedule for today",
			wantIntent:   IntentCheckSchedule,
			wantCategory: "information",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "search information",
			message:      "Search for the best running shoes",
			wantIntent:   IntentSearchInfo,
			wantCategory: "information",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "automate workflow",
			message:      "Set up automation for my morning routine",
			wantIntent:   IntentAutomateWorkflow,
			wantCategory: "automation",
			wantConf:     0.70,
			wantUrgency:  "medium",
		},
		{
			name:         "no pattern",
			message:      "hello there",
			wantIntent:   IntentGeneralQuery,
			wantCategory: "other",
			wantConf:     0.30,
			wantUrgency:  "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.message)
			if got.Intent != tt.wantIntent {
				t.Errorf("Classify(%q).Intent = %q, want %q", tt.message, got.Intent, tt.wantIntent)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Classify(%q).Category = %q, want %q", tt.message, got.Category, tt.wantCategory)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Classify(%q).Confidence = %v, want %v", tt.message, got.Confidence, tt.wantConf)
			}
			if got.Urgency != tt.wantUrgency {
				t.Errorf("Classify(%q).Urgency = %q, want %q", tt.message, got.Urgency, tt.wantUrgency)
			}
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	got := Classify("CREATE A TASK for the report")
	if got.Intent != IntentCreateTask {
		t.Errorf("Classify() Intent = %q, want %q", got.Intent, IntentCreateTask)
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// Matches both create_task (remind.*me.*to) and send_message
	// (message.*); rule order decides.
	got := Classify("remind me to message the landlord")
	if got.Intent != IntentCreateTask {
		t.Errorf("Classify() Intent = %q, want %q", got.Intent, IntentCreateTask)
	}
}

func TestClassify_ReasoningNamesPattern(t *testing.T) {
	got := Classify("add a task for laundry")
	if !strings.HasPrefix(got.Reasoning, "Matched pattern: ") {
		t.Errorf("Classify() Reasoning = %q, want pattern prefix", got.Reasoning)
	}

	got = Classify("zzz")
	if got.Reasoning != "No specific pattern matched" {
		t.Errorf("Classify() Reasoning = %q for unmatched input", got.Reasoning)
	}
}

// =============================================================================
// Suggest Tests
// =============================================================================

func TestSuggest(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    int
		first   string
	}{
		{
			name:    "task keyword",
			message: "create a task for me",
			want:    3,
			first:   "Would you like me to set a reminder for this task?",
		},
		{
			name:    "email keyword",
			message: "draft an email to the team",
			want:    3,
			first:   "Would you like me to schedule a follow-up reminder?",
		},
		{
			name:    "social keyword",
			message: "post this on social media",
			want:    3,
			first:   "Would you like me to schedule this post for later?",
		},
		{
			name:    "multiple keywords capped at three",
			message: "task and email and post",
			want:    3,
			first:   "Would you like me to set a reminder for this task?",
		},
		{
			name:    "no keywords",
			message: "how is the weather",
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Suggest(tt.message)
			if len(got) != tt.want {
				t.Fatalf("Suggest(%q) returned %d suggestions, want %d", tt.message, len(got), tt.want)
			}
			if tt.want > 0 && got[0] != tt.first {
				t.Errorf("Suggest(%q)[0] = %q, want %q", tt.message, got[0], tt.first)
			}
		})
	}
}

// =============================================================================
// History Tests
// =============================================================================

func TestHistory_RecordAndTrim(t *testing.T) {
	h := NewHistory()

	for i := 0; i < 15; i++ {
		h.Record("s1", "question", "answer")
	}

	got := h.Session("s1")
	if len(got) != maxHistory {
		t.Fatalf("Session() returned %d exchanges, want %d", len(got), maxHistory)
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Errorf("Session() roles = %q,%q, want user,assistant", got[0].Role, got[1].Role)
	}
}

func TestHistory_SessionIsolation(t *testing.T) {
	h := NewHistory()
	h.Record("a", "hi", "hello")
	h.Record("b", "yo", "hey")

	if got := len(h.Session("a")); got != 2 {
		t.Errorf("Session(a) length = %d, want 2", got)
	}
	if got := len(h.Session("b")); got != 2 {
		t.Errorf("Session(b) length = %d, want 2", got)
	}
	if got := len(h.Sessions()); got != 2 {
		t.Errorf("Sessions() length = %d, want 2", got)
	}
}

func TestHistory_SessionReturnsCopy(t *testing.T) {
	h := NewHistory()
	h.Record("s", "hi", "hello")

	got := h.Session("s")
	got[0].Content = "mutated"

	if h.Session("s")[0].Content != "hi" {
		t.Error("Session() exposed internal slice")
	}
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory()
	h.Record("s", "hi", "hello")
	h.Clear("s")

	if got := len(h.Session("s")); got != 0 {
		t.Errorf("Session() after Clear length = %d, want 0", got)
	}
}

// =============================================================================
// Assistant Tests
// =============================================================================

func TestAssistant_Ask_GatewayFirst(t *testing.T) {
	gw := &fakeGateway{
		configured: true,
		reply: core.ChatReply{
			Response:   "Done, the task is created.",
			Intent:     "create_task",
			Confidence: 0.95,
		},
	}
	a := NewAssistant(gw)

	got, err := a.Ask(context.Background(), "create a task", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if gw.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", gw.calls)
	}
	if got.Response != "Done, the task is created." {
		t.Errorf("Ask() Response = %q", got.Response)
	}
	if got.Confidence != 0.95 {
		t.Errorf("Ask() Confidence = %v, want gateway value 0.95", got.Confidence)
	}
	if len(got.Suggestions) == 0 {
		t.Error("Ask() should backfill suggestions when gateway returns none")
	}
	if got := len(a.History().Session("s1")); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

func TestAssistant_Ask_BackfillsIntent(t *testing.T) {
	gw := &fakeGateway{
		configured: true,
		reply:      core.ChatReply{Response: "Sure."},
	}
	a := NewAssistant(gw)

	got, err := a.Ask(context.Background(), "add a task for laundry", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.Intent != IntentCreateTask {
		t.Errorf("Ask() Intent = %q, want local classification %q", got.Intent, IntentCreateTask)
	}
	if got.Confidence != 0.70 {
		t.Errorf("Ask() Confidence = %v, want 0.70", got.Confidence)
	}
}

func TestAssistant_Ask_DegradesOnGatewayError(t *testing.T) {
	gw := &fakeGateway{configured: true, err: errors.New("connection refused")}
	a := NewAssistant(gw)

	got, err := a.Ask(context.Background(), "create a task for the report", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v, want local degradation", err)
	}
	if got.Intent != IntentCreateTask {
		t.Errorf("Ask() Intent = %q, want %q", got.Intent, IntentCreateTask)
	}
	if got.Response == "" {
		t.Error("Ask() returned empty local response")
	}
	if len(got.Suggestions) != 3 {
		t.Errorf("Ask() suggestions = %d, want 3", len(got.Suggestions))
	}
}

func TestAssistant_Ask_UnconfiguredGatewaySkipped(t *testing.T) {
	gw := &fakeGateway{configured: false}
	a := NewAssistant(gw)

	got, err := a.Ask(context.Background(), "what is my schedule today", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("gateway calls = %d, want 0 when unconfigured", gw.calls)
	}
	if got.Intent != IntentCheckSchedule {
		t.Errorf("Ask() Intent = %q, want %q", got.Intent, IntentCheckSchedule)
	}
}

func TestAssistant_Ask_NilGateway(t *testing.T) {
	a := NewAssistant(nil)

	got, err := a.Ask(context.Background(), "hello", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got.Intent != IntentGeneralQuery {
		t.Errorf("Ask() Intent = %q, want %q", got.Intent, IntentGeneralQuery)
	}
}

func TestAssistant_Ask_ContextCanceled(t *testing.T) {
	a := NewAssistant(&fakeGateway{configured: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Ask(ctx, "hello", core.UserContext{}, "s1"); err == nil {
		t.Fatal("Ask() should fail on a canceled context")
	}
}

func TestAssistant_Ask_CancelSettlesInFlightGateway(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer srv.Close()
	// Deferred calls run last-in-first-out: release the handler before
	// srv.Close waits for it, or the cleanup deadlocks.
	defer close(release)

	a := NewAssistant(gateway.NewClient(gateway.Config{BaseURL: srv.URL}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Ask(ctx, "hello", core.UserContext{}, "s1")
		done <- err
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, core.ErrCallCancelled) {
			t.Errorf("Ask() error = %v, want ErrCallCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ask() did not settle after cancel")
	}
}

func TestAssistant_Ask_RecallEnrichesSearch(t *testing.T) {
	a := NewAssistant(nil)
	a.SetRecaller(&fakeRecaller{hits: []string{"trip notes from May", "packing checklist"}})

	got, err := a.Ask(context.Background(), "search for my trip notes", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(got.Response, "trip notes from May") {
		t.Errorf("Ask() Response = %q, want memory hits included", got.Response)
	}
	if len(got.ActionsTaken) != 1 || got.ActionsTaken[0] != "searched memory" {
		t.Errorf("Ask() ActionsTaken = %v, want [searched memory]", got.ActionsTaken)
	}
}

func TestAssistant_Ask_RecallFailureIsQuiet(t *testing.T) {
	a := NewAssistant(nil)
	a.SetRecaller(&fakeRecaller{err: errors.New("qdrant down")})

	got, err := a.Ask(context.Background(), "search for my trip notes", core.UserContext{}, "s1")
	if err != nil {
		t.Fatalf("Ask() error = %v, recall failure must not propagate", err)
	}
	if got.Intent != IntentSearchInfo {
		t.Errorf("Ask() Intent = %q, want %q", got.Intent, IntentSearchInfo)
	}
}
