package state

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/omnihq/omni/internal/core"
)

// =============================================================================
// Test doubles
// =============================================================================

type queuedOp struct {
	kind       string
	collection core.Collection
	entityID   string
}

// fakeQueue records every outbox enqueue.
type fakeQueue struct {
	mu  sync.Mutex
	ops []queuedOp
}

func (q *fakeQueue) EnqueueCreate(c core.Collection, id string, record interface{}) {
	q.record(queuedOp{kind: "create", collection: c, entityID: id})
}

func (q *fakeQueue) EnqueueUpdate(c core.Collection, id string, patch interface{}) {
	q.record(queuedOp{kind: "update", collection: c, entityID: id})
}

func (q *fakeQueue) EnqueueDelete(c core.Collection, id string) {
	q.record(queuedOp{kind: "delete", collection: c, entityID: id})
}

func (q *fakeQueue) EnqueuePublish(postID string, platforms []string) {
	q.record(queuedOp{kind: "publish", entityID: postID})
}

func (q *fakeQueue) record(op queuedOp) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

func (q *fakeQueue) last() queuedOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return queuedOp{}
	}
	return q.ops[len(q.ops)-1]
}

// memSnapshots keeps the latest snapshot in memory, with injectable failures.
type memSnapshots struct {
	mu      sync.Mutex
	snap    *Snapshot
	saves   int
	saveErr error
	loadErr error
}

func (m *memSnapshots) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = &snap
	m.saves++
	return nil
}

func (m *memSnapshots) Load() (*Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	if m.snap == nil {
		return nil, false, nil
	}
	cp := *m.snap
	return &cp, true, nil
}

// fakeAssistant answers with a fixed reply or error.
type fakeAssistant struct {
	reply core.ChatReply
	err   error
	calls int
}

func (a *fakeAssistant) Ask(ctx context.Context, message string, uc core.UserContext, sessionID string) (core.ChatReply, error) {
	a.calls++
	if a.err != nil {
		return core.ChatReply{}, a.err
	}
	return a.reply, nil
}

func testMetrics() core.LifeMetrics {
	return core.LifeMetrics{
		core.MetricHealth: {"sleep_quality": 0.8, "energy": 0.6},
		core.MetricCareer: {"job_satisfaction": 0.7},
	}
}

// readyStore builds an initialized store around the given collaborators.
func readyStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.OwnerID == "" {
		cfg.OwnerID = "owner-test"
	}
	if cfg.DefaultMetrics == nil {
		cfg.DefaultMetrics = testMetrics
	}
	s := NewStore(cfg)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStore_ReadsBeforeInitialize(t *testing.T) {
	s := NewStore(Config{OwnerID: "o"})

	if _, err := s.Tasks(); !errors.Is(err, core.ErrNotReady) {
		t.Errorf("Tasks() before init error = %v, want ErrNotReady", err)
	}
	if _, err := s.Messages(); !errors.Is(err, core.ErrNotReady) {
		t.Errorf("Messages() before init error = %v, want ErrNotReady", err)
	}
	if _, err := s.UnreadCount(); !errors.Is(err, core.ErrNotReady) {
		t.Errorf("UnreadCount() before init error = %v, want ErrNotReady", err)
	}
	if _, err := s.AddTask(TaskInput{Title: "x"}); !errors.Is(err, core.ErrNotReady) {
		t.Errorf("AddTask() before init error = %v, want ErrNotReady", err)
	}
}

func TestStore_Initialize_SeedsDefaults(t *testing.T) {
	s := readyStore(t, Config{})

	if s.Phase() != PhaseReady {
		t.Fatalf("Phase() = %v, want ready", s.Phase())
	}
	if s.SessionID() == "" {
		t.Error("SessionID() should be set after Initialize")
	}

	metrics, err := s.Metrics()
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if !reflect.DeepEqual(metrics, testMetrics()) {
		t.Errorf("Metrics() = %v, want seeded defaults", metrics)
	}
}

func TestStore_Initialize_LoadFailureIsSticky(t *testing.T) {
	boom := errors.New("disk gone")
	snaps := &memSnapshots{loadErr: boom}
	s := NewStore(Config{OwnerID: "o", Snapshots: snaps})

	if err := s.Initialize(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Initialize() error = %v, want %v", err, boom)
	}
	if s.Phase() != PhaseUninitialized {
		t.Errorf("Phase() after failure = %v, want uninitialized", s.Phase())
	}
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Err() = %v, want sticky %v", s.Err(), boom)
	}

	// The caller retries explicitly once the fault clears.
	snaps.loadErr = nil
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("retry Initialize() error = %v", err)
	}
	if !errors.Is(s.Err(), boom) {
		t.Error("error flag should stay sticky until cleared")
	}
	s.ClearError()
	if s.Err() != nil {
		t.Errorf("Err() after ClearError = %v, want nil", s.Err())
	}
}

func TestStore_Reset_RequiresReinitialize(t *testing.T) {
	s := readyStore(t, Config{})
	if _, err := s.AddTask(TaskInput{Title: "keep me"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	s.Reset()

	if s.Phase() != PhaseUninitialized {
		t.Fatalf("Phase() after Reset = %v, want uninitialized", s.Phase())
	}
	if _, err := s.Tasks(); !errors.Is(err, core.ErrNotReady) {
		t.Errorf("Tasks() after Reset error = %v, want ErrNotReady", err)
	}

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() after Reset error = %v", err)
	}
	tasks, err := s.Tasks()
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Tasks() after Reset+Initialize = %d entries, want 0", len(tasks))
	}
}

// =============================================================================
// Task Tests
// =============================================================================

func TestStore_AddTask_Defaults(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	task, err := s.AddTask(TaskInput{Title: "  write report  "})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	if task.ID == "" {
		t.Error("task id should be assigned")
	}
	if task.Title != "write report" {
		t.Errorf("Title = %q, want trimmed", task.Title)
	}
	if task.Priority != core.PriorityMedium {
		t.Errorf("Priority = %v, want medium default", task.Priority)
	}
	if task.Completed {
		t.Error("new task should not be completed")
	}
	if task.Service != "local" {
		t.Errorf("Service = %q, want local default", task.Service)
	}
	if task.Sync != core.SyncPending {
		t.Errorf("Sync = %v, want pending", task.Sync)
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v on a fresh task", task.CreatedAt, task.UpdatedAt)
	}

	if got := queue.last(); got.kind != "create" || got.collection != core.CollectionTasks || got.entityID != task.ID {
		t.Errorf("outbox op = %+v, want tasks create for %s", got, task.ID)
	}
}

func TestStore_AddTask_EmptyTitle(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	if _, err := s.AddTask(TaskInput{Title: "   "}); !errors.Is(err, core.ErrMissingRequired) {
		t.Fatalf("AddTask() error = %v, want ErrMissingRequired", err)
	}

	tasks, _ := s.Tasks()
	if len(tasks) != 0 {
		t.Error("rejected task must not be committed")
	}
	if queue.count() != 0 {
		t.Error("rejected task must not enqueue an outbox op")
	}
}

func TestStore_AddTask_InvalidPriority(t *testing.T) {
	s := readyStore(t, Config{})

	if _, err := s.AddTask(TaskInput{Title: "x", Priority: "critical"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("AddTask() error = %v, want ErrInvalidInput", err)
	}
}

func TestStore_UpdateTask_BumpsUpdatedAt(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	task, err := s.AddTask(TaskInput{Title: "before"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}

	title := "after"
	updated, err := s.UpdateTask(task.ID, TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	if updated.Title != "after" {
		t.Errorf("Title = %q, want %q", updated.Title, "after")
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Errorf("UpdatedAt %v must strictly exceed %v", updated.UpdatedAt, task.UpdatedAt)
	}
	if got := queue.last(); got.kind != "update" || got.entityID != task.ID {
		t.Errorf("outbox op = %+v, want tasks update", got)
	}
}

func TestStore_UpdateTask_NotFound(t *testing.T) {
	s := readyStore(t, Config{})

	title := "x"
	if _, err := s.UpdateTask("missing", TaskPatch{Title: &title}); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("UpdateTask() error = %v, want ErrRecordNotFound", err)
	}
}

func TestStore_DeleteTask_AbsentIsNoOp(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	if err := s.DeleteTask("never-existed"); err != nil {
		t.Fatalf("DeleteTask() on absent id = %v, want nil", err)
	}
	if queue.count() != 0 {
		t.Error("no-op delete must not enqueue an outbox op")
	}
}

func TestStore_CompleteAndToggle_PartitionInvariant(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	a, _ := s.AddTask(TaskInput{Title: "a"})
	b, _ := s.AddTask(TaskInput{Title: "b"})

	checkPartition := func(wantPending, wantDone int) {
		t.Helper()
		pending, _ := s.PendingTasks()
		done, _ := s.CompletedTasks()
		all, _ := s.Tasks()
		if len(pending) != wantPending || len(done) != wantDone {
			t.Fatalf("partition = %d pending / %d done, want %d/%d", len(pending), len(done), wantPending, wantDone)
		}
		if len(pending)+len(done) != len(all) {
			t.Fatalf("partition leaks: %d + %d != %d", len(pending), len(done), len(all))
		}
	}

	checkPartition(2, 0)

	if _, err := s.CompleteTask(a.ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	checkPartition(1, 1)

	// Idempotent: a second complete changes nothing and enqueues nothing.
	before := queue.count()
	done, err := s.CompleteTask(a.ID)
	if err != nil {
		t.Fatalf("second CompleteTask() error = %v", err)
	}
	if !done.Completed {
		t.Error("task should stay completed")
	}
	if queue.count() != before {
		t.Error("idempotent complete must not enqueue")
	}
	checkPartition(1, 1)

	if _, err := s.ToggleTask(b.ID); err != nil {
		t.Fatalf("ToggleTask() error = %v", err)
	}
	checkPartition(0, 2)
	if _, err := s.ToggleTask(b.ID); err != nil {
		t.Fatalf("ToggleTask() back error = %v", err)
	}
	checkPartition(1, 1)
}

// =============================================================================
// Message Tests
// =============================================================================

func TestStore_UnreadCount_RoundTrip(t *testing.T) {
	s := readyStore(t, Config{})

	base, err := s.UnreadCount()
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}

	msg, err := s.AddMessage(MessageInput{Sender: "alice", Content: "hi"})
	if err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if !msg.Unread {
		t.Error("new message should start unread")
	}

	n, _ := s.UnreadCount()
	if n != base+1 {
		t.Fatalf("UnreadCount() after add = %d, want %d", n, base+1)
	}

	if err := s.MarkMessageRead(msg.ID); err != nil {
		t.Fatalf("MarkMessageRead() error = %v", err)
	}
	n, _ = s.UnreadCount()
	if n != base {
		t.Fatalf("UnreadCount() after read = %d, want %d", n, base)
	}

	// Marking an already-read message read again keeps the count stable.
	if err := s.MarkMessageRead(msg.ID); err != nil {
		t.Fatalf("second MarkMessageRead() error = %v", err)
	}
	n, _ = s.UnreadCount()
	if n != base {
		t.Fatalf("UnreadCount() after double read = %d, want %d", n, base)
	}

	if err := s.MarkMessageUnread(msg.ID); err != nil {
		t.Fatalf("MarkMessageUnread() error = %v", err)
	}
	n, _ = s.UnreadCount()
	if n != base+1 {
		t.Fatalf("UnreadCount() after unread = %d, want %d", n, base+1)
	}
}

func TestStore_MarkMessageRead_NotFound(t *testing.T) {
	s := readyStore(t, Config{})

	if err := s.MarkMessageRead("missing"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("MarkMessageRead() error = %v, want ErrRecordNotFound", err)
	}
}

// =============================================================================
// Chat Tests
// =============================================================================

func TestStore_SendChatMessage_TwoEntries(t *testing.T) {
	assistant := &fakeAssistant{reply: core.ChatReply{
		Response:    "On it.",
		Intent:      "create_task",
		Confidence:  0.7,
		Suggestions: []string{"Set a reminder for this task"},
	}}
	s := readyStore(t, Config{Assistant: assistant})

	entry, err := s.SendChatMessage(context.Background(), "add a task to buy milk")
	if err != nil {
		t.Fatalf("SendChatMessage() error = %v", err)
	}

	history, _ := s.ChatHistory()
	if len(history) != 2 {
		t.Fatalf("ChatHistory() = %d entries, want exactly 2", len(history))
	}
	if history[0].Type != core.ChatRoleUser || history[1].Type != core.ChatRoleAI {
		t.Errorf("history roles = %v, %v; want user, ai", history[0].Type, history[1].Type)
	}
	if entry.Content != "On it." || entry.Intent != "create_task" {
		t.Errorf("ai entry = %+v, want assistant reply", entry)
	}
	if s.IsTyping() {
		t.Error("isTyping must be false after the reply lands")
	}
}

func TestStore_SendChatMessage_FallbackOnFailure(t *testing.T) {
	assistant := &fakeAssistant{err: errors.New("gateway down")}
	s := readyStore(t, Config{Assistant: assistant})

	entry, err := s.SendChatMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendChatMessage() must not surface gateway failure, got %v", err)
	}

	want := core.FallbackReply()
	if entry.Content != want.Response {
		t.Errorf("fallback content = %q, want %q", entry.Content, want.Response)
	}
	if entry.Intent != want.Intent || entry.Confidence != want.Confidence {
		t.Errorf("fallback intent/confidence = %q/%v, want %q/%v",
			entry.Intent, entry.Confidence, want.Intent, want.Confidence)
	}

	history, _ := s.ChatHistory()
	if len(history) != 2 {
		t.Fatalf("ChatHistory() = %d entries, want exactly 2 even on failure", len(history))
	}
	if s.IsTyping() {
		t.Error("isTyping must be false even on failure")
	}
}

func TestStore_SendChatMessage_NoAssistant(t *testing.T) {
	s := readyStore(t, Config{})

	entry, err := s.SendChatMessage(context.Background(), "anyone there?")
	if err != nil {
		t.Fatalf("SendChatMessage() error = %v", err)
	}
	if entry.Content != core.FallbackReply().Response {
		t.Errorf("reply = %q, want canned fallback", entry.Content)
	}
	if s.IsTyping() {
		t.Error("isTyping must settle false")
	}
}

// slowAssistant blocks its first call until release closes, then answers.
// Later calls answer immediately.
type slowAssistant struct {
	started chan struct{}
	release chan struct{}
	reply   core.ChatReply

	mu    sync.Mutex
	calls int
}

func (a *slowAssistant) Ask(ctx context.Context, message string, uc core.UserContext, sessionID string) (core.ChatReply, error) {
	a.mu.Lock()
	a.calls++
	first := a.calls == 1
	a.mu.Unlock()

	if first {
		close(a.started)
		<-a.release
	}
	return a.reply, nil
}

func TestStore_SendChatMessage_SupersededReplyDiscarded(t *testing.T) {
	assistant := &slowAssistant{
		started: make(chan struct{}),
		release: make(chan struct{}),
		reply:   core.ChatReply{Response: "answer"},
	}
	s := readyStore(t, Config{Assistant: assistant})

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.SendChatMessage(context.Background(), "first question")
		firstDone <- err
	}()
	<-assistant.started

	// The second send supersedes the one still waiting on its reply.
	if _, err := s.SendChatMessage(context.Background(), "second question"); err != nil {
		t.Fatalf("second SendChatMessage() error = %v", err)
	}

	close(assistant.release)
	select {
	case err := <-firstDone:
		if !errors.Is(err, core.ErrCallCancelled) {
			t.Errorf("superseded send error = %v, want ErrCallCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded send never settled")
	}

	// Both user entries stay; only the second send's reply is committed.
	history, _ := s.ChatHistory()
	if len(history) != 3 {
		t.Fatalf("ChatHistory() = %d entries, want 3 (user, user, ai)", len(history))
	}
	if history[2].Type != core.ChatRoleAI || history[2].Content != "answer" {
		t.Errorf("committed reply = %+v, want the second send's answer", history[2])
	}
	if s.IsTyping() {
		t.Error("isTyping must settle false")
	}
}

func TestStore_SendChatMessage_ResetDropsInFlightReply(t *testing.T) {
	assistant := &slowAssistant{
		started: make(chan struct{}),
		release: make(chan struct{}),
		reply:   core.ChatReply{Response: "late answer"},
	}
	s := readyStore(t, Config{Assistant: assistant})

	done := make(chan error, 1)
	go func() {
		_, err := s.SendChatMessage(context.Background(), "still there?")
		done <- err
	}()
	<-assistant.started

	s.Reset()
	close(assistant.release)

	select {
	case err := <-done:
		if !errors.Is(err, core.ErrCallCancelled) {
			t.Errorf("send racing Reset error = %v, want ErrCallCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send racing Reset never settled")
	}

	// The cleared conversation must not pick up an orphan ai entry.
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() after Reset error = %v", err)
	}
	history, _ := s.ChatHistory()
	if len(history) != 0 {
		t.Errorf("ChatHistory() after Reset = %d entries, want 0", len(history))
	}
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestStore_Snapshot_RoundTripExcludesChatAndAutomations(t *testing.T) {
	snaps := &memSnapshots{}
	s := readyStore(t, Config{Snapshots: snaps, Assistant: &fakeAssistant{reply: core.ChatReply{Response: "ok"}}})

	task, _ := s.AddTask(TaskInput{Title: "pack bags", Priority: core.PriorityHigh})
	doneTask, _ := s.AddTask(TaskInput{Title: "book flight"})
	if _, err := s.CompleteTask(doneTask.ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	msg, _ := s.AddMessage(MessageInput{Sender: "bob", Content: "ping"})
	post, _ := s.AddSocialPost(PostInput{Content: "hello world", Platforms: []string{"twitter"}})
	if err := s.ConnectPlatform("twitter"); err != nil {
		t.Fatalf("ConnectPlatform() error = %v", err)
	}
	if _, err := s.UpdateLifeMetric(core.MetricHealth, "sleep_quality", 0.9); err != nil {
		t.Fatalf("UpdateLifeMetric() error = %v", err)
	}
	if err := s.SetUserContext(core.UserContext{TimeOfDay: core.TimeMorning, EnergyLevel: core.EnergyHigh}); err != nil {
		t.Fatalf("SetUserContext() error = %v", err)
	}
	if _, err := s.SendChatMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("SendChatMessage() error = %v", err)
	}
	if _, err := s.CreateAutomation(AutomationInput{Name: "Morning Routine", Trigger: core.TriggerTimeBased, TriggerSpec: "08:00"}); err != nil {
		t.Fatalf("CreateAutomation() error = %v", err)
	}

	wantMetrics, _ := s.Metrics()
	wantContext, _ := s.UserContext()

	// A second store seeded from the same snapshot file.
	restored := NewStore(Config{OwnerID: "owner-test", Snapshots: snaps, DefaultMetrics: testMetrics})
	if err := restored.Initialize(context.Background()); err != nil {
		t.Fatalf("restore Initialize() error = %v", err)
	}

	tasks, _ := restored.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("restored tasks = %d, want 2", len(tasks))
	}
	pending, _ := restored.PendingTasks()
	completed, _ := restored.CompletedTasks()
	if len(pending) != 1 || pending[0].ID != task.ID {
		t.Errorf("restored pending = %+v, want the open task", pending)
	}
	if len(completed) != 1 || completed[0].ID != doneTask.ID {
		t.Errorf("restored completed = %+v, want the done task", completed)
	}

	messages, _ := restored.Messages()
	if len(messages) != 1 || messages[0].ID != msg.ID || !messages[0].Unread {
		t.Errorf("restored messages = %+v", messages)
	}

	posts, _ := restored.Posts()
	if len(posts) != 1 || posts[0].ID != post.ID {
		t.Errorf("restored posts = %+v", posts)
	}

	platforms, _ := restored.ConnectedPlatforms()
	if !reflect.DeepEqual(platforms, []string{"twitter"}) {
		t.Errorf("restored platforms = %v, want [twitter]", platforms)
	}

	gotMetrics, _ := restored.Metrics()
	if !reflect.DeepEqual(gotMetrics, wantMetrics) {
		t.Errorf("restored metrics = %v, want %v", gotMetrics, wantMetrics)
	}
	gotContext, _ := restored.UserContext()
	if gotContext.TimeOfDay != wantContext.TimeOfDay || gotContext.EnergyLevel != wantContext.EnergyLevel {
		t.Errorf("restored context = %+v, want %+v", gotContext, wantContext)
	}

	// Explicit exclusions.
	chat, _ := restored.ChatHistory()
	if len(chat) != 0 {
		t.Errorf("chat history must not be restored, got %d entries", len(chat))
	}
	autos, _ := restored.Automations()
	if len(autos) != 0 {
		t.Errorf("automations must not be restored, got %d entries", len(autos))
	}
}

func TestStore_SnapshotSaveFailure_NeverRollsBack(t *testing.T) {
	snaps := &memSnapshots{saveErr: errors.New("disk full")}
	s := readyStore(t, Config{Snapshots: snaps})

	task, err := s.AddTask(TaskInput{Title: "still here"})
	if err != nil {
		t.Fatalf("AddTask() with failing snapshot store error = %v", err)
	}
	got, err := s.Task(task.ID)
	if err != nil || got.Title != "still here" {
		t.Errorf("Task() = %+v, %v; local commit must survive disk failure", got, err)
	}
}

// =============================================================================
// Metrics / Platform / Theme Tests
// =============================================================================

func TestStore_UpdateLifeMetric_Clamps(t *testing.T) {
	s := readyStore(t, Config{})

	if _, err := s.UpdateLifeMetric(core.MetricHealth, "energy", 1.7); err != nil {
		t.Fatalf("UpdateLifeMetric() error = %v", err)
	}
	metrics, _ := s.Metrics()
	if got := metrics[core.MetricHealth]["energy"]; got != 1.0 {
		t.Errorf("over-range metric = %v, want clamped 1.0", got)
	}

	if _, err := s.UpdateLifeMetric(core.MetricHealth, "stress", -0.4); err != nil {
		t.Fatalf("UpdateLifeMetric() error = %v", err)
	}
	metrics, _ = s.Metrics()
	if got := metrics[core.MetricHealth]["stress"]; got != 0.0 {
		t.Errorf("under-range metric = %v, want clamped 0.0", got)
	}
}

func TestStore_UpdateLifeMetric_UnknownCategory(t *testing.T) {
	s := readyStore(t, Config{})

	if _, err := s.UpdateLifeMetric("astrology", "alignment", 0.5); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("UpdateLifeMetric() error = %v, want ErrInvalidInput", err)
	}
}

func TestStore_Metrics_ReturnsCopy(t *testing.T) {
	s := readyStore(t, Config{})

	metrics, _ := s.Metrics()
	metrics[core.MetricHealth]["sleep_quality"] = 0.0

	again, _ := s.Metrics()
	if again[core.MetricHealth]["sleep_quality"] == 0.0 {
		t.Error("mutating a returned metrics map must not touch the store")
	}
}

func TestStore_ConnectPlatform_SetSemantics(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	if err := s.ConnectPlatform("Twitter"); err != nil {
		t.Fatalf("ConnectPlatform() error = %v", err)
	}
	if err := s.ConnectPlatform("facebook"); err != nil {
		t.Fatalf("ConnectPlatform() error = %v", err)
	}
	// Duplicate connect is a no-op.
	before := queue.count()
	if err := s.ConnectPlatform("twitter"); err != nil {
		t.Fatalf("duplicate ConnectPlatform() error = %v", err)
	}
	if queue.count() != before {
		t.Error("duplicate connect must not enqueue")
	}

	platforms, _ := s.ConnectedPlatforms()
	if !reflect.DeepEqual(platforms, []string{"facebook", "twitter"}) {
		t.Errorf("ConnectedPlatforms() = %v, want sorted [facebook twitter]", platforms)
	}

	if err := s.DisconnectPlatform("facebook"); err != nil {
		t.Fatalf("DisconnectPlatform() error = %v", err)
	}
	platforms, _ = s.ConnectedPlatforms()
	if !reflect.DeepEqual(platforms, []string{"twitter"}) {
		t.Errorf("ConnectedPlatforms() after disconnect = %v", platforms)
	}
}

func TestStore_SetTheme(t *testing.T) {
	s := NewStore(Config{OwnerID: "o"})

	// Theme is settable and readable in any phase.
	if err := s.SetTheme(core.ThemeDark); err != nil {
		t.Fatalf("SetTheme() error = %v", err)
	}
	if s.Theme() != core.ThemeDark {
		t.Errorf("Theme() = %v, want dark", s.Theme())
	}

	if err := s.SetTheme("neon"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("SetTheme(neon) error = %v, want ErrInvalidInput", err)
	}
}

// =============================================================================
// Social Post Tests
// =============================================================================

func TestStore_RecordPublishResults_PerPlatformIsolation(t *testing.T) {
	s := readyStore(t, Config{})

	post, err := s.AddSocialPost(PostInput{Content: "launch day", Platforms: []string{"twitter", "linkedin"}})
	if err != nil {
		t.Fatalf("AddSocialPost() error = %v", err)
	}

	updated, err := s.RecordPublishResults(post.ID, map[string]core.PublishResult{
		"twitter":  {Success: true, PlatformID: "tw_1712000000"},
		"linkedin": {Success: false, Error: "token expired"},
	})
	if err != nil {
		t.Fatalf("RecordPublishResults() error = %v", err)
	}

	if updated.Status != core.PostPublished {
		t.Errorf("Status = %v, want published when any platform succeeds", updated.Status)
	}
	if res := updated.Results["twitter"]; !res.Success || res.PlatformID != "tw_1712000000" {
		t.Errorf("twitter result = %+v", res)
	}
	if res := updated.Results["linkedin"]; res.Success || res.Error != "token expired" {
		t.Errorf("linkedin result = %+v; one failure must not contaminate others", res)
	}
}

func TestStore_RecordPublishResults_AllFailed(t *testing.T) {
	s := readyStore(t, Config{})

	post, _ := s.AddSocialPost(PostInput{Content: "oops", Platforms: []string{"instagram"}})
	updated, err := s.RecordPublishResults(post.ID, map[string]core.PublishResult{
		"instagram": {Success: false, Error: "media required"},
	})
	if err != nil {
		t.Fatalf("RecordPublishResults() error = %v", err)
	}
	if updated.Status != core.PostFailed {
		t.Errorf("Status = %v, want failed when every platform fails", updated.Status)
	}
}

func TestStore_PublishSocialPost_EnqueuesDurableOp(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	post, _ := s.AddSocialPost(PostInput{Content: "soon", Platforms: []string{"twitter"}})
	updated, err := s.PublishSocialPost(post.ID, nil)
	if err != nil {
		t.Fatalf("PublishSocialPost() error = %v", err)
	}
	if updated.Status != core.PostScheduled {
		t.Errorf("Status = %v, want scheduled while publish is in flight", updated.Status)
	}
	if got := queue.last(); got.kind != "publish" || got.entityID != post.ID {
		t.Errorf("outbox op = %+v, want publish for %s", got, post.ID)
	}
}

// =============================================================================
// Automation Tests
// =============================================================================

func TestStore_CreateAutomation_Defaults(t *testing.T) {
	s := readyStore(t, Config{})

	auto, err := s.CreateAutomation(AutomationInput{Name: "Evening Wind Down", Trigger: core.TriggerTimeBased, TriggerSpec: "18:00", ActionsCount: 2})
	if err != nil {
		t.Fatalf("CreateAutomation() error = %v", err)
	}
	if !auto.Enabled {
		t.Error("new automation should be enabled")
	}
	if auto.RunCount != 0 || auto.SuccessRate != 1.0 {
		t.Errorf("stats = %d runs / %v rate, want 0 / 1.0", auto.RunCount, auto.SuccessRate)
	}
}

func TestStore_RecordAutomationRun_ClampedRate(t *testing.T) {
	s := readyStore(t, Config{})

	auto, _ := s.CreateAutomation(AutomationInput{Name: "Health Reminder"})
	if _, err := s.RecordAutomationRun(auto.ID, true); err != nil {
		t.Fatalf("RecordAutomationRun() error = %v", err)
	}
	got, err := s.RecordAutomationRun(auto.ID, false)
	if err != nil {
		t.Fatalf("RecordAutomationRun() error = %v", err)
	}

	if got.RunCount != 2 {
		t.Errorf("RunCount = %d, want 2", got.RunCount)
	}
	if got.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", got.SuccessRate)
	}
	if got.SuccessRate < 0 || got.SuccessRate > 1 {
		t.Errorf("SuccessRate %v escaped [0,1]", got.SuccessRate)
	}
	if got.LastRun == nil {
		t.Error("LastRun should be stamped")
	}
}

// =============================================================================
// Observer Tests
// =============================================================================

func TestStore_Subscribe_NotifiesAndUnsubscribes(t *testing.T) {
	s := readyStore(t, Config{})

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	task, _ := s.AddTask(TaskInput{Title: "observe me"})
	if len(changes) != 1 {
		t.Fatalf("observer calls = %d, want 1", len(changes))
	}
	if c := changes[0]; c.Collection != "tasks" || c.Op != "create" || c.ID != task.ID {
		t.Errorf("change = %+v", c)
	}

	unsubscribe()
	if _, err := s.AddTask(TaskInput{Title: "silent"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if len(changes) != 1 {
		t.Error("observer notified after unsubscribe")
	}
}

func TestStore_Observer_CanReadStore(t *testing.T) {
	s := readyStore(t, Config{})

	var seen int
	s.Subscribe(func(c Change) {
		// Re-entrant read must not deadlock.
		tasks, err := s.Tasks()
		if err != nil {
			t.Errorf("observer read error = %v", err)
		}
		seen = len(tasks)
	})

	if _, err := s.AddTask(TaskInput{Title: "reentrant"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if seen != 1 {
		t.Errorf("observer saw %d tasks, want the committed 1", seen)
	}
}

// =============================================================================
// Sync Status Tests
// =============================================================================

func TestStore_SetSyncStatus_Transitions(t *testing.T) {
	s := readyStore(t, Config{})

	task, _ := s.AddTask(TaskInput{Title: "sync me"})
	if task.Sync != core.SyncPending {
		t.Fatalf("fresh task sync = %v, want pending", task.Sync)
	}

	var statusChanges []Change
	s.Subscribe(func(c Change) {
		if c.Op == "status" {
			statusChanges = append(statusChanges, c)
		}
	})

	s.SetSyncStatus(core.CollectionTasks, task.ID, core.SyncSynced)
	got, _ := s.Task(task.ID)
	if got.Sync != core.SyncSynced {
		t.Errorf("Sync = %v, want synced", got.Sync)
	}
	if len(statusChanges) != 1 {
		t.Errorf("status notifications = %d, want 1", len(statusChanges))
	}

	// Repeating the same status is quiet.
	s.SetSyncStatus(core.CollectionTasks, task.ID, core.SyncSynced)
	if len(statusChanges) != 1 {
		t.Error("unchanged status must not notify")
	}

	s.SetSyncStatus(core.CollectionTasks, task.ID, core.SyncFailed)
	got, _ = s.Task(task.ID)
	if got.Sync != core.SyncFailed {
		t.Errorf("Sync = %v, want failed after exhaustion", got.Sync)
	}
}

// =============================================================================
// Calendar Event Tests
// =============================================================================

func TestStore_AddEvent_DefaultsEnd(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	start := time.Now().Add(48 * time.Hour).UTC()
	ev, err := s.AddEvent(EventInput{Title: "dentist", Start: start})
	if err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if !ev.End.Equal(start.Add(time.Hour)) {
		t.Errorf("End = %v, want start+1h default", ev.End)
	}
	if got := queue.last(); got.collection != core.CollectionCalendarEvents || got.kind != "create" {
		t.Errorf("outbox op = %+v", got)
	}

	if err := s.DeleteEvent(ev.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	events, _ := s.Events()
	if len(events) != 0 {
		t.Errorf("Events() after delete = %d, want 0", len(events))
	}

	if err := s.DeleteEvent("missing"); err != nil {
		t.Errorf("DeleteEvent() on absent id = %v, want nil", err)
	}
}

// =============================================================================
// Remote Ingestion Tests
// =============================================================================

func TestStore_IngestRemote_SkipsExistingAndEnqueuesNothing(t *testing.T) {
	queue := &fakeQueue{}
	s := readyStore(t, Config{Queue: queue})

	local, err := s.AddTask(TaskInput{Title: "local work"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	enqueued := queue.count()

	added, err := s.IngestRemote(
		[]core.Task{
			{ID: local.ID, Title: "remote echo of local"},
			{ID: "todoist-1", Title: "remote task", Service: "todoist"},
			{Title: "no id"},
		},
		[]core.Message{
			{ID: "gmail-1", Sender: "ada@example.com", Content: "Lunch?", Service: "gmail", Unread: true},
		},
	)
	if err != nil {
		t.Fatalf("IngestRemote() error = %v", err)
	}
	if added != 2 {
		t.Fatalf("IngestRemote() added = %d, want 2", added)
	}

	tasks, _ := s.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("Tasks() = %d, want 2", len(tasks))
	}
	got, _ := s.Task(local.ID)
	if got.Title != "local work" {
		t.Errorf("local task title = %q, the pull must not clobber it", got.Title)
	}
	remote, _ := s.Task("todoist-1")
	if remote.Sync != core.SyncSynced {
		t.Errorf("ingested task Sync = %v, want synced", remote.Sync)
	}
	if remote.CreatedAt.IsZero() || remote.UpdatedAt.IsZero() {
		t.Error("ingested task timestamps should be filled")
	}

	messages, _ := s.Messages()
	if len(messages) != 1 {
		t.Fatalf("Messages() = %d, want 1", len(messages))
	}
	if messages[0].Sync != core.SyncSynced {
		t.Errorf("ingested message Sync = %v, want synced", messages[0].Sync)
	}

	if queue.count() != enqueued {
		t.Errorf("outbox ops = %d, want %d: pulls must not echo back", queue.count(), enqueued)
	}
}

func TestStore_IngestRemote_SecondPullIsNoOp(t *testing.T) {
	s := readyStore(t, Config{})

	pull := []core.Task{{ID: "todoist-1", Title: "remote task", Service: "todoist"}}
	if _, err := s.IngestRemote(pull, nil); err != nil {
		t.Fatalf("IngestRemote() error = %v", err)
	}

	added, err := s.IngestRemote(pull, nil)
	if err != nil {
		t.Fatalf("second IngestRemote() error = %v", err)
	}
	if added != 0 {
		t.Errorf("second IngestRemote() added = %d, want 0", added)
	}
}

func TestStore_IngestRemote_NotifiesSyncOp(t *testing.T) {
	s := readyStore(t, Config{})

	var mu sync.Mutex
	var changes []Change
	unsub := s.Subscribe(func(ch Change) {
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	})
	defer unsub()

	if _, err := s.IngestRemote(
		[]core.Task{{ID: "t1", Title: "x"}},
		[]core.Message{{ID: "m1", Sender: "a", Content: "hi"}},
	); err != nil {
		t.Fatalf("IngestRemote() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string]bool{"tasks": false, "messages": false}
	for _, ch := range changes {
		if ch.Op == "sync" {
			want[ch.Collection] = true
		}
	}
	if !want["tasks"] || !want["messages"] {
		t.Errorf("sync notifications = %+v, want tasks and messages", changes)
	}
}
