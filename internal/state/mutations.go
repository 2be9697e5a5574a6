package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
)

// -----------------------------------------------------------------------------
// Inputs
// -----------------------------------------------------------------------------

// TaskInput carries caller-supplied fields for AddTask.
type TaskInput struct {
	Title       string
	Description string
	Priority    core.Priority
	DueDate     *time.Time
	Service     string
}

// TaskPatch carries optional field updates for UpdateTask. Nil fields are
// left untouched; ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *core.Priority
	DueDate      *time.Time
	ClearDueDate bool
}

// MessageInput carries caller-supplied fields for AddMessage.
type MessageInput struct {
	Sender    string
	Recipient string
	Content   string
	Service   string
}

// PostInput carries caller-supplied fields for AddSocialPost.
type PostInput struct {
	Content     string
	Platforms   []string
	MediaURLs   []string
	ScheduledAt *time.Time
}

// AutomationInput carries caller-supplied fields for CreateAutomation.
type AutomationInput struct {
	Name         string
	Description  string
	Trigger      core.TriggerType
	TriggerSpec  string
	ActionsCount int
}

// EventInput carries caller-supplied fields for AddEvent.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Service     string
}

// bumpTime returns now, advanced past prev when the clock has not moved.
// UpdatedAt must strictly increase on every update.
func bumpTime(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

func (s *Store) enqueueCreate(c core.Collection, id string, record interface{}) {
	if s.queue != nil {
		s.queue.EnqueueCreate(c, id, record)
	}
}

func (s *Store) enqueueUpdate(c core.Collection, id string, patch interface{}) {
	if s.queue != nil {
		s.queue.EnqueueUpdate(c, id, patch)
	}
}

func (s *Store) enqueueDelete(c core.Collection, id string) {
	if s.queue != nil {
		s.queue.EnqueueDelete(c, id)
	}
}

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

// AddTask validates and appends a task, then enqueues the remote create.
// The task is visible to readers before any persistence settles.
func (s *Store) AddTask(in TaskInput) (core.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return core.Task{}, fmt.Errorf("task title: %w", core.ErrMissingRequired)
	}
	priority := in.Priority
	if priority == "" {
		priority = core.PriorityMedium
	}
	if !priority.Valid() {
		return core.Task{}, fmt.Errorf("priority %q: %w", in.Priority, core.ErrInvalidInput)
	}
	service := in.Service
	if service == "" {
		service = "local"
	}

	now := time.Now().UTC()
	task := core.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		DueDate:     in.DueDate,
		Service:     service,
		Completed:   false,
		Sync:        core.SyncPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Task{}, err
	}
	s.tasks = append(s.tasks, task)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueCreate(core.CollectionTasks, task.ID, task)
	s.notify(Change{Collection: "tasks", Op: "create", ID: task.ID})
	return task, nil
}

// UpdateTask merges the patch into an existing task and enqueues the remote
// update. UpdatedAt strictly increases.
func (s *Store) UpdateTask(id string, patch TaskPatch) (core.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return core.Task{}, fmt.Errorf("task title: %w", core.ErrMissingRequired)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return core.Task{}, fmt.Errorf("priority %q: %w", *patch.Priority, core.ErrInvalidInput)
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Task{}, err
	}
	idx := -1
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.Task{}, core.ErrRecordNotFound
	}
	t := &s.tasks[idx]
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	}
	t.UpdatedAt = bumpTime(t.UpdatedAt)
	t.Sync = core.SyncPending
	task := *t
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueUpdate(core.CollectionTasks, task.ID, task)
	s.notify(Change{Collection: "tasks", Op: "update", ID: task.ID})
	return task, nil
}

// DeleteTask removes a task. An unknown id is a no-op, not an error.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := -1
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueDelete(core.CollectionTasks, id)
	s.notify(Change{Collection: "tasks", Op: "delete", ID: id})
	return nil
}

// CompleteTask marks a task completed. Idempotent: completing an already
// completed task changes nothing and enqueues nothing.
func (s *Store) CompleteTask(id string) (core.Task, error) {
	return s.setCompleted(id, func(cur bool) bool { return true })
}

// ToggleTask flips a task's completion state.
func (s *Store) ToggleTask(id string) (core.Task, error) {
	return s.setCompleted(id, func(cur bool) bool { return !cur })
}

func (s *Store) setCompleted(id string, next func(bool) bool) (core.Task, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Task{}, err
	}
	idx := -1
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.Task{}, core.ErrRecordNotFound
	}
	t := &s.tasks[idx]
	want := next(t.Completed)
	if t.Completed == want {
		task := *t
		s.mu.Unlock()
		return task, nil
	}
	t.Completed = want
	t.UpdatedAt = bumpTime(t.UpdatedAt)
	t.Sync = core.SyncPending
	task := *t
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueUpdate(core.CollectionTasks, task.ID, task)
	op := "update"
	if task.Completed {
		op = "complete"
	}
	s.notify(Change{Collection: "tasks", Op: op, ID: task.ID})
	return task, nil
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// AddMessage appends an inbox entry. New messages always start unread; the
// displayed unread count is derived from the collection on read.
func (s *Store) AddMessage(in MessageInput) (core.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return core.Message{}, fmt.Errorf("message content: %w", core.ErrMissingRequired)
	}
	service := in.Service
	if service == "" {
		service = "local"
	}
	msg := core.Message{
		ID:        uuid.New().String(),
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Content:   in.Content,
		Service:   service,
		Unread:    true,
		Sync:      core.SyncPending,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Message{}, err
	}
	s.messages = append(s.messages, msg)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueCreate(core.CollectionMessages, msg.ID, msg)
	s.notify(Change{Collection: "messages", Op: "create", ID: msg.ID})
	return msg, nil
}

// MarkMessageRead flips the single canonical unread bit to false.
func (s *Store) MarkMessageRead(id string) error {
	return s.setUnread(id, false)
}

// MarkMessageUnread flips the single canonical unread bit to true.
func (s *Store) MarkMessageUnread(id string) error {
	return s.setUnread(id, true)
}

func (s *Store) setUnread(id string, unread bool) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := -1
	for i := range s.messages {
		if s.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.ErrRecordNotFound
	}
	m := &s.messages[idx]
	if m.Unread == unread {
		s.mu.Unlock()
		return nil
	}
	m.Unread = unread
	m.Sync = core.SyncPending
	msg := *m
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueUpdate(core.CollectionMessages, msg.ID, msg)
	s.notify(Change{Collection: "messages", Op: "update", ID: msg.ID})
	return nil
}

// -----------------------------------------------------------------------------
// Social posts
// -----------------------------------------------------------------------------

// AddSocialPost composes a post. Status defaults to draft, or scheduled when
// a future publish time is supplied.
func (s *Store) AddSocialPost(in PostInput) (core.SocialPost, error) {
	if strings.TrimSpace(in.Content) == "" {
		return core.SocialPost{}, fmt.Errorf("post content: %w", core.ErrMissingRequired)
	}
	status := core.PostDraft
	if in.ScheduledAt != nil {
		status = core.PostScheduled
	}
	platforms := normalizePlatforms(in.Platforms)

	now := time.Now().UTC()
	post := core.SocialPost{
		ID:          uuid.New().String(),
		Content:     in.Content,
		Platforms:   platforms,
		MediaURLs:   in.MediaURLs,
		ScheduledAt: in.ScheduledAt,
		Status:      status,
		Sync:        core.SyncPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.SocialPost{}, err
	}
	s.posts = append(s.posts, post)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueCreate(core.CollectionPosts, post.ID, post)
	s.notify(Change{Collection: "posts", Op: "create", ID: post.ID})
	return post, nil
}

// PublishSocialPost marks a post as publish-in-flight and enqueues the
// durable publish operation. Results land later via RecordPublishResults.
// An empty platform list falls back to the platforms on the post.
func (s *Store) PublishSocialPost(id string, platforms []string) (core.SocialPost, error) {
	platforms = normalizePlatforms(platforms)

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.SocialPost{}, err
	}
	idx := -1
	for i := range s.posts {
		if s.posts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.SocialPost{}, core.ErrRecordNotFound
	}
	p := &s.posts[idx]
	if len(platforms) == 0 {
		platforms = append([]string(nil), p.Platforms...)
	}
	if len(platforms) == 0 {
		s.mu.Unlock()
		return core.SocialPost{}, fmt.Errorf("publish platforms: %w", core.ErrMissingRequired)
	}
	p.Platforms = platforms
	p.Status = core.PostScheduled
	p.Sync = core.SyncPending
	p.UpdatedAt = bumpTime(p.UpdatedAt)
	post := *p
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	if s.queue != nil {
		s.queue.EnqueuePublish(post.ID, platforms)
	}
	s.notify(Change{Collection: "posts", Op: "update", ID: post.ID})
	return post, nil
}

// RecordPublishResults commits per-platform publish outcomes. The post is
// published when at least one platform accepted it, failed when none did.
// One platform failing never contaminates another's result.
func (s *Store) RecordPublishResults(id string, results map[string]core.PublishResult) (core.SocialPost, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.SocialPost{}, err
	}
	idx := -1
	for i := range s.posts {
		if s.posts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.SocialPost{}, core.ErrRecordNotFound
	}
	p := &s.posts[idx]
	if p.Results == nil {
		p.Results = make(map[string]core.PublishResult, len(results))
	}
	anyOK := false
	for platform, res := range results {
		p.Results[platform] = res
		if res.Success {
			anyOK = true
		}
	}
	if anyOK {
		p.Status = core.PostPublished
	} else {
		p.Status = core.PostFailed
	}
	p.Sync = core.SyncPending
	p.UpdatedAt = bumpTime(p.UpdatedAt)
	post := *p
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueUpdate(core.CollectionPosts, post.ID, post)
	s.notify(Change{Collection: "posts", Op: "update", ID: post.ID})
	return post, nil
}

func normalizePlatforms(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// -----------------------------------------------------------------------------
// Automations
// -----------------------------------------------------------------------------

// CreateAutomation registers a workflow in the automations collection.
// Automations are excluded from the snapshot; the engine owns their durable
// rows and re-registers them at startup.
func (s *Store) CreateAutomation(in AutomationInput) (core.Automation, error) {
	if strings.TrimSpace(in.Name) == "" {
		return core.Automation{}, fmt.Errorf("automation name: %w", core.ErrMissingRequired)
	}
	trigger := in.Trigger
	if trigger == "" {
		trigger = core.TriggerManual
	}
	auto := core.Automation{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Description:  in.Description,
		Trigger:      trigger,
		TriggerSpec:  in.TriggerSpec,
		Enabled:      true,
		ActionsCount: in.ActionsCount,
		RunCount:     0,
		SuccessRate:  1.0,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Automation{}, err
	}
	s.automations = append(s.automations, auto)
	s.mu.Unlock()

	s.notify(Change{Collection: "automations", Op: "create", ID: auto.ID})
	return auto, nil
}

// RegisterAutomation mirrors an engine-owned automation into the collection
// as-is, keeping its id and statistics. An existing entry with the same id
// is replaced.
func (s *Store) RegisterAutomation(auto core.Automation) error {
	if auto.ID == "" || strings.TrimSpace(auto.Name) == "" {
		return fmt.Errorf("automation id and name: %w", core.ErrMissingRequired)
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	replaced := false
	for i := range s.automations {
		if s.automations[i].ID == auto.ID {
			s.automations[i] = auto
			replaced = true
			break
		}
	}
	if !replaced {
		s.automations = append(s.automations, auto)
	}
	s.mu.Unlock()

	op := "create"
	if replaced {
		op = "update"
	}
	s.notify(Change{Collection: "automations", Op: op, ID: auto.ID})
	return nil
}

// SetAutomationEnabled enables or disables an automation.
func (s *Store) SetAutomationEnabled(id string, enabled bool) (core.Automation, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Automation{}, err
	}
	idx := -1
	for i := range s.automations {
		if s.automations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.Automation{}, core.ErrRecordNotFound
	}
	s.automations[idx].Enabled = enabled
	auto := s.automations[idx]
	s.mu.Unlock()

	s.notify(Change{Collection: "automations", Op: "update", ID: auto.ID})
	return auto, nil
}

// RecordAutomationRun folds one run outcome into the automation's stats.
// SuccessRate stays inside [0,1].
func (s *Store) RecordAutomationRun(id string, success bool) (core.Automation, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.Automation{}, err
	}
	idx := -1
	for i := range s.automations {
		if s.automations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.Automation{}, core.ErrRecordNotFound
	}
	a := &s.automations[idx]
	successes := a.SuccessRate * float64(a.RunCount)
	if success {
		successes++
	}
	a.RunCount++
	a.SuccessRate = core.ClampScore(successes / float64(a.RunCount))
	now := time.Now().UTC()
	a.LastRun = &now
	auto := *a
	s.mu.Unlock()

	s.notify(Change{Collection: "automations", Op: "update", ID: auto.ID})
	return auto, nil
}

// DeleteAutomation removes an automation. Unknown ids are a no-op.
func (s *Store) DeleteAutomation(id string) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := -1
	for i := range s.automations {
		if s.automations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.automations = append(s.automations[:idx], s.automations[idx+1:]...)
	s.mu.Unlock()

	s.notify(Change{Collection: "automations", Op: "delete", ID: id})
	return nil
}

// -----------------------------------------------------------------------------
// Chat
// -----------------------------------------------------------------------------

// SendChatMessage appends the user entry, asks the assistant, and appends
// the reply. The call always settles with exactly two new entries: any
// assistant failure lands as the canned fallback, never as an error to the
// caller. isTyping is owned by the newest in-flight send.
func (s *Store) SendChatMessage(ctx context.Context, text string) (core.ChatEntry, error) {
	if strings.TrimSpace(text) == "" {
		return core.ChatEntry{}, fmt.Errorf("chat message: %w", core.ErrMissingRequired)
	}

	userEntry := core.ChatEntry{
		ID:        uuid.New().String(),
		Type:      core.ChatRoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.ChatEntry{}, err
	}
	// A newer send supersedes whatever is still in flight.
	if s.chatCancel != nil {
		s.chatCancel()
	}
	askCtx, cancel := context.WithCancel(ctx)
	s.chatCancel = cancel
	s.chat = append(s.chat, userEntry)
	s.isTyping = true
	s.chatGen++
	gen := s.chatGen
	uc := s.userContext
	sessionID := s.sessionID
	s.mu.Unlock()

	s.notify(Change{Collection: "chat", Op: "create", ID: userEntry.ID})

	reply := core.FallbackReply()
	if s.assistant != nil {
		if got, err := s.assistant.Ask(askCtx, text, uc, sessionID); err == nil {
			reply = got
		} else if askCtx.Err() == nil && !errors.Is(err, core.ErrCallCancelled) {
			s.log.Warn("assistant unavailable, using fallback: %v", err)
		}
	}
	cancel()

	aiEntry := core.ChatEntry{
		ID:           uuid.New().String(),
		Type:         core.ChatRoleAI,
		Content:      reply.Response,
		Timestamp:    time.Now().UTC(),
		Intent:       reply.Intent,
		Confidence:   reply.Confidence,
		ActionsTaken: reply.ActionsTaken,
		Suggestions:  reply.Suggestions,
	}

	s.mu.Lock()
	// Superseded by a newer send, or the container was reset underneath
	// us; either way this reply no longer belongs in the conversation.
	if s.chatGen != gen || s.readyLocked() != nil {
		s.mu.Unlock()
		return core.ChatEntry{}, fmt.Errorf("chat reply discarded: %w", core.ErrCallCancelled)
	}
	s.chat = append(s.chat, aiEntry)
	s.isTyping = false
	s.mu.Unlock()

	s.notify(Change{Collection: "chat", Op: "create", ID: aiEntry.ID})
	return aiEntry, nil
}

// -----------------------------------------------------------------------------
// Context, metrics, platforms, theme
// -----------------------------------------------------------------------------

// SetUserContext replaces the situational record wholesale.
func (s *Store) SetUserContext(uc core.UserContext) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.userContext = uc
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.notify(Change{Collection: "context", Op: "update"})
	return nil
}

// UpdateLifeMetric sets one score, clamped to [0,1], and returns the new
// derived overall score.
func (s *Store) UpdateLifeMetric(category core.MetricCategory, metric string, value float64) (float64, error) {
	known := false
	for _, c := range core.MetricCategories() {
		if c == category {
			known = true
			break
		}
	}
	if !known {
		return 0, fmt.Errorf("metric category %q: %w", category, core.ErrInvalidInput)
	}
	if strings.TrimSpace(metric) == "" {
		return 0, fmt.Errorf("metric name: %w", core.ErrMissingRequired)
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if s.metrics == nil {
		s.metrics = core.LifeMetrics{}
	}
	if s.metrics[category] == nil {
		s.metrics[category] = make(map[string]float64)
	}
	s.metrics[category][metric] = core.ClampScore(value)
	overall := s.metrics.OverallScore()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.notify(Change{Collection: "metrics", Op: "update", ID: string(category)})
	return overall, nil
}

// ConnectPlatform adds a platform to the connected set and records the
// account in the social_accounts collection.
func (s *Store) ConnectPlatform(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("platform name: %w", core.ErrMissingRequired)
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.platforms[name]; ok {
		s.mu.Unlock()
		return nil
	}
	connectedAt := time.Now().UTC()
	s.platforms[name] = connectedAt
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueCreate(core.CollectionSocialAccounts, name, map[string]interface{}{
		"platform":     name,
		"connected_at": connectedAt,
	})
	s.notify(Change{Collection: "platforms", Op: "create", ID: name})
	return nil
}

// DisconnectPlatform removes a platform from the connected set. Unknown
// names are a no-op.
func (s *Store) DisconnectPlatform(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.platforms[name]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.platforms, name)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueDelete(core.CollectionSocialAccounts, name)
	s.notify(Change{Collection: "platforms", Op: "delete", ID: name})
	return nil
}

// SetTheme stores the UI theme preference. Settable in any phase, like the
// matching read.
func (s *Store) SetTheme(theme core.Theme) error {
	switch theme {
	case core.ThemeLight, core.ThemeDark, core.ThemeSystem:
	default:
		return fmt.Errorf("theme %q: %w", theme, core.ErrInvalidInput)
	}

	s.mu.Lock()
	s.theme = theme
	ready := s.phase == PhaseReady
	var snap Snapshot
	if ready {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if ready {
		s.saveSnapshot(snap)
	}
	s.notify(Change{Collection: "app", Op: "update", ID: "theme"})
	return nil
}

// -----------------------------------------------------------------------------
// Calendar events
// -----------------------------------------------------------------------------

// AddEvent appends a calendar event and enqueues the remote create.
// Reminder scheduling hangs off the resulting change notification.
func (s *Store) AddEvent(in EventInput) (core.CalendarEvent, error) {
	if strings.TrimSpace(in.Title) == "" {
		return core.CalendarEvent{}, fmt.Errorf("event title: %w", core.ErrMissingRequired)
	}
	if in.Start.IsZero() {
		return core.CalendarEvent{}, fmt.Errorf("event start: %w", core.ErrMissingRequired)
	}
	end := in.End
	if end.IsZero() || end.Before(in.Start) {
		end = in.Start.Add(time.Hour)
	}
	service := in.Service
	if service == "" {
		service = "local"
	}

	now := time.Now().UTC()
	ev := core.CalendarEvent{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Start:       in.Start.UTC(),
		End:         end.UTC(),
		Location:    in.Location,
		Service:     service,
		Sync:        core.SyncPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return core.CalendarEvent{}, err
	}
	s.events = append(s.events, ev)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueCreate(core.CollectionCalendarEvents, ev.ID, ev)
	s.notify(Change{Collection: "calendar_events", Op: "create", ID: ev.ID})
	return ev, nil
}

// DeleteEvent removes a calendar event. Unknown ids are a no-op. Pending
// reminders for the event are cancelled by the reminder service observing
// the delete.
func (s *Store) DeleteEvent(id string) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := -1
	for i := range s.events {
		if s.events[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.events = append(s.events[:idx], s.events[idx+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.enqueueDelete(core.CollectionCalendarEvents, id)
	s.notify(Change{Collection: "calendar_events", Op: "delete", ID: id})
	return nil
}

// -----------------------------------------------------------------------------
// Remote ingestion
// -----------------------------------------------------------------------------

// IngestRemote merges records pulled from connected services into the local
// collections. Matching is by id and existing local records always win, so
// a pull can never clobber an optimistic mutation. Ingested records are
// already remote and nothing is enqueued for them. Returns the number of
// records added.
func (s *Store) IngestRemote(tasks []core.Task, messages []core.Message) (int, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}

	addedTasks := 0
	haveTask := make(map[string]bool, len(s.tasks))
	for i := range s.tasks {
		haveTask[s.tasks[i].ID] = true
	}
	for _, t := range tasks {
		if t.ID == "" || haveTask[t.ID] {
			continue
		}
		t.Sync = core.SyncSynced
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		s.tasks = append(s.tasks, t)
		haveTask[t.ID] = true
		addedTasks++
	}

	addedMessages := 0
	haveMessage := make(map[string]bool, len(s.messages))
	for i := range s.messages {
		haveMessage[s.messages[i].ID] = true
	}
	for _, msg := range messages {
		if msg.ID == "" || haveMessage[msg.ID] {
			continue
		}
		msg.Sync = core.SyncSynced
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		s.messages = append(s.messages, msg)
		haveMessage[msg.ID] = true
		addedMessages++
	}

	added := addedTasks + addedMessages
	if added == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	if addedTasks > 0 {
		s.notify(Change{Collection: "tasks", Op: "sync"})
	}
	if addedMessages > 0 {
		s.notify(Change{Collection: "messages", Op: "sync"})
	}
	return added, nil
}

// -----------------------------------------------------------------------------
// Sync status feedback
// -----------------------------------------------------------------------------

// SetSyncStatus records an outbox acknowledgement or exhaustion against the
// local entity. Called by the drain loop; re-enters the normal mutation path
// and notifies observers with Op "status".
func (s *Store) SetSyncStatus(collection core.Collection, id string, status core.SyncStatus) {
	s.mu.Lock()
	if s.phase != PhaseReady {
		s.mu.Unlock()
		return
	}
	changed := false
	switch collection {
	case core.CollectionTasks:
		for i := range s.tasks {
			if s.tasks[i].ID == id {
				changed = s.tasks[i].Sync != status
				s.tasks[i].Sync = status
				break
			}
		}
	case core.CollectionMessages:
		for i := range s.messages {
			if s.messages[i].ID == id {
				changed = s.messages[i].Sync != status
				s.messages[i].Sync = status
				break
			}
		}
	case core.CollectionPosts:
		for i := range s.posts {
			if s.posts[i].ID == id {
				changed = s.posts[i].Sync != status
				s.posts[i].Sync = status
				break
			}
		}
	case core.CollectionCalendarEvents:
		for i := range s.events {
			if s.events[i].ID == id {
				changed = s.events[i].Sync != status
				s.events[i].Sync = status
				break
			}
		}
	}
	var snap Snapshot
	if changed {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.saveSnapshot(snap)
	s.notify(Change{Collection: string(collection), Op: "status", ID: id})
}
