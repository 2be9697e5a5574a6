// Package state implements the Omni application state container: the single
// source of truth for every domain collection during a session.
//
// The container is constructed once at process start and passed explicitly to
// consumers. All mutations are optimistic: they commit locally first, then
// enqueue a remote operation on the outbox and schedule a snapshot save.
// Remote or disk failure never rolls a local mutation back.
package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
)

// Phase is the initialization state of the container.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Change describes one committed mutation, delivered to observers.
type Change struct {
	Collection string // "tasks", "messages", "posts", "automations", "chat", "metrics", "context", "platforms", "calendar_events", "app"
	Op         string // "create", "update", "complete", "delete", "sync", "reset", "init", "status"
	ID         string // entity id, empty for whole-collection changes
}

// RemoteQueue is the outbox every persisted mutation enqueues into.
// Implementations absorb their own failures; nothing propagates back here.
type RemoteQueue interface {
	EnqueueCreate(collection core.Collection, entityID string, record interface{})
	EnqueueUpdate(collection core.Collection, entityID string, patch interface{})
	EnqueueDelete(collection core.Collection, entityID string)
	EnqueuePublish(postID string, platforms []string)
}

// Snapshots persists the partial state projection across restarts.
type Snapshots interface {
	Save(snap Snapshot) error
	Load() (*Snapshot, bool, error)
}

// Assistant answers chat messages. Implementations must always settle:
// a reply or an error, never a hang.
type Assistant interface {
	Ask(ctx context.Context, message string, userContext core.UserContext, sessionID string) (core.ChatReply, error)
}

// Config assembles the store's collaborators. Nil fields disable the
// corresponding side effect.
type Config struct {
	OwnerID        string
	Queue          RemoteQueue
	Snapshots      Snapshots
	Assistant      Assistant
	DefaultMetrics func() core.LifeMetrics
}

// Store is the application state container.
type Store struct {
	mu sync.RWMutex

	phase     Phase
	lastError error // sticky error flag, cleared explicitly

	theme       core.Theme
	tasks       []core.Task
	messages    []core.Message
	posts       []core.SocialPost
	automations []core.Automation
	events      []core.CalendarEvent
	chat        []core.ChatEntry
	isTyping    bool
	chatGen     int
	chatCancel  context.CancelFunc // aborts the in-flight assistant call
	sessionID   string
	userContext core.UserContext
	metrics     core.LifeMetrics
	platforms   map[string]time.Time // platform -> connected at

	observers map[int]func(Change)
	nextObs   int
	obsMu     sync.Mutex

	ownerID        string
	queue          RemoteQueue
	snapshots      Snapshots
	assistant      Assistant
	defaultMetrics func() core.LifeMetrics
	log            *logging.Logger
}

// NewStore constructs an uninitialized container. Initialize must be called
// before any domain collection can be read.
func NewStore(cfg Config) *Store {
	defaults := cfg.DefaultMetrics
	if defaults == nil {
		defaults = func() core.LifeMetrics { return core.LifeMetrics{} }
	}
	return &Store{
		phase:          PhaseUninitialized,
		theme:          core.ThemeSystem,
		metrics:        core.LifeMetrics{},
		platforms:      make(map[string]time.Time),
		observers:      make(map[int]func(Change)),
		ownerID:        cfg.OwnerID,
		queue:          cfg.Queue,
		snapshots:      cfg.Snapshots,
		assistant:      cfg.Assistant,
		defaultMetrics: defaults,
		log:            logging.Named("state"),
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Initialize transitions the container to Ready: it loads the snapshot once,
// seeds defaults, and opens domain reads. A failure sets the sticky error
// flag and returns to Uninitialized; the caller decides whether to retry.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseInitializing {
		s.mu.Unlock()
		return core.ErrAlreadyInitialized
	}
	s.phase = PhaseInitializing
	s.mu.Unlock()

	var snap *Snapshot
	var found bool
	if s.snapshots != nil {
		var err error
		snap, found, err = s.snapshots.Load()
		if err != nil {
			s.mu.Lock()
			s.phase = PhaseUninitialized
			s.lastError = err
			s.mu.Unlock()
			s.notify(Change{Collection: "app", Op: "error"})
			s.log.Error("initialization failed: %v", err)
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		s.mu.Lock()
		s.phase = PhaseUninitialized
		s.lastError = err
		s.mu.Unlock()
		s.notify(Change{Collection: "app", Op: "error"})
		return err
	}

	s.mu.Lock()
	if found {
		s.restoreLocked(snap)
	}
	if len(s.metrics) == 0 {
		s.metrics = s.defaultMetrics()
	}
	s.sessionID = uuid.New().String()
	s.phase = PhaseReady
	s.mu.Unlock()

	s.notify(Change{Collection: "app", Op: "init"})
	return nil
}

// Reset clears every mutable collection back to empty/default and returns
// the container to Uninitialized. Initialize must run again before domain
// reads are served.
func (s *Store) Reset() {
	s.mu.Lock()
	if s.chatCancel != nil {
		s.chatCancel()
		s.chatCancel = nil
	}
	s.tasks = nil
	s.messages = nil
	s.posts = nil
	s.automations = nil
	s.events = nil
	s.chat = nil
	s.isTyping = false
	s.sessionID = ""
	s.userContext = core.UserContext{}
	s.metrics = core.LifeMetrics{}
	s.platforms = make(map[string]time.Time)
	s.theme = core.ThemeSystem
	s.phase = PhaseUninitialized
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.saveSnapshot(snap)
	s.notify(Change{Collection: "app", Op: "reset"})
}

// Phase returns the current lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// IsReady reports whether domain reads are being served.
func (s *Store) IsReady() bool {
	return s.Phase() == PhaseReady
}

// Err returns the sticky error flag.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError clears the sticky error flag.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
}

// SessionID returns the chat session id for the current initialized session.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// OwnerID returns the owning-user identifier stamped on persisted records.
func (s *Store) OwnerID() string {
	return s.ownerID
}

func (s *Store) readyLocked() error {
	if s.phase != PhaseReady {
		return core.ErrNotReady
	}
	return nil
}

// -----------------------------------------------------------------------------
// Observers
// -----------------------------------------------------------------------------

// Subscribe registers an observer invoked synchronously after every committed
// mutation. The returned function removes the observer.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// notify runs observers outside the state lock so they may read the store.
func (s *Store) notify(change Change) {
	s.obsMu.Lock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (s *Store) saveSnapshot(snap Snapshot) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(snap); err != nil {
		s.log.Warn("snapshot save failed: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Reads (all gated on Ready)
// -----------------------------------------------------------------------------

// Tasks returns all tasks in insertion order.
func (s *Store) Tasks() ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return append([]core.Task(nil), s.tasks...), nil
}

// PendingTasks returns tasks not yet completed.
func (s *Store) PendingTasks() ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	var out []core.Task
	for _, t := range s.tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out, nil
}

// CompletedTasks returns completed tasks. Together with PendingTasks this is
// a strict partition of the task collection.
func (s *Store) CompletedTasks() ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	var out []core.Task
	for _, t := range s.tasks {
		if t.Completed {
			out = append(out, t)
		}
	}
	return out, nil
}

// Task returns one task by id.
func (s *Store) Task(id string) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return core.Task{}, err
	}
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Task{}, core.ErrRecordNotFound
}

// Messages returns all messages in insertion order.
func (s *Store) Messages() ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return append([]core.Message(nil), s.messages...), nil
}

// UnreadCount derives the number of unread messages. It is never stored.
func (s *Store) UnreadCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return 0, err
	}
	n := 0
	for _, m := range s.messages {
		if m.Unread {
			n++
		}
	}
	return n, nil
}

// Posts returns all social posts in insertion order.
func (s *Store) Posts() ([]core.SocialPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return append([]core.SocialPost(nil), s.posts...), nil
}

// Post returns one social post by id.
func (s *Store) Post(id string) (core.SocialPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return core.SocialPost{}, err
	}
	for _, p := range s.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return core.SocialPost{}, core.ErrRecordNotFound
}

// Automations returns all automations.
func (s *Store) Automations() ([]core.Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return append([]core.Automation(nil), s.automations...), nil
}

// Events returns all calendar events.
func (s *Store) Events() ([]core.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return append([]core.CalendarEvent(nil), s.events...), nil
}

// ChatHistory returns the session transcript.
func (s *Store) ChatHistory() ([]core.ChatEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return append([]core.ChatEntry(nil), s.chat...), nil
}

// IsTyping reports whether a chat reply is in flight.
func (s *Store) IsTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isTyping
}

// UserContext returns the singleton situational record.
func (s *Store) UserContext() (core.UserContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return core.UserContext{}, err
	}
	return s.userContext, nil
}

// Metrics returns a deep copy of the life metrics.
func (s *Store) Metrics() (core.LifeMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.metrics.Clone(), nil
}

// OverallScore derives the composite life score.
func (s *Store) OverallScore() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return 0, err
	}
	return s.metrics.OverallScore(), nil
}

// ConnectedPlatforms returns the connected platform names in stable order.
func (s *Store) ConnectedPlatforms() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.platformsLocked(), nil
}

func (s *Store) platformsLocked() []string {
	out := make([]string, 0, len(s.platforms))
	for name := range s.platforms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Theme returns the UI theme preference. Readable in any phase.
func (s *Store) Theme() core.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}
