package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/storage"
)

// PlatformSet mirrors connection state into the dashboard's connected set.
// The state container satisfies it.
type PlatformSet interface {
	ConnectPlatform(name string) error
	DisconnectPlatform(name string) error
}

// RemoteSink receives records pulled from connected services. The state
// container satisfies it.
type RemoteSink interface {
	IngestRemote(tasks []core.Task, messages []core.Message) (int, error)
}

// Manager is the connector registry. It routes task creation, aggregates
// reads across services, and persists credentials in the encrypted store
// so connections survive a restart.
type Manager struct {
	creds *storage.CredentialStore
	log   *logging.Logger

	mu         sync.RWMutex
	connectors map[string]Connector
	platforms  PlatformSet
}

// NewManager creates an empty registry. creds may be nil, in which case
// connections are not persisted.
func NewManager(creds *storage.CredentialStore) *Manager {
	return &Manager{
		creds:      creds,
		log:        logging.Named("connectors"),
		connectors: make(map[string]Connector),
	}
}

// Register adds a connector under its name, replacing any previous one.
func (m *Manager) Register(c Connector) {
	m.mu.Lock()
	m.connectors[c.Name()] = c
	m.mu.Unlock()
}

// RegisterDefaults wires the stock connectors.
func (m *Manager) RegisterDefaults(auth GoogleOAuth) {
	m.Register(NewTodoist())
	m.Register(NewGoogleTasks(auth))
	m.Register(NewGmail(auth))
	m.Register(NewSlack())
}

// BindPlatforms sets the sink that mirrors connect/disconnect into the
// dashboard's connected-platform set.
func (m *Manager) BindPlatforms(ps PlatformSet) {
	m.mu.Lock()
	m.platforms = ps
	m.mu.Unlock()
}

// Get returns the named connector.
func (m *Manager) Get(name string) (Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connectors[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, core.ErrServiceNotFound)
	}
	return c, nil
}

// Names returns every registered service name, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.connectors))
	for name := range m.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connected returns the names of connected services, sorted.
func (m *Manager) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.connectors))
	for name, c := range m.connectors {
		if c.Connected() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Connect authenticates the named service, persists its credentials, and
// marks the platform connected in the bound state.
func (m *Manager) Connect(ctx context.Context, service string, creds Credentials) error {
	c, err := m.Get(service)
	if err != nil {
		return err
	}
	if err := c.Connect(ctx, creds); err != nil {
		return err
	}

	if m.creds != nil {
		data, err := json.Marshal(creds)
		if err != nil {
			return fmt.Errorf("marshal credentials: %w", err)
		}
		tokenType := "bearer"
		if creds.RefreshToken != "" {
			tokenType = "oauth2"
		}
		if err := m.creds.Store(service, tokenType, data, creds.Expiry); err != nil {
			m.log.Warn("persisting %s credentials failed: %v", service, err)
		}
	}

	m.markPlatform(service, true)
	m.log.Info("%s connected", service)
	return nil
}

// Disconnect drops the session and deletes stored credentials.
func (m *Manager) Disconnect(ctx context.Context, service string) error {
	c, err := m.Get(service)
	if err != nil {
		return err
	}
	if err := c.Disconnect(ctx); err != nil {
		return err
	}

	if m.creds != nil {
		if err := m.creds.Delete(service); err != nil {
			m.log.Warn("deleting %s credentials failed: %v", service, err)
		}
	}

	m.markPlatform(service, false)
	m.log.Info("%s disconnected", service)
	return nil
}

// Restore reconnects every service with stored credentials. A failure
// leaves that service disconnected and moves on. Returns the number of
// services restored.
func (m *Manager) Restore(ctx context.Context) int {
	if m.creds == nil {
		return 0
	}

	restored := 0
	for _, name := range m.Names() {
		data, err := m.creds.Get(name)
		if err != nil {
			m.log.Warn("loading %s credentials failed: %v", name, err)
			continue
		}
		if data == nil {
			continue
		}

		var creds Credentials
		if err := json.Unmarshal(data, &creds); err != nil {
			m.log.Warn("stored %s credentials unreadable: %v", name, err)
			continue
		}

		c, _ := m.Get(name)
		if err := c.Connect(ctx, creds); err != nil {
			m.log.Warn("reconnecting %s failed: %v", name, err)
			continue
		}
		m.markPlatform(name, true)
		restored++
	}
	return restored
}

func (m *Manager) markPlatform(service string, connected bool) {
	m.mu.RLock()
	ps := m.platforms
	m.mu.RUnlock()
	if ps == nil {
		return
	}

	var err error
	if connected {
		err = ps.ConnectPlatform(service)
	} else {
		err = ps.DisconnectPlatform(service)
	}
	if err != nil {
		m.log.Warn("updating platform set for %s: %v", service, err)
	}
}

// Tasks aggregates the task lists of every connected task source, most
// urgent first. A failing service is skipped; whatever the rest return
// still comes back.
func (m *Manager) Tasks(ctx context.Context) []core.Task {
	var out []core.Task
	for _, src := range m.taskSources() {
		tasks, err := src.Tasks(ctx)
		if err != nil {
			m.log.Warn("listing %s tasks failed: %v", src.Name(), err)
			continue
		}
		out = append(out, tasks...)
	}
	sortTasks(out)
	return out
}

// Messages aggregates every connected message source, newest first.
func (m *Manager) Messages(ctx context.Context) []core.Message {
	var out []core.Message
	for _, src := range m.messageSources() {
		messages, err := src.Messages(ctx)
		if err != nil {
			m.log.Warn("listing %s messages failed: %v", src.Name(), err)
			continue
		}
		out = append(out, messages...)
	}
	sortMessages(out)
	return out
}

// CreateTask routes a new task to the service that fits it: urgent work
// goes to Todoist, everything else to Google Tasks, and either stands in
// when the other is not connected.
func (m *Manager) CreateTask(ctx context.Context, task core.Task) (core.Task, error) {
	name := m.routeTask(task)
	if name == "" {
		return core.Task{}, fmt.Errorf("no task service: %w", core.ErrServiceNotConnected)
	}

	src, err := m.taskSource(name)
	if err != nil {
		return core.Task{}, err
	}
	created, err := src.CreateTask(ctx, task)
	if err != nil {
		return core.Task{}, fmt.Errorf("create task on %s: %w", name, err)
	}
	return created, nil
}

// CompleteTask completes a task on the named service.
func (m *Manager) CompleteTask(ctx context.Context, service, id string) error {
	src, err := m.taskSource(service)
	if err != nil {
		return err
	}
	return src.CompleteTask(ctx, id)
}

// routeTask picks the target service for a new task. Urgency is the
// task's priority or the word "urgent" in its title.
func (m *Manager) routeTask(task core.Task) string {
	urgent := task.Priority == core.PriorityUrgent ||
		strings.Contains(strings.ToLower(task.Title), "urgent")

	preferred, fallback := "google_tasks", "todoist"
	if urgent {
		preferred, fallback = "todoist", "google_tasks"
	}

	if _, err := m.taskSource(preferred); err == nil {
		return preferred
	}
	if _, err := m.taskSource(fallback); err == nil {
		return fallback
	}
	for _, src := range m.taskSources() {
		return src.Name()
	}
	return ""
}

// Sync pulls tasks and messages from connected services into the sink.
// Records the sink already holds are left alone.
func (m *Manager) Sync(ctx context.Context, sink RemoteSink) (int, error) {
	tasks := m.Tasks(ctx)
	messages := m.Messages(ctx)
	if len(tasks) == 0 && len(messages) == 0 {
		return 0, nil
	}

	added, err := sink.IngestRemote(tasks, messages)
	if err != nil {
		return 0, fmt.Errorf("ingest pulled records: %w", err)
	}
	if added > 0 {
		m.log.Info("pulled %d new records from connected services", added)
	}
	return added, nil
}

func (m *Manager) taskSource(name string) (TaskSource, error) {
	c, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	src, ok := c.(TaskSource)
	if !ok {
		return nil, fmt.Errorf("%s does not manage tasks: %w", name, core.ErrServiceNotFound)
	}
	if !src.Connected() {
		return nil, fmt.Errorf("%s: %w", name, core.ErrServiceNotConnected)
	}
	return src, nil
}

func (m *Manager) taskSources() []TaskSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TaskSource
	for _, name := range sortedNames(m.connectors) {
		if src, ok := m.connectors[name].(TaskSource); ok && src.Connected() {
			out = append(out, src)
		}
	}
	return out
}

func (m *Manager) messageSources() []MessageSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MessageSource
	for _, name := range sortedNames(m.connectors) {
		if src, ok := m.connectors[name].(MessageSource); ok && src.Connected() {
			out = append(out, src)
		}
	}
	return out
}

func sortedNames(connectors map[string]Connector) []string {
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
