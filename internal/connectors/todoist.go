package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/omnihq/omni/internal/core"
)

const todoistBaseURL = "https://api.todoist.com/rest/v2"

// Todoist talks to the Todoist REST v2 API with a personal API token.
// Todoist priorities run 1 (normal) to 4 (urgent) and map onto ours as
// low=1, medium=2, high=3, urgent=4.
type Todoist struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	token     string
	connected bool
}

// NewTodoist creates a disconnected Todoist connector.
func NewTodoist() *Todoist {
	return NewTodoistWithBaseURL(todoistBaseURL)
}

// NewTodoistWithBaseURL creates a connector against an explicit API root.
func NewTodoistWithBaseURL(baseURL string) *Todoist {
	return &Todoist{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name returns the service identifier
func (t *Todoist) Name() string { return "todoist" }

// Connect stores the token and verifies it by listing projects, the
// cheapest authenticated call Todoist offers.
func (t *Todoist) Connect(ctx context.Context, creds Credentials) error {
	if creds.Token == "" {
		return fmt.Errorf("todoist token: %w", core.ErrMissingRequired)
	}

	t.mu.Lock()
	t.token = creds.Token
	t.connected = false
	t.mu.Unlock()

	var projects []struct {
		ID string `json:"id"`
	}
	if err := t.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return fmt.Errorf("verify todoist token: %w", err)
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

// Disconnect drops the token.
func (t *Todoist) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	t.token = ""
	t.connected = false
	t.mu.Unlock()
	return nil
}

// Connected reports whether the token has been verified.
func (t *Todoist) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Tasks lists active tasks.
func (t *Todoist) Tasks(ctx context.Context) ([]core.Task, error) {
	if !t.Connected() {
		return nil, fmt.Errorf("todoist: %w", core.ErrServiceNotConnected)
	}

	var items []todoistTask
	if err := t.do(ctx, http.MethodGet, "/tasks", nil, &items); err != nil {
		return nil, fmt.Errorf("list todoist tasks: %w", err)
	}

	tasks := make([]core.Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, item.toCore())
	}
	return tasks, nil
}

// CreateTask creates a task and returns it with the Todoist id.
func (t *Todoist) CreateTask(ctx context.Context, task core.Task) (core.Task, error) {
	if !t.Connected() {
		return core.Task{}, fmt.Errorf("todoist: %w", core.ErrServiceNotConnected)
	}

	body := map[string]interface{}{
		"content":  task.Title,
		"priority": todoistPriority(task.Priority),
	}
	if task.Description != "" {
		body["description"] = task.Description
	}
	if task.DueDate != nil {
		body["due_datetime"] = task.DueDate.UTC().Format(time.RFC3339)
	}

	var created todoistTask
	if err := t.do(ctx, http.MethodPost, "/tasks", body, &created); err != nil {
		return core.Task{}, fmt.Errorf("create todoist task: %w", err)
	}
	return created.toCore(), nil
}

// CompleteTask closes a task.
func (t *Todoist) CompleteTask(ctx context.Context, id string) error {
	if !t.Connected() {
		return fmt.Errorf("todoist: %w", core.ErrServiceNotConnected)
	}
	if err := t.do(ctx, http.MethodPost, "/tasks/"+id+"/close", nil, nil); err != nil {
		return fmt.Errorf("close todoist task: %w", err)
	}
	return nil
}

func (t *Todoist) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	t.mu.RLock()
	token := t.token
	t.mu.RUnlock()
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("status %d: %w", resp.StatusCode, core.ErrAuthenticationFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type todoistTask struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"`
	Due         *todoistDue `json:"due"`
	CreatedAt   time.Time   `json:"created_at"`
}

type todoistDue struct {
	Date     string `json:"date"`
	Datetime string `json:"datetime"`
}

func (tt todoistTask) toCore() core.Task {
	task := core.Task{
		ID:          tt.ID,
		Title:       tt.Content,
		Description: tt.Description,
		Priority:    priorityFromTodoist(tt.Priority),
		Service:     "todoist",
		Sync:        core.SyncSynced,
		CreatedAt:   tt.CreatedAt,
		UpdatedAt:   tt.CreatedAt,
	}
	if tt.Due != nil {
		if due, ok := tt.Due.when(); ok {
			task.DueDate = &due
		}
	}
	return task
}

func (d *todoistDue) when() (time.Time, bool) {
	if d.Datetime != "" {
		if ts, err := time.Parse(time.RFC3339, d.Datetime); err == nil {
			return ts, true
		}
	}
	if d.Date != "" {
		if ts, err := time.Parse("2006-01-02", d.Date); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func todoistPriority(p core.Priority) int {
	switch p {
	case core.PriorityUrgent:
		return 4
	case core.PriorityHigh:
		return 3
	case core.PriorityMedium:
		return 2
	default:
		return 1
	}
}

func priorityFromTodoist(p int) core.Priority {
	switch p {
	case 4:
		return core.PriorityUrgent
	case 3:
		return core.PriorityHigh
	case 2:
		return core.PriorityMedium
	default:
		return core.PriorityLow
	}
}
