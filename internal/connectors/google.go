package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/omnihq/omni/internal/core"
)

const defaultTasklist = "@default"

// GoogleOAuth holds the OAuth client shared by the Google connectors.
type GoogleOAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (a GoogleOAuth) config(scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		RedirectURL:  a.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthURL returns the authorization URL for the given scopes, requesting
// offline access so a refresh token comes back.
func (a GoogleOAuth) AuthURL(state string, scopes ...string) string {
	return a.config(scopes...).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange swaps an authorization code for credentials.
func (a GoogleOAuth) Exchange(ctx context.Context, code string, scopes ...string) (Credentials, error) {
	token, err := a.config(scopes...).Exchange(ctx, code)
	if err != nil {
		return Credentials{}, fmt.Errorf("exchange code: %w", err)
	}
	creds := Credentials{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.Expiry = &expiry
	}
	return creds, nil
}

// tokenSource refreshes through the OAuth client when one is configured
// and falls back to the static token otherwise.
func googleTokenSource(ctx context.Context, cfg *oauth2.Config, creds Credentials) oauth2.TokenSource {
	token := &oauth2.Token{
		AccessToken:  creds.Token,
		RefreshToken: creds.RefreshToken,
	}
	if creds.Expiry != nil {
		token.Expiry = *creds.Expiry
	}
	if cfg != nil && cfg.ClientID != "" {
		return cfg.TokenSource(ctx, token)
	}
	return oauth2.StaticTokenSource(token)
}

// GoogleTasks syncs with the user's default Google Tasks list. The API has
// no priority field, so every task comes back medium.
type GoogleTasks struct {
	oauth   *oauth2.Config
	options []option.ClientOption

	mu        sync.RWMutex
	svc       *tasks.Service
	connected bool
}

// NewGoogleTasks creates a disconnected Google Tasks connector. Extra
// client options are appended when the service is built, which lets tests
// point it at a local server.
func NewGoogleTasks(auth GoogleOAuth, opts ...option.ClientOption) *GoogleTasks {
	return &GoogleTasks{
		oauth:   auth.config(tasks.TasksScope),
		options: opts,
	}
}

// Name returns the service identifier
func (g *GoogleTasks) Name() string { return "google_tasks" }

// Connect builds the API client and verifies access by listing task lists.
func (g *GoogleTasks) Connect(ctx context.Context, creds Credentials) error {
	if creds.Token == "" {
		return fmt.Errorf("google tasks token: %w", core.ErrMissingRequired)
	}

	ts := googleTokenSource(ctx, g.oauth, creds)
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.options...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create tasks service: %w", err)
	}

	if _, err := svc.Tasklists.List().MaxResults(1).Context(ctx).Do(); err != nil {
		return fmt.Errorf("verify google tasks access: %w", err)
	}

	g.mu.Lock()
	g.svc = svc
	g.connected = true
	g.mu.Unlock()
	return nil
}

// Disconnect drops the API client.
func (g *GoogleTasks) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	g.svc = nil
	g.connected = false
	g.mu.Unlock()
	return nil
}

// Connected reports whether Connect has succeeded.
func (g *GoogleTasks) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

func (g *GoogleTasks) service() (*tasks.Service, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.connected || g.svc == nil {
		return nil, fmt.Errorf("google tasks: %w", core.ErrServiceNotConnected)
	}
	return g.svc, nil
}

// Tasks lists the default task list.
func (g *GoogleTasks) Tasks(ctx context.Context) ([]core.Task, error) {
	svc, err := g.service()
	if err != nil {
		return nil, err
	}

	resp, err := svc.Tasks.List(defaultTasklist).MaxResults(50).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list google tasks: %w", err)
	}

	out := make([]core.Task, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, googleTaskToCore(item))
	}
	return out, nil
}

// CreateTask inserts a task into the default list.
func (g *GoogleTasks) CreateTask(ctx context.Context, task core.Task) (core.Task, error) {
	svc, err := g.service()
	if err != nil {
		return core.Task{}, err
	}

	item := &tasks.Task{
		Title: task.Title,
		Notes: task.Description,
	}
	if task.DueDate != nil {
		item.Due = task.DueDate.UTC().Format(time.RFC3339)
	}

	created, err := svc.Tasks.Insert(defaultTasklist, item).Context(ctx).Do()
	if err != nil {
		return core.Task{}, fmt.Errorf("insert google task: %w", err)
	}
	return googleTaskToCore(created), nil
}

// CompleteTask patches the task status to completed.
func (g *GoogleTasks) CompleteTask(ctx context.Context, id string) error {
	svc, err := g.service()
	if err != nil {
		return err
	}

	patch := &tasks.Task{Status: "completed"}
	if _, err := svc.Tasks.Patch(defaultTasklist, id, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("complete google task: %w", err)
	}
	return nil
}

func googleTaskToCore(item *tasks.Task) core.Task {
	task := core.Task{
		ID:          item.Id,
		Title:       item.Title,
		Description: item.Notes,
		Priority:    core.PriorityMedium,
		Service:     "google_tasks",
		Completed:   item.Status == "completed",
		Sync:        core.SyncSynced,
	}
	if item.Due != "" {
		if due, err := time.Parse(time.RFC3339, item.Due); err == nil {
			task.DueDate = &due
		}
	}
	if item.Updated != "" {
		if ts, err := time.Parse(time.RFC3339, item.Updated); err == nil {
			task.CreatedAt = ts
			task.UpdatedAt = ts
		}
	}
	return task
}
