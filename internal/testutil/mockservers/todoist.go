package mockservers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// TodoistTask is the subset of the REST v2 task shape the connector reads.
type TodoistTask struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
	Due      *struct {
		Date string `json:"date"`
	} `json:"due,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TodoistServer mocks the Todoist REST v2 API: token check via /projects,
// task listing, creation, and close.
type TodoistServer struct {
	Server *httptest.Server
	Token  string

	mu     sync.Mutex
	tasks  []TodoistTask
	nextID int
	closed []string
}

// NewTodoistServer starts a Todoist double accepting the given token.
func NewTodoistServer(t *testing.T, token string) *TodoistServer {
	t.Helper()

	ts := &TodoistServer{Token: token, nextID: 1000}

	mux := http.NewServeMux()
	mux.HandleFunc("/projects", func(w http.ResponseWriter, r *http.Request) {
		if !ts.authorized(r) {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		writeJSON(w, []map[string]string{{"id": "1", "name": "Inbox"}})
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		if !ts.authorized(r) {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			ts.mu.Lock()
			tasks := append([]TodoistTask(nil), ts.tasks...)
			ts.mu.Unlock()
			writeJSON(w, tasks)
		case http.MethodPost:
			var req struct {
				Content  string `json:"content"`
				Priority int    `json:"priority"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			ts.mu.Lock()
			ts.nextID++
			task := TodoistTask{
				ID:       fmt.Sprintf("%d", ts.nextID),
				Content:  req.Content,
				Priority: req.Priority,
			}
			ts.tasks = append(ts.tasks, task)
			ts.mu.Unlock()
			writeJSON(w, task)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		if !ts.authorized(r) {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/close") && r.Method == http.MethodPost {
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/close")
			ts.mu.Lock()
			ts.closed = append(ts.closed, id)
			ts.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	})

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Server.Close)
	return ts
}

// URL returns the server's base URL.
func (ts *TodoistServer) URL() string { return ts.Server.URL }

// Seed installs tasks returned by GET /tasks.
func (ts *TodoistServer) Seed(tasks ...TodoistTask) {
	ts.mu.Lock()
	ts.tasks = append(ts.tasks, tasks...)
	ts.mu.Unlock()
}

// Closed returns the ids closed so far.
func (ts *TodoistServer) Closed() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.closed...)
}

func (ts *TodoistServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+ts.Token
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
