package vectors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/state"
)

// fakeEmbedder hands out a fixed vector.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, text)
	return []float32{0.5, 0.5}, nil
}

func (f *fakeEmbedder) embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeIndex keeps points in a map and returns them all on search.
type fakeIndex struct {
	mu      sync.Mutex
	ensured bool
	points  map[string]Point
	upErr   error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]Point)}
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, name string, dim uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = true
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upErr != nil {
		return f.upErr
	}
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeIndex) SearchSimilar(ctx context.Context, collection string, vector []float32, limit uint64, kind string) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SearchResult
	for id, p := range f.points {
		if kind != "" && p.Payload["kind"] != kind {
			continue
		}
		out = append(out, SearchResult{ID: id, Score: 0.9, Payload: p.Payload})
		if uint64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) Delete(ctx context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func (f *fakeIndex) stored(id string) (Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[id]
	return p, ok
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func newTestMemory(t *testing.T) (*Memory, *fakeEmbedder, *fakeIndex) {
	t.Helper()
	embed := &fakeEmbedder{}
	index := newFakeIndex()
	return NewMemory(embed, index), embed, index
}

func TestMemory_RememberTask(t *testing.T) {
	mem, embed, index := newTestMemory(t)

	task := core.Task{ID: "t-1", Title: "Book flights", Description: "Lisbon in June"}
	if err := mem.RememberTask(context.Background(), task); err != nil {
		t.Fatalf("RememberTask() error = %v", err)
	}

	point, ok := index.stored("t-1")
	if !ok {
		t.Fatal("task not indexed")
	}
	wantText := "Task: Book flights - Lisbon in June"
	if point.Payload["text"] != wantText || point.Payload["kind"] != KindTask {
		t.Errorf("payload = %+v, want text %q kind task", point.Payload, wantText)
	}
	if calls := embed.embedded(); len(calls) != 1 || calls[0] != wantText {
		t.Errorf("embedded = %v, want the formatted task text", calls)
	}
}

func TestMemory_RememberChat(t *testing.T) {
	mem, _, index := newTestMemory(t)

	entry := core.ChatEntry{ID: "c-1", Type: core.ChatRoleUser, Content: "remind me about the dentist"}
	if err := mem.RememberChat(context.Background(), entry); err != nil {
		t.Fatalf("RememberChat() error = %v", err)
	}
	if _, ok := index.stored("c-1"); !ok {
		t.Fatal("chat entry not indexed")
	}

	// Empty content is skipped without error.
	if err := mem.RememberChat(context.Background(), core.ChatEntry{ID: "c-2"}); err != nil {
		t.Fatalf("empty RememberChat() error = %v", err)
	}
	if _, ok := index.stored("c-2"); ok {
		t.Error("empty chat entry was indexed")
	}
}

func TestMemory_Recall(t *testing.T) {
	mem, embed, _ := newTestMemory(t)
	ctx := context.Background()

	mem.RememberTask(ctx, core.Task{ID: "t-1", Title: "Renew passport"})
	mem.RememberChat(ctx, core.ChatEntry{ID: "c-1", Content: "passport office closes at five"})

	hits, err := mem.Recall(ctx, "passport", 5)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	for _, h := range hits {
		if h == "" {
			t.Error("empty hit text")
		}
	}

	if calls := embed.embedded(); calls[len(calls)-1] != "passport" {
		t.Errorf("query embed = %q, want the raw query", calls[len(calls)-1])
	}
}

func TestMemory_Recall_EmbedderDown(t *testing.T) {
	embed := &fakeEmbedder{err: errors.New("connection refused")}
	mem := NewMemory(embed, newFakeIndex())

	if _, err := mem.Recall(context.Background(), "anything", 3); err == nil {
		t.Error("Recall() error = nil, want embed failure surfaced")
	}
}

func TestMemory_Forget(t *testing.T) {
	mem, _, index := newTestMemory(t)
	ctx := context.Background()

	mem.RememberTask(ctx, core.Task{ID: "t-1", Title: "Old task"})
	if err := mem.Forget(ctx, "t-1"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if _, ok := index.stored("t-1"); ok {
		t.Error("forgotten task still indexed")
	}
}

func TestMemory_Watch(t *testing.T) {
	mem, _, index := newTestMemory(t)

	st := state.NewStore(state.Config{OwnerID: "owner-1"})
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(mem.Watch(st))

	task, err := st.AddTask(state.TaskInput{Title: "Water the plants"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, ok := index.stored(task.ID); !ok {
		t.Fatal("created task not indexed by watcher")
	}

	if err := st.DeleteTask(task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, ok := index.stored(task.ID); ok {
		t.Error("deleted task still indexed")
	}
	if index.count() != 0 {
		t.Errorf("index count = %d, want 0", index.count())
	}
}

func TestMemory_Watch_IndexFailureIsQuiet(t *testing.T) {
	embed := &fakeEmbedder{}
	index := newFakeIndex()
	index.upErr = errors.New("qdrant down")
	mem := NewMemory(embed, index)

	st := state.NewStore(state.Config{OwnerID: "owner-1"})
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(mem.Watch(st))

	if _, err := st.AddTask(state.TaskInput{Title: "Still works"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	tasks, _ := st.Tasks()
	if len(tasks) != 1 {
		t.Errorf("tasks = %d, the store must not care about index failures", len(tasks))
	}
}
