package vectors

import (
	"context"
	"fmt"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/embeddings"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/state"
)

// Embedder turns text into a vector. embeddings.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector store surface Memory needs. Store satisfies it.
type Index interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	Upsert(ctx context.Context, collection string, points []Point) error
	SearchSimilar(ctx context.Context, collection string, vector []float32, limit uint64, kind string) ([]SearchResult, error)
	Delete(ctx context.Context, collection string, ids []string) error
}

// indexTimeout bounds one background index write.
const indexTimeout = 15 * time.Second

// Memory indexes tasks and chat history for semantic recall. It satisfies
// the assistant's Recaller.
type Memory struct {
	embed Embedder
	index Index
	log   *logging.Logger
}

// NewMemory wires an embedder to a vector index.
func NewMemory(embed Embedder, index Index) *Memory {
	return &Memory{
		embed: embed,
		index: index,
		log:   logging.Named("recall"),
	}
}

// Start creates the recall collection.
func (m *Memory) Start(ctx context.Context) error {
	return m.index.EnsureCollection(ctx, RecallCollection, embeddings.Dimension)
}

// RememberTask indexes one task.
func (m *Memory) RememberTask(ctx context.Context, task core.Task) error {
	text := "Task: " + task.Title
	if task.Description != "" {
		text += " - " + task.Description
	}
	return m.remember(ctx, task.ID, KindTask, text)
}

// RememberChat indexes one chat entry.
func (m *Memory) RememberChat(ctx context.Context, entry core.ChatEntry) error {
	if entry.Content == "" {
		return nil
	}
	return m.remember(ctx, entry.ID, KindChat, entry.Content)
}

// Forget drops ids from the index.
func (m *Memory) Forget(ctx context.Context, ids ...string) error {
	return m.index.Delete(ctx, RecallCollection, ids)
}

func (m *Memory) remember(ctx context.Context, id, kind, text string) error {
	vec, err := m.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", kind, err)
	}
	return m.index.Upsert(ctx, RecallCollection, []Point{{
		ID:     id,
		Vector: vec,
		Payload: map[string]string{
			"kind": kind,
			"text": text,
		},
	}})
}

// Recall returns the indexed texts closest to query, best first.
func (m *Memory) Recall(ctx context.Context, query string, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	vec, err := m.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := m.index.SearchSimilar(ctx, RecallCollection, vec, uint64(limit), "")
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		if text := hit.Payload["text"]; text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// Watch subscribes Memory to store changes: new tasks and chat entries
// are indexed in the background, deleted tasks leave the index. Indexing
// failures are logged and dropped; recall is never load-bearing. Returns
// an unsubscribe func.
func (m *Memory) Watch(st *state.Store) func() {
	return st.Subscribe(func(ch state.Change) {
		switch ch.Collection {
		case "tasks":
			switch ch.Op {
			case "create":
				task, err := st.Task(ch.ID)
				if err != nil {
					return
				}
				go m.indexAsync(func(ctx context.Context) error {
					return m.RememberTask(ctx, task)
				})
			case "delete":
				id := ch.ID
				go m.indexAsync(func(ctx context.Context) error {
					return m.Forget(ctx, id)
				})
			}
		case "chat":
			if ch.Op != "create" {
				return
			}
			entry, ok := chatEntry(st, ch.ID)
			if !ok {
				return
			}
			go m.indexAsync(func(ctx context.Context) error {
				return m.RememberChat(ctx, entry)
			})
		}
	})
}

func (m *Memory) indexAsync(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		m.log.Warn("index update dropped: %v", err)
	}
}

func chatEntry(st *state.Store, id string) (core.ChatEntry, bool) {
	history, err := st.ChatHistory()
	if err != nil {
		return core.ChatEntry{}, false
	}
	for _, entry := range history {
		if entry.ID == id {
			return entry, true
		}
	}
	return core.ChatEntry{}, false
}
