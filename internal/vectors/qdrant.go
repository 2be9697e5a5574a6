// Package vectors keeps a semantic index of the user's activity in Qdrant.
// The index is optional infrastructure: when Qdrant is unreachable the
// daemon runs without recall, nothing else changes.
package vectors

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// RecallCollection holds every indexed item; the payload "kind" field
// says what an entry is.
const RecallCollection = "omni_recall"

// Payload kinds.
const (
	KindTask = "task"
	KindChat = "chat"
)

// Config locates the Qdrant instance.
type Config struct {
	Host   string
	Port   int // gRPC port
	UseTLS bool
}

// DefaultConfig reads QDRANT_HOST/QDRANT_PORT and falls back to a local
// instance.
func DefaultConfig() Config {
	cfg := Config{
		Host: os.Getenv("QDRANT_HOST"),
		Port: 6334,
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if p, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil && p > 0 {
		cfg.Port = p
	}
	return cfg
}

// Store is the Qdrant-backed vector index.
type Store struct {
	client *qdrant.Client
}

// NewStore connects to Qdrant. The connection is lazy; use Ping to learn
// whether the instance is actually there.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies the instance answers.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant not reachable: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection when absent. Safe to call on
// every start.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Point is one indexed item. The payload is flat strings: "kind" and
// "text" at minimum.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// SearchResult is one recall hit.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]string
}

// Upsert writes points, replacing existing ids.
func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	qp := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qp[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: toPayload(p.Payload),
		}
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qp,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// SearchSimilar returns the closest points. kind narrows the search to
// one payload kind; empty searches everything.
func (s *Store) SearchSimilar(ctx context.Context, collection string, vector []float32, limit uint64, kind string) ([]SearchResult, error) {
	var filter *qdrant.Filter
	if kind != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "kind",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: kind},
						},
					},
				},
			}},
		}
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			ID:      h.Id.GetUuid(),
			Score:   h.Score,
			Payload: fromPayload(h.Payload),
		}
	}
	return results, nil
}

// Delete removes points by id. Absent ids are a no-op.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func toPayload(payload map[string]string) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		out[k] = qdrant.NewValueString(v)
	}
	return out
}

func fromPayload(payload map[string]*qdrant.Value) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			out[k] = s.StringValue
		}
	}
	return out
}
