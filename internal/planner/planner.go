// Package planner builds trip, finance, meal and exercise plans from form
// input. Trip plans and finance profiles are persisted collections; meal
// and exercise plans are derived values handed straight back to the
// caller. All arithmetic is deterministic: the same request always yields
// the same plan.
package planner

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/storage"
)

// Queue carries plan mutations into the sync pipeline. outbox.Queue
// satisfies it.
type Queue interface {
	EnqueueCreate(collection core.Collection, entityID string, record interface{})
}

// Service builds and stores plans.
type Service struct {
	docs    *storage.DocumentStore
	queue   Queue
	ownerID string
	log     *logging.Logger
}

// NewService creates the planner over the document store. queue may be
// nil; plans then stay local.
func NewService(docs *storage.DocumentStore, queue Queue, ownerID string) *Service {
	return &Service{
		docs:    docs,
		queue:   queue,
		ownerID: ownerID,
		log:     logging.Named("planner"),
	}
}

// save persists one plan record and hands it to the sync pipeline.
func (s *Service) save(collection core.Collection, id string, record interface{}, createdAt time.Time) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := s.docs.Create(storage.Record{
		ID:         id,
		Collection: collection,
		OwnerID:    s.ownerID,
		Data:       data,
		CreatedAt:  createdAt,
	}); err != nil {
		return err
	}
	if s.queue != nil {
		s.queue.EnqueueCreate(collection, id, record)
	}
	return nil
}

func newPlanID() string { return uuid.New().String() }

// roundCents keeps money values at two decimals.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
