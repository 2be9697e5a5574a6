package outbox

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/storage"
)

// DocumentRemote applies acknowledged operations against the document store.
// Ops are idempotent under retry: a replayed create lands as a replace, an
// update for a record the store never saw lands as a create.
type DocumentRemote struct {
	docs    *storage.DocumentStore
	ownerID string
}

// NewDocumentRemote wraps a document store. ownerID is stamped on every
// record written through it.
func NewDocumentRemote(docs *storage.DocumentStore, ownerID string) *DocumentRemote {
	return &DocumentRemote{docs: docs, ownerID: ownerID}
}

// Create inserts the entity under its optimistic local id.
func (r *DocumentRemote) Create(ctx context.Context, collection core.Collection, id string, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.docs.Create(storage.Record{
		ID:         id,
		Collection: collection,
		OwnerID:    r.ownerID,
		Data:       payload,
	})
	if err != nil {
		// Replayed create: the row landed on an earlier attempt.
		if replaceErr := r.docs.Replace(id, payload); replaceErr == nil {
			return nil
		}
		return err
	}
	return nil
}

// Update overwrites the stored body with the full entity carried by the op.
func (r *DocumentRemote) Update(ctx context.Context, collection core.Collection, id string, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.docs.Replace(id, payload)
	if errors.Is(err, core.ErrRecordNotFound) {
		// The create for this entity never settled; upsert keeps the
		// queue moving instead of wedging behind a lost row.
		return r.Create(ctx, collection, id, payload)
	}
	return err
}

// Delete removes the record. Absent rows are already a no-op downstream.
func (r *DocumentRemote) Delete(ctx context.Context, collection core.Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.docs.Delete(id)
}
