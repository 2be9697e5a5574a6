// Package storage provides persistence for Omni.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
)

// Record is one stored document in a logical collection.
type Record struct {
	ID         string          `json:"id"`
	Collection core.Collection `json:"collection"`
	OwnerID    string          `json:"owner_id"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Filter narrows Query and Subscribe results.
type Filter struct {
	OwnerID string // empty matches any owner
	Limit   int    // 0 means no limit
}

// Order fixes the sort of Query results.
type Order string

const (
	OrderCreatedAsc  Order = "created_at ASC"
	OrderCreatedDesc Order = "created_at DESC"
	OrderUpdatedDesc Order = "updated_at DESC"
)

// DocumentStore persists collection records and feeds change subscribers.
// It is the durable side of the local-first contract: callers treat every
// error as retryable and never let one block an optimistic local mutation.
type DocumentStore struct {
	db *DB

	mu      sync.Mutex
	subs    map[int]*subscription
	nextSub int
}

type subscription struct {
	collection core.Collection
	filter     Filter
	fn         func([]Record)
}

// NewDocumentStore creates a document store over db.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{
		db:   db,
		subs: make(map[int]*subscription),
	}
}

// Create inserts a record. The record keeps its caller-assigned id (the
// optimistic local id); a fresh one is generated only when absent.
// Returns the stored id.
func (s *DocumentStore) Create(rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if len(rec.Data) == 0 {
		rec.Data = json.RawMessage("{}")
	}

	_, err := s.db.conn.Exec(`
		INSERT INTO documents (id, collection, owner_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Collection), rec.OwnerID, string(rec.Data), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}

	s.notify(rec.Collection)
	return rec.ID, nil
}

// Get returns a record by id.
func (s *DocumentStore) Get(id string) (*Record, error) {
	rec := &Record{}
	var collection, data string

	err := s.db.conn.QueryRow(`
		SELECT id, collection, owner_id, data, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&rec.ID, &collection, &rec.OwnerID, &data, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Collection = core.Collection(collection)
	rec.Data = json.RawMessage(data)
	return rec, nil
}

// Query returns the records of a collection matching filter, sorted by order.
func (s *DocumentStore) Query(collection core.Collection, filter Filter, order Order) ([]Record, error) {
	if order == "" {
		order = OrderCreatedAsc
	}

	query := `
		SELECT id, collection, owner_id, data, created_at, updated_at
		FROM documents WHERE collection = ?`
	args := []interface{}{string(collection)}

	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}

	query += " ORDER BY " + string(order)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Update merges a JSON patch into the record body and bumps updated_at.
func (s *DocumentStore) Update(id string, patch json.RawMessage) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	merged, err := mergePatch(rec.Data, patch)
	if err != nil {
		return fmt.Errorf("failed to merge patch: %w", err)
	}

	_, err = s.db.conn.Exec(`
		UPDATE documents SET data = ?, updated_at = ? WHERE id = ?
	`, string(merged), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	s.notify(rec.Collection)
	return nil
}

// Replace overwrites the record body entirely.
func (s *DocumentStore) Replace(id string, data json.RawMessage) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	_, err = s.db.conn.Exec(`
		UPDATE documents SET data = ?, updated_at = ? WHERE id = ?
	`, string(data), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to replace record: %w", err)
	}

	s.notify(rec.Collection)
	return nil
}

// Delete removes a record. Deleting an absent id is a no-op.
func (s *DocumentStore) Delete(id string) error {
	rec, err := s.Get(id)
	if err == core.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := s.db.conn.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	s.notify(rec.Collection)
	return nil
}

// Count returns the number of records in a collection.
func (s *DocumentStore) Count(collection core.Collection) (int, error) {
	var n int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, string(collection),
	).Scan(&n)
	return n, err
}

// Subscribe registers a change callback for a collection. After every
// successful mutation the current matching records are re-queried and handed
// to fn. The returned cancel removes the subscription.
func (s *DocumentStore) Subscribe(collection core.Collection, filter Filter, fn func([]Record)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscription{collection: collection, filter: filter, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify re-queries and invokes subscribers of a collection. Callbacks run
// outside the subscriber lock so they may call back into the store.
func (s *DocumentStore) notify(collection core.Collection) {
	s.mu.Lock()
	var matched []*subscription
	for _, sub := range s.subs {
		if sub.collection == collection {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range matched {
		records, err := s.Query(collection, sub.filter, OrderCreatedAsc)
		if err != nil {
			continue
		}
		sub.fn(records)
	}
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var collection, data string
		if err := rows.Scan(&rec.ID, &collection, &rec.OwnerID, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Collection = core.Collection(collection)
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// mergePatch applies a shallow JSON merge: keys present in patch overwrite
// keys in base, other keys are preserved.
func mergePatch(base, patch json.RawMessage) (json.RawMessage, error) {
	var baseMap map[string]interface{}
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return nil, err
	}
	if baseMap == nil {
		baseMap = make(map[string]interface{})
	}

	var patchMap map[string]interface{}
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return nil, err
	}
	for k, v := range patchMap {
		baseMap[k] = v
	}

	return json.Marshal(baseMap)
}
