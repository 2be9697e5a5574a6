// Package outbox implements the durable remote-operation queue behind every
// optimistic mutation. Local state commits first; the queue carries the
// matching create/update/delete/publish to the document store in the
// background, retrying with backoff until acknowledged or exhausted.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/storage"
)

// Kind is the operation type carried by an outbox row.
type Kind string

const (
	KindCreate  Kind = "create"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindPublish Kind = "publish"
)

const (
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// Op is one queued remote operation.
type Op struct {
	ID          string
	Collection  core.Collection
	EntityID    string
	Kind        Kind
	Payload     json.RawMessage
	Signature   string
	Status      string
	Attempts    int
	LastError   string
	NextAttempt time.Time
	CreatedAt   time.Time
}

// Remote applies operations against the document store.
type Remote interface {
	Create(ctx context.Context, collection core.Collection, id string, payload json.RawMessage) error
	Update(ctx context.Context, collection core.Collection, id string, payload json.RawMessage) error
	Delete(ctx context.Context, collection core.Collection, id string) error
}

// Publisher performs the social publish operation.
type Publisher interface {
	Publish(ctx context.Context, postID string, platforms []string) (map[string]core.PublishResult, error)
}

// StatusSink receives sync transitions for local entities. The state store
// satisfies this directly.
type StatusSink interface {
	SetSyncStatus(collection core.Collection, id string, status core.SyncStatus)
	RecordPublishResults(id string, results map[string]core.PublishResult) (core.SocialPost, error)
}

// Signer stamps outbox envelopes so a future sync peer can verify origin.
type Signer interface {
	Sign(data []byte) (string, error)
}

// Config tunes the drain loop.
type Config struct {
	DrainInterval time.Duration
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	BatchSize     int
}

// DefaultConfig returns the production drain settings.
func DefaultConfig() Config {
	return Config{
		DrainInterval: 5 * time.Second,
		MaxAttempts:   8,
		BaseBackoff:   2 * time.Second,
		MaxBackoff:    5 * time.Minute,
		BatchSize:     25,
	}
}

// Queue is the durable outbox. Enqueues never fail the caller: a write
// problem is logged and the mutation stays committed locally.
type Queue struct {
	db        *storage.DB
	remote    Remote
	publisher Publisher
	sink      StatusSink
	signer    Signer
	cfg       Config

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	kick    chan struct{}
	mu      sync.RWMutex

	log *logging.Logger
}

// New creates a queue over the given database. remote is required; the
// publisher, sink, and signer are optional collaborators.
func New(db *storage.DB, remote Remote, cfg Config) *Queue {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultConfig().DrainInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Queue{
		db:     db,
		remote: remote,
		cfg:    cfg,
		kick:   make(chan struct{}, 1),
		log:    logging.Named("outbox"),
	}
}

// SetPublisher wires the social publish executor.
func (q *Queue) SetPublisher(p Publisher) { q.publisher = p }

// SetStatusSink wires the sync-status feedback target.
func (q *Queue) SetStatusSink(s StatusSink) { q.sink = s }

// SetSigner wires the envelope signer.
func (q *Queue) SetSigner(s Signer) { q.signer = s }

// -----------------------------------------------------------------------------
// Enqueue (state.RemoteQueue)
// -----------------------------------------------------------------------------

// EnqueueCreate queues a remote create for a freshly committed entity.
func (q *Queue) EnqueueCreate(collection core.Collection, entityID string, record interface{}) {
	q.enqueue(collection, entityID, KindCreate, record)
}

// EnqueueUpdate queues a remote update carrying the full entity.
func (q *Queue) EnqueueUpdate(collection core.Collection, entityID string, patch interface{}) {
	q.enqueue(collection, entityID, KindUpdate, patch)
}

// EnqueueDelete queues a remote delete.
func (q *Queue) EnqueueDelete(collection core.Collection, entityID string) {
	q.enqueue(collection, entityID, KindDelete, nil)
}

// EnqueuePublish queues a durable social publish.
func (q *Queue) EnqueuePublish(postID string, platforms []string) {
	q.enqueue(core.CollectionPosts, postID, KindPublish, map[string]interface{}{
		"platforms": platforms,
	})
}

func (q *Queue) enqueue(collection core.Collection, entityID string, kind Kind, body interface{}) {
	payload := json.RawMessage("{}")
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			q.log.Error("drop %s op for %s/%s: marshal: %v", kind, collection, entityID, err)
			return
		}
		payload = data
	}

	signature := ""
	if q.signer != nil {
		sig, err := q.signer.Sign(payload)
		if err != nil {
			q.log.Warn("sign %s op for %s/%s: %v", kind, collection, entityID, err)
		} else {
			signature = sig
		}
	}

	now := time.Now().UTC()
	_, err := q.db.Conn().Exec(`
		INSERT INTO outbox (id, collection, entity_id, kind, payload, signature, status, attempts, next_attempt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		uuid.New().String(), string(collection), entityID, string(kind),
		string(payload), signature, StatusPending, now, now,
	)
	if err != nil {
		q.log.Error("enqueue %s op for %s/%s: %v", kind, collection, entityID, err)
		return
	}
	q.Kick()
}

// Kick requests an immediate drain pass without waiting for the ticker.
func (q *Queue) Kick() {
	q.mu.RLock()
	running := q.running
	q.mu.RUnlock()
	if !running {
		return
	}
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------
// Drain loop
// -----------------------------------------------------------------------------

// Start launches the background drain loop.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("outbox already running")
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	q.mu.Unlock()

	go q.run(ctx)
	q.log.Info("drain loop started (interval %s, max %d attempts)", q.cfg.DrainInterval, q.cfg.MaxAttempts)
	return nil
}

// Stop halts the drain loop and waits for the in-flight pass to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	done := q.doneCh
	q.mu.Unlock()

	<-done
	q.log.Info("drain loop stopped")
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.doneCh)

	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	// First pass immediately so restarts pick up leftover ops.
	q.DrainOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-q.kick:
			q.DrainOnce(ctx)
		case <-ticker.C:
			q.DrainOnce(ctx)
		}
	}
}

// DrainOnce executes one pass over the due operations and reports how many
// settled (acknowledged or moved to failed).
func (q *Queue) DrainOnce(ctx context.Context) int {
	ops, err := q.due(time.Now().UTC())
	if err != nil {
		q.log.Error("load due ops: %v", err)
		return 0
	}

	settled := 0
	for _, op := range ops {
		if ctx.Err() != nil {
			return settled
		}
		if q.executeOne(ctx, op) {
			settled++
		}
	}
	return settled
}

// executeOne runs a single op and records the outcome. Reports true when the
// op settled (completed or exhausted).
func (q *Queue) executeOne(ctx context.Context, op Op) bool {
	err := q.execute(ctx, op)
	if err == nil {
		q.complete(op)
		return true
	}

	attempts := op.Attempts + 1
	if attempts >= q.cfg.MaxAttempts {
		q.exhaust(op, attempts, err)
		return true
	}
	q.reschedule(op, attempts, err)
	return false
}

func (q *Queue) execute(ctx context.Context, op Op) error {
	switch op.Kind {
	case KindCreate:
		return q.remote.Create(ctx, op.Collection, op.EntityID, op.Payload)
	case KindUpdate:
		return q.remote.Update(ctx, op.Collection, op.EntityID, op.Payload)
	case KindDelete:
		return q.remote.Delete(ctx, op.Collection, op.EntityID)
	case KindPublish:
		return q.executePublish(ctx, op)
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

func (q *Queue) executePublish(ctx context.Context, op Op) error {
	if q.publisher == nil {
		return fmt.Errorf("no publisher configured")
	}
	var body struct {
		Platforms []string `json:"platforms"`
	}
	if err := json.Unmarshal(op.Payload, &body); err != nil {
		return fmt.Errorf("bad publish payload: %w", err)
	}

	// Per-platform failures are domain results, not transport failures: the
	// op settles and the results land on the post.
	results, err := q.publisher.Publish(ctx, op.EntityID, body.Platforms)
	if err != nil {
		return err
	}
	if q.sink != nil {
		if _, err := q.sink.RecordPublishResults(op.EntityID, results); err != nil {
			q.log.Warn("record publish results for %s: %v", op.EntityID, err)
		}
	}
	return nil
}

// complete removes an acknowledged op and, once no further ops are pending
// for the entity, reports Sync=synced back to the state store.
func (q *Queue) complete(op Op) {
	if _, err := q.db.Conn().Exec(`DELETE FROM outbox WHERE id = ?`, op.ID); err != nil {
		q.log.Error("remove settled op %s: %v", op.ID, err)
		return
	}
	if op.Kind == KindPublish || q.sink == nil {
		return
	}

	var remaining int
	err := q.db.Conn().QueryRow(
		`SELECT COUNT(*) FROM outbox WHERE entity_id = ? AND status = ?`,
		op.EntityID, StatusPending,
	).Scan(&remaining)
	if err != nil {
		q.log.Error("count pending ops for %s: %v", op.EntityID, err)
		return
	}
	if remaining == 0 && op.Kind != KindDelete {
		q.sink.SetSyncStatus(op.Collection, op.EntityID, core.SyncSynced)
	}
}

// exhaust parks an op in the failed state and reports the divergence.
func (q *Queue) exhaust(op Op, attempts int, cause error) {
	_, err := q.db.Conn().Exec(
		`UPDATE outbox SET status = ?, attempts = ?, last_error = ? WHERE id = ?`,
		StatusFailed, attempts, cause.Error(), op.ID,
	)
	if err != nil {
		q.log.Error("mark op %s failed: %v", op.ID, err)
		return
	}
	q.log.Warn("op %s (%s %s/%s) exhausted after %d attempts: %v",
		op.ID, op.Kind, op.Collection, op.EntityID, attempts, cause)
	if q.sink != nil && op.Kind != KindPublish {
		q.sink.SetSyncStatus(op.Collection, op.EntityID, core.SyncFailed)
	}
}

func (q *Queue) reschedule(op Op, attempts int, cause error) {
	next := time.Now().UTC().Add(q.backoff(attempts))
	_, err := q.db.Conn().Exec(
		`UPDATE outbox SET attempts = ?, last_error = ?, next_attempt = ? WHERE id = ?`,
		attempts, cause.Error(), next, op.ID,
	)
	if err != nil {
		q.log.Error("reschedule op %s: %v", op.ID, err)
	}
}

// backoff doubles per attempt from the base, capped, with up to 10% jitter.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.cfg.BaseBackoff
	for i := 1; i < attempts && d < q.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > q.cfg.MaxBackoff {
		d = q.cfg.MaxBackoff
	}
	if jitter := int64(d / 10); jitter > 0 {
		d += time.Duration(rand.Int63n(jitter))
	}
	return d
}

// -----------------------------------------------------------------------------
// Inspection / recovery
// -----------------------------------------------------------------------------

// Pending returns the number of ops still awaiting acknowledgment.
func (q *Queue) Pending() (int, error) {
	return q.countStatus(StatusPending)
}

// FailedCount returns the number of exhausted ops.
func (q *Queue) FailedCount() (int, error) {
	return q.countStatus(StatusFailed)
}

func (q *Queue) countStatus(status string) (int, error) {
	var n int
	err := q.db.Conn().QueryRow(`SELECT COUNT(*) FROM outbox WHERE status = ?`, status).Scan(&n)
	return n, err
}

// Failed lists exhausted ops, oldest first.
func (q *Queue) Failed() ([]Op, error) {
	rows, err := q.db.Conn().Query(`
		SELECT id, collection, entity_id, kind, payload, signature, status, attempts,
		       COALESCE(last_error, ''), next_attempt, created_at
		FROM outbox WHERE status = ? ORDER BY created_at ASC`, StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOps(rows)
}

// RetryFailed moves every exhausted op back to pending with a clean attempt
// counter, then kicks the drain loop.
func (q *Queue) RetryFailed() (int, error) {
	res, err := q.db.Conn().Exec(
		`UPDATE outbox SET status = ?, attempts = 0, next_attempt = ? WHERE status = ?`,
		StatusPending, time.Now().UTC(), StatusFailed,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		q.Kick()
	}
	return int(n), nil
}

func (q *Queue) due(now time.Time) ([]Op, error) {
	rows, err := q.db.Conn().Query(`
		SELECT id, collection, entity_id, kind, payload, signature, status, attempts,
		       COALESCE(last_error, ''), next_attempt, created_at
		FROM outbox
		WHERE status = ? AND next_attempt <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, StatusPending, now, q.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOps(rows)
}

func scanOps(rows *sql.Rows) ([]Op, error) {
	var ops []Op
	for rows.Next() {
		var op Op
		var collection, kind, payload string
		if err := rows.Scan(&op.ID, &collection, &op.EntityID, &kind, &payload,
			&op.Signature, &op.Status, &op.Attempts, &op.LastError,
			&op.NextAttempt, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Collection = core.Collection(collection)
		op.Kind = Kind(kind)
		op.Payload = json.RawMessage(payload)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
