package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/omnihq/omni/internal/state"
)

// Coalescer sits between the state store and a FileStore and collapses
// save bursts: every Save replaces the pending snapshot (latest wins) and
// the background loop writes at most once per flush interval. Mutation
// storms therefore cost one disk write, not one per mutation.
type Coalescer struct {
	inner *FileStore

	mu      sync.Mutex
	pending *state.Snapshot
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	kick    chan struct{}

	interval time.Duration
}

// NewCoalescer wraps a FileStore. interval <= 0 selects the 500ms default.
func NewCoalescer(inner *FileStore, interval time.Duration) *Coalescer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Coalescer{
		inner:    inner,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Save stages the snapshot for the next flush. It never blocks and never
// fails; write errors surface in the flush loop's log instead.
func (c *Coalescer) Save(snap state.Snapshot) error {
	c.mu.Lock()
	c.pending = &snap
	running := c.running
	c.mu.Unlock()

	if running {
		select {
		case c.kick <- struct{}{}:
		default:
		}
		return nil
	}
	// Not started: degrade to a direct write so nothing is lost.
	return c.inner.Save(snap)
}

// Load delegates to the backing file store.
func (c *Coalescer) Load() (*state.Snapshot, bool, error) {
	return c.inner.Load()
}

// Start launches the flush loop.
func (c *Coalescer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
}

// Stop halts the loop after flushing anything still pending.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	<-done
	c.Flush()
}

// Flush writes the pending snapshot immediately, if there is one.
func (c *Coalescer) Flush() error {
	c.mu.Lock()
	snap := c.pending
	c.pending = nil
	c.mu.Unlock()

	if snap == nil {
		return nil
	}
	return c.inner.Save(*snap)
}

func (c *Coalescer) run(ctx context.Context) {
	defer close(c.doneCh)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()
	timer.Stop()

	// Throttle, not debounce: the first kick arms the timer and later
	// kicks during the same window are absorbed, so a sustained save
	// stream still reaches disk once per interval.
	armed := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-c.kick:
			if !armed {
				timer.Reset(c.interval)
				armed = true
			}
		case <-timer.C:
			armed = false
			if err := c.Flush(); err != nil {
				c.inner.log.Warn("snapshot flush failed: %v", err)
			}
		}
	}
}
