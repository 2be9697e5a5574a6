// Package testutil provides shared testing utilities for Omni.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/omnihq/omni/internal/state"
	"github.com/omnihq/omni/internal/storage"
)

// TestDB creates a migrated in-memory SQLite database. It is closed when
// the test completes.
func TestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// ReadyStore builds an initialized state container with the given
// collaborators. Nil fields disable the corresponding side effect.
func ReadyStore(t *testing.T, cfg state.Config) *state.Store {
	t.Helper()

	if cfg.OwnerID == "" {
		cfg.OwnerID = "test-owner"
	}
	st := state.NewStore(cfg)
	if err := st.Initialize(TestContext(t)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return st
}

// TestContext returns a context with a timeout for tests.
// The context is automatically cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Eventually polls cond until it returns true or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
