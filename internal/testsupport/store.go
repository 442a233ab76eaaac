package testsupport

import (
	"context"
	"testing"

	"marketpipe/internal/blob"
	"marketpipe/internal/config"
	"marketpipe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, stages []string) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, stages)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenBlobStore opens a blob.Store for tests and registers cleanup.
func MustOpenBlobStore(t testing.TB, cfg *config.Config) *blob.Store {
	t.Helper()

	store, err := blob.Open(cfg.DataDir)
	if err != nil {
		t.Fatalf("blob.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem inserts a pending item for tests and returns it.
func NewItem(t testing.TB, store *queue.Store, stage, tenantKey, payloadJSON string) *queue.Item {
	t.Helper()

	item := &queue.Item{
		TenantKey:   tenantKey,
		StageKey:    queue.NewStageKey(stage),
		MaxRetries:  3,
		PayloadJSON: payloadJSON,
	}
	if err := store.Put(context.Background(), stage, item); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return item
}
