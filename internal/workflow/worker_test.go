package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marketpipe/internal/logging"
	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/testsupport"
)

func newTestWorker(t *testing.T, store *queue.Store, stage string, processor Processor, expander Expander) *StageWorker {
	t.Helper()
	worker, err := NewStageWorker(
		WorkerConfig{Stage: stage, BatchSize: 10},
		store, DefaultGraph(), processor, expander, logging.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewStageWorker: %v", err)
	}
	return worker
}

func openWorkerStore(t *testing.T) *queue.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg, DefaultGraph().Order())
}

func TestWorkerCompletesAndFansOut(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, StageRequestAcceptance, "acme#req-1", `{"query":"ev market"}`)

	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		return Result{PayloadJSON: `{"query":"ev market","validated":true}`}, nil
	})
	expander := ExpanderFunc(func(ctx context.Context, item *queue.Item) ([]Expansion, error) {
		return []Expansion{
			{Stage: StageSerp, PayloadJSON: `{"query":"ev market","source":"google"}`},
			{Stage: StageSerp, PayloadJSON: `{"query":"ev market","source":"bing"}`},
		}, nil
	})

	worker := newTestWorker(t, store, StageRequestAcceptance, processor, expander)
	processed, err := worker.pollOnce(ctx)
	if err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	parent, err := store.Get(ctx, StageRequestAcceptance, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get parent: %v", err)
	}
	if parent.Status != queue.StatusCompleted {
		t.Fatalf("parent status = %s, want completed", parent.Status)
	}
	if !strings.Contains(parent.PayloadJSON, "validated") {
		t.Fatalf("parent payload was not replaced: %q", parent.PayloadJSON)
	}

	successors, err := store.ItemsByTenant(ctx, StageSerp, item.TenantKey)
	if err != nil {
		t.Fatalf("ItemsByTenant: %v", err)
	}
	if len(successors) != 2 {
		t.Fatalf("got %d serp items, want 2", len(successors))
	}
	for _, successor := range successors {
		if successor.Status != queue.StatusPending {
			t.Fatalf("successor status = %s, want pending", successor.Status)
		}
		if successor.MaxRetries != item.MaxRetries {
			t.Fatalf("successor max_retries = %d, want %d", successor.MaxRetries, item.MaxRetries)
		}
		if !strings.HasPrefix(successor.StageKey, StageSerp+queue.KeySeparator) {
			t.Fatalf("successor stage key = %q", successor.StageKey)
		}
	}
}

func TestWorkerTransientErrorsConsumeRetryBudget(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := &queue.Item{
		TenantKey:   "acme#req-1",
		StageKey:    queue.NewStageKey(StageSerp),
		MaxRetries:  2,
		PayloadJSON: "{}",
	}
	if err := store.Put(ctx, StageSerp, item); err != nil {
		t.Fatalf("Put: %v", err)
	}

	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		return Result{}, errors.New("upstream 503")
	})
	worker := newTestWorker(t, store, StageSerp, processor, nil)

	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	first, err := store.Get(ctx, StageSerp, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Status != queue.StatusRetry || first.RetryCount != 1 {
		t.Fatalf("after first failure: status=%s retry_count=%d", first.Status, first.RetryCount)
	}
	if first.ErrorMessage != "upstream 503" {
		t.Fatalf("error message = %q", first.ErrorMessage)
	}

	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	second, err := store.Get(ctx, StageSerp, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Status != queue.StatusFailed {
		t.Fatalf("after budget exhaustion: status=%s", second.Status)
	}
	if second.RetryCount != 2 {
		t.Fatalf("retry_count = %d, want 2", second.RetryCount)
	}
	if second.ErrorMessage != queue.MaxRetriesMessage {
		t.Fatalf("error message = %q, want %q", second.ErrorMessage, queue.MaxRetriesMessage)
	}

	// Failed items are never polled again.
	processed, err := worker.pollOnce(ctx)
	if err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
}

func TestWorkerValidationErrorFailsImmediately(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, StageRequestAcceptance, "acme#req-1", "{}")

	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		return Result{}, services.Wrap(services.ErrValidation, StageRequestAcceptance, "validate", "query is required", nil)
	})
	worker := newTestWorker(t, store, StageRequestAcceptance, processor, nil)

	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	fetched, err := store.Get(ctx, StageRequestAcceptance, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", fetched.Status)
	}
	if fetched.RetryCount != 0 {
		t.Fatalf("retry_count = %d, validation errors must not consume budget", fetched.RetryCount)
	}
	if !strings.Contains(fetched.ErrorMessage, "query is required") {
		t.Fatalf("error message = %q", fetched.ErrorMessage)
	}
}

func TestWorkerSkipsItemCancelledBetweenScanAndClaim(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, StageSerp, "acme#req-1", "{}")
	if err := store.UpdateStatus(ctx, StageSerp, item.TenantKey, item.StageKey, queue.StatusCancelled, queue.CancelledMessage); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	called := false
	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		called = true
		return Result{}, nil
	})
	worker := newTestWorker(t, store, StageSerp, processor, nil)

	// Simulate the race: the worker holds a stale pending snapshot while the
	// row is already cancelled.
	stale := *item
	stale.Status = queue.StatusPending
	worker.processItem(ctx, &stale)

	if called {
		t.Fatal("processor ran against a cancelled item")
	}
	fetched, err := store.Get(ctx, StageSerp, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, cancellation was overwritten", fetched.Status)
	}
}

func TestWorkerExpanderFailureKeepsParentCompleted(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, StageSerp, "acme#req-1", "{}")

	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		return Result{}, nil
	})
	expander := ExpanderFunc(func(ctx context.Context, item *queue.Item) ([]Expansion, error) {
		return nil, errors.New("decode payload")
	})
	worker := newTestWorker(t, store, StageSerp, processor, expander)

	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	parent, err := store.Get(ctx, StageSerp, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if parent.Status != queue.StatusCompleted {
		t.Fatalf("parent status = %s, expansion failure must not roll back completion", parent.Status)
	}
	successors, err := store.ItemsByTenant(ctx, StagePerplexity, item.TenantKey)
	if err != nil {
		t.Fatalf("ItemsByTenant: %v", err)
	}
	if len(successors) != 0 {
		t.Fatalf("got %d perplexity items, want 0", len(successors))
	}
}

func TestWorkerRejectsNonSuccessorExpansion(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, StageRequestAcceptance, "acme#req-1", "{}")

	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		return Result{}, nil
	})
	expander := ExpanderFunc(func(ctx context.Context, item *queue.Item) ([]Expansion, error) {
		// Insight is not a successor of request_acceptance.
		return []Expansion{{Stage: StageInsight, PayloadJSON: "{}"}}, nil
	})
	worker := newTestWorker(t, store, StageRequestAcceptance, processor, expander)

	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	skipped, err := store.ItemsByTenant(ctx, StageInsight, item.TenantKey)
	if err != nil {
		t.Fatalf("ItemsByTenant: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("got %d insight items, want 0", len(skipped))
	}
}

func TestWorkerRecoversFromProcessorPanic(t *testing.T) {
	store := openWorkerStore(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, StageSerp, "acme#req-1", "{}")

	processor := ProcessorFunc(func(ctx context.Context, item *queue.Item) (Result, error) {
		panic("nil map write")
	})
	worker := newTestWorker(t, store, StageSerp, processor, nil)

	if _, err := worker.pollOnce(ctx); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	fetched, err := store.Get(ctx, StageSerp, item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != queue.StatusRetry {
		t.Fatalf("status = %s, want retry", fetched.Status)
	}
	if !strings.Contains(fetched.ErrorMessage, "processor panic") {
		t.Fatalf("error message = %q", fetched.ErrorMessage)
	}
}
