package queue_test

import (
	"context"
	"errors"
	"testing"

	"marketpipe/internal/queue"
	"marketpipe/internal/testsupport"
)

var testStages = []string{"request_acceptance", "serp"}

func TestPutDefaultsAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, "serp", "acme#req-1", `{"query":"ev market"}`)
	if item.Status != queue.StatusPending {
		t.Fatalf("status defaulted to %s, want pending", item.Status)
	}
	if item.Priority != queue.PriorityMedium {
		t.Fatalf("priority defaulted to %s, want medium", item.Priority)
	}

	fetched, err := store.Get(ctx, "serp", item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.PayloadJSON != item.PayloadJSON {
		t.Fatalf("payload = %q, want %q", fetched.PayloadJSON, item.PayloadJSON)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Fatal("timestamps were not persisted")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)

	_, err := store.Get(context.Background(), "serp", "acme#req-1", "serp#nope")
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnknownStageRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)

	err := store.Put(context.Background(), "mystery", &queue.Item{TenantKey: "a#b", StageKey: "mystery#1"})
	if !errors.Is(err, queue.ErrUnknownStage) {
		t.Fatalf("err = %v, want ErrUnknownStage", err)
	}
}

func TestUpdateRefusesTerminalRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	if err := store.UpdateStatus(ctx, "serp", item.TenantKey, item.StageKey, queue.StatusCancelled, queue.CancelledMessage); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	item.SetProcessing()
	err := store.Update(ctx, "serp", item)
	if !errors.Is(err, queue.ErrItemFinal) {
		t.Fatalf("err = %v, want ErrItemFinal", err)
	}

	fetched, err := store.Get(ctx, "serp", item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, cancellation did not stick", fetched.Status)
	}
	if fetched.ErrorMessage != queue.CancelledMessage {
		t.Fatalf("error message = %q", fetched.ErrorMessage)
	}
}

func TestUpdatePayloadLeavesStatusAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, "serp", "acme#req-1", `{"query":"old"}`)
	if err := store.UpdatePayload(ctx, "serp", item.TenantKey, item.StageKey, `{"query":"new"}`); err != nil {
		t.Fatalf("UpdatePayload: %v", err)
	}

	fetched, err := store.Get(ctx, "serp", item.TenantKey, item.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.PayloadJSON != `{"query":"new"}` {
		t.Fatalf("payload = %q", fetched.PayloadJSON)
	}
	if fetched.Status != queue.StatusPending {
		t.Fatalf("status = %s, want pending untouched", fetched.Status)
	}

	if err := store.UpdateStatus(ctx, "serp", item.TenantKey, item.StageKey, queue.StatusCancelled, queue.CancelledMessage); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	err = store.UpdatePayload(ctx, "serp", item.TenantKey, item.StageKey, `{"query":"again"}`)
	if !errors.Is(err, queue.ErrItemFinal) {
		t.Fatalf("err = %v, want ErrItemFinal", err)
	}
}

func TestScanByStatusHonorsLimitAndStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	}
	retryItem := testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	retryItem.SetProcessing()
	if err := store.Update(ctx, "serp", retryItem); err != nil {
		t.Fatalf("claim: %v", err)
	}
	retryItem.RecordFailure("boom")
	if err := store.Update(ctx, "serp", retryItem); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	both, err := store.ScanByStatus(ctx, "serp", []queue.Status{queue.StatusPending, queue.StatusRetry}, 0)
	if err != nil {
		t.Fatalf("ScanByStatus: %v", err)
	}
	if len(both) != 4 {
		t.Fatalf("got %d items, want 4", len(both))
	}

	limited, err := store.ScanByStatus(ctx, "serp", []queue.Status{queue.StatusPending}, 2)
	if err != nil {
		t.Fatalf("ScanByStatus limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d items, want 2", len(limited))
	}

	none, err := store.ScanByStatus(ctx, "serp", nil, 10)
	if err != nil {
		t.Fatalf("ScanByStatus empty: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("got %d items for empty status list", len(none))
	}
}

func TestItemsByTenantIsScopedToTenant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	testsupport.NewItem(t, store, "serp", "acme#req-2", "{}")

	items, err := store.ItemsByTenant(ctx, "serp", "acme#req-1")
	if err != nil {
		t.Fatalf("ItemsByTenant: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	item := testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	if err := store.UpdateStatus(ctx, "serp", item.TenantKey, item.StageKey, queue.StatusCancelled, queue.CancelledMessage); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["serp"][queue.StatusPending] != 1 {
		t.Fatalf("pending count = %d, want 1", stats["serp"][queue.StatusPending])
	}
	if stats["serp"][queue.StatusCancelled] != 1 {
		t.Fatalf("cancelled count = %d, want 1", stats["serp"][queue.StatusCancelled])
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, testStages)
	ctx := context.Background()

	stuck := testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	stuck.SetProcessing()
	if err := store.Update(ctx, "serp", stuck); err != nil {
		t.Fatalf("claim: %v", err)
	}
	done := testsupport.NewItem(t, store, "serp", "acme#req-1", "{}")
	done.SetProcessing()
	if err := store.Update(ctx, "serp", done); err != nil {
		t.Fatalf("claim: %v", err)
	}
	done.SetCompleted("")
	if err := store.Update(ctx, "serp", done); err != nil {
		t.Fatalf("complete: %v", err)
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset %d items, want 1", reset)
	}

	fetched, err := store.Get(ctx, "serp", stuck.TenantKey, stuck.StageKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != queue.StatusPending {
		t.Fatalf("status = %s, want pending", fetched.Status)
	}
}
