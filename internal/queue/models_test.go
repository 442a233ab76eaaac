package queue_test

import (
	"strings"
	"testing"

	"marketpipe/internal/queue"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to queue.Status }{
		{queue.StatusPending, queue.StatusProcessing},
		{queue.StatusPending, queue.StatusCancelled},
		{queue.StatusProcessing, queue.StatusCompleted},
		{queue.StatusProcessing, queue.StatusFailed},
		{queue.StatusProcessing, queue.StatusRetry},
		{queue.StatusProcessing, queue.StatusCancelled},
		{queue.StatusRetry, queue.StatusProcessing},
		{queue.StatusRetry, queue.StatusCancelled},
	}
	for _, tc := range allowed {
		if !queue.CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to queue.Status }{
		{queue.StatusPending, queue.StatusCompleted},
		{queue.StatusCompleted, queue.StatusProcessing},
		{queue.StatusFailed, queue.StatusRetry},
		{queue.StatusCancelled, queue.StatusProcessing},
		{queue.StatusCompleted, queue.StatusCancelled},
	}
	for _, tc := range denied {
		if queue.CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestRecordFailureMovesToRetryUntilBudgetExhausted(t *testing.T) {
	item := &queue.Item{Status: queue.StatusProcessing, MaxRetries: 3}

	item.RecordFailure("provider timeout")
	if item.Status != queue.StatusRetry || item.RetryCount != 1 {
		t.Fatalf("after first failure: status=%s retry_count=%d", item.Status, item.RetryCount)
	}
	if item.ErrorMessage != "provider timeout" {
		t.Fatalf("unexpected error message %q", item.ErrorMessage)
	}

	item.Status = queue.StatusProcessing
	item.RecordFailure("provider timeout")
	if item.Status != queue.StatusRetry || item.RetryCount != 2 {
		t.Fatalf("after second failure: status=%s retry_count=%d", item.Status, item.RetryCount)
	}

	item.Status = queue.StatusProcessing
	item.RecordFailure("provider timeout")
	if item.Status != queue.StatusFailed {
		t.Fatalf("expected failed after exhausting budget, got %s", item.Status)
	}
	if item.RetryCount != 3 {
		t.Fatalf("retry_count = %d, want 3", item.RetryCount)
	}
	if item.ErrorMessage != queue.MaxRetriesMessage {
		t.Fatalf("error message = %q, want %q", item.ErrorMessage, queue.MaxRetriesMessage)
	}
}

func TestFailBypassesRetryBudget(t *testing.T) {
	item := &queue.Item{Status: queue.StatusProcessing, MaxRetries: 3}
	item.Fail("query is required")
	if item.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if item.RetryCount != 0 {
		t.Fatalf("retry_count = %d, want 0", item.RetryCount)
	}
	if item.ErrorMessage != "query is required" {
		t.Fatalf("unexpected error message %q", item.ErrorMessage)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Pending "); !ok || status != queue.StatusPending {
		t.Fatalf("ParseStatus(Pending) = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
}

func TestTenantKeyRoundTrip(t *testing.T) {
	key := queue.NewTenantKey("acme", "req-42")
	if key != "acme#req-42" {
		t.Fatalf("tenant key = %q", key)
	}
	project, request, ok := queue.SplitTenantKey(key)
	if !ok {
		t.Fatal("SplitTenantKey rejected a valid key")
	}
	if project != "acme" || request != "req-42" {
		t.Fatalf("split = %q, %q", project, request)
	}
}

func TestNewStageKeyEmbedsStage(t *testing.T) {
	key := queue.NewStageKey("serp")
	if !strings.HasPrefix(key, "serp"+queue.KeySeparator) {
		t.Fatalf("stage key %q does not start with stage name", key)
	}
	if _, ok := queue.StageKeyTime(key); !ok {
		t.Fatal("StageKeyTime could not parse the embedded timestamp")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	item := queue.Item{MetadataJSON: queue.EncodeMetadata(map[string]string{"origin": "api"})}
	meta := item.Metadata()
	if meta["origin"] != "api" {
		t.Fatalf("metadata = %#v", meta)
	}
	if queue.EncodeMetadata(nil) != "" {
		t.Fatal("expected empty encoding for nil metadata")
	}
}
