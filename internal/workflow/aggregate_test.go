package workflow_test

import (
	"testing"

	"marketpipe/internal/queue"
	"marketpipe/internal/workflow"
)

func TestAggregatePrecedence(t *testing.T) {
	g := workflow.DefaultGraph()

	tests := []struct {
		name   string
		latest map[string]queue.Status
		want   workflow.OverallStatus
	}{
		{
			name:   "no items",
			latest: nil,
			want:   workflow.OverallNotFound,
		},
		{
			name: "failed dominates even when chronologically oldest",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusFailed,
				workflow.StagePerplexity:        queue.StatusCompleted,
				workflow.StageInsight:           queue.StatusCompleted,
				workflow.StageImplication:       queue.StatusCompleted,
			},
			want: workflow.OverallFailed,
		},
		{
			name: "cancelled beats completion",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusCancelled,
			},
			want: workflow.OverallCancelled,
		},
		{
			name: "both terminal stages completed",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusCompleted,
				workflow.StagePerplexity:        queue.StatusCompleted,
				workflow.StageInsight:           queue.StatusCompleted,
				workflow.StageImplication:       queue.StatusCompleted,
			},
			want: workflow.OverallCompleted,
		},
		{
			name: "only insight completed",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusCompleted,
				workflow.StagePerplexity:        queue.StatusCompleted,
				workflow.StageInsight:           queue.StatusCompleted,
			},
			want: workflow.OverallPartiallyCompleted,
		},
		{
			name: "processing anywhere",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusProcessing,
			},
			want: workflow.OverallProcessing,
		},
		{
			name: "retry counts as queued",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusRetry,
			},
			want: workflow.OverallQueued,
		},
		{
			name: "pending counts as queued",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusPending,
			},
			want: workflow.OverallQueued,
		},
		{
			name: "completed middle stages only",
			latest: map[string]queue.Status{
				workflow.StageRequestAcceptance: queue.StatusCompleted,
				workflow.StageSerp:              queue.StatusCompleted,
				workflow.StagePerplexity:        queue.StatusCompleted,
			},
			want: workflow.OverallUnknown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := workflow.Aggregate(g, tc.latest); got != tc.want {
				t.Fatalf("Aggregate = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	g := workflow.DefaultGraph()
	latest := map[string]queue.Status{
		workflow.StageRequestAcceptance: queue.StatusCompleted,
		workflow.StageSerp:              queue.StatusProcessing,
		workflow.StageInsight:           queue.StatusPending,
	}
	first := workflow.Aggregate(g, latest)
	for i := 0; i < 50; i++ {
		if got := workflow.Aggregate(g, latest); got != first {
			t.Fatalf("Aggregate varied: %s then %s", first, got)
		}
	}
}

func TestOverallStatusIsFinal(t *testing.T) {
	finals := []workflow.OverallStatus{workflow.OverallCompleted, workflow.OverallFailed, workflow.OverallCancelled}
	for _, status := range finals {
		if !status.IsFinal() {
			t.Errorf("%s should be final", status)
		}
	}
	if workflow.OverallPartiallyCompleted.IsFinal() {
		t.Error("partially_completed should not be final")
	}
	if workflow.OverallQueued.IsFinal() {
		t.Error("queued should not be final")
	}
}
