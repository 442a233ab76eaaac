package workflow

import (
	"context"
	"fmt"

	"marketpipe/internal/queue"
)

// OverallStatus is the derived status of an entire request, rolled up from
// the latest item per stage.
type OverallStatus string

const (
	OverallNotFound           OverallStatus = "not_found"
	OverallFailed             OverallStatus = "failed"
	OverallCancelled          OverallStatus = "cancelled"
	OverallCompleted          OverallStatus = "completed"
	OverallPartiallyCompleted OverallStatus = "partially_completed"
	OverallProcessing         OverallStatus = "processing"
	OverallQueued             OverallStatus = "queued"
	OverallUnknown            OverallStatus = "unknown"
)

// IsFinal reports whether the overall status admits no further change.
func (s OverallStatus) IsFinal() bool {
	switch s {
	case OverallCompleted, OverallFailed, OverallCancelled:
		return true
	}
	return false
}

// Aggregate rolls per-stage latest statuses up into one overall status.
// It is pure: identical inputs always yield identical results. Precedence,
// in order: failed in any stage dominates everything, then cancelled, then
// terminal-stage completion (all terminals completed, or some), then active
// work anywhere, then a last-to-first walk of the pipeline.
func Aggregate(g *Graph, latest map[string]queue.Status) OverallStatus {
	if len(latest) == 0 {
		return OverallNotFound
	}

	for _, status := range latest {
		if status == queue.StatusFailed {
			return OverallFailed
		}
	}
	for _, status := range latest {
		if status == queue.StatusCancelled {
			return OverallCancelled
		}
	}

	terminals := g.TerminalStages()
	completedTerminals := 0
	for _, stage := range terminals {
		if latest[stage] == queue.StatusCompleted {
			completedTerminals++
		}
	}
	if len(terminals) > 0 && completedTerminals == len(terminals) {
		return OverallCompleted
	}
	if completedTerminals > 0 {
		return OverallPartiallyCompleted
	}

	for _, status := range latest {
		if status == queue.StatusProcessing {
			return OverallProcessing
		}
	}
	for _, status := range latest {
		if status == queue.StatusPending || status == queue.StatusRetry {
			return OverallQueued
		}
	}

	// Walk the pipeline from the last stage back to the first; the first
	// non-completed stage found sets the result.
	order := g.Order()
	for i := len(order) - 1; i >= 0; i-- {
		status, ok := latest[order[i]]
		if !ok || status == queue.StatusCompleted {
			continue
		}
		switch status {
		case queue.StatusProcessing:
			return OverallProcessing
		case queue.StatusPending, queue.StatusRetry:
			return OverallQueued
		}
	}
	return OverallUnknown
}

// LatestStatuses loads, per stage, the status of the most-recently-touched
// item belonging to tenantKey. Stages with no items are absent from the map.
func LatestStatuses(ctx context.Context, store ItemStore, g *Graph, tenantKey string) (map[string]queue.Status, error) {
	latest := make(map[string]queue.Status)
	for _, stage := range g.Order() {
		items, err := store.ItemsByTenant(ctx, stage, tenantKey)
		if err != nil {
			return nil, fmt.Errorf("list %s items: %w", stage, err)
		}
		if item := latestItem(items); item != nil {
			latest[stage] = item.Status
		}
	}
	return latest, nil
}

// latestItem picks the item with the most recent UpdatedAt, falling back to
// CreatedAt when UpdatedAt ties or is unset.
func latestItem(items []*queue.Item) *queue.Item {
	var best *queue.Item
	for _, item := range items {
		if best == nil {
			best = item
			continue
		}
		if item.UpdatedAt.After(best.UpdatedAt) {
			best = item
			continue
		}
		if item.UpdatedAt.Equal(best.UpdatedAt) && item.CreatedAt.After(best.CreatedAt) {
			best = item
		}
	}
	return best
}
