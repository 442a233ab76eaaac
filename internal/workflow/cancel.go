package workflow

import (
	"context"
	"errors"
	"fmt"

	"marketpipe/internal/queue"
)

// ErrCancelNotAllowed is returned when a request is already in a final
// overall state and cannot be cancelled.
var ErrCancelNotAllowed = errors.New("request is already in a final state")

// Cancel transitions every live item of a request to cancelled. It rejects
// requests whose overall status is already completed, failed, or cancelled,
// which makes repeated cancellation of the same request a rejected no-op
// rather than a duplicate transition.
func Cancel(ctx context.Context, store ItemStore, g *Graph, tenantKey string) error {
	latest, err := LatestStatuses(ctx, store, g, tenantKey)
	if err != nil {
		return err
	}
	switch overall := Aggregate(g, latest); overall {
	case OverallNotFound:
		return queue.ErrNotFound
	case OverallCompleted, OverallFailed, OverallCancelled:
		return fmt.Errorf("%w (%s)", ErrCancelNotAllowed, overall)
	}

	var errs []error
	for _, stage := range g.Order() {
		items, err := store.ItemsByTenant(ctx, stage, tenantKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s items: %w", stage, err))
			continue
		}
		for _, item := range items {
			switch item.Status {
			case queue.StatusPending, queue.StatusProcessing, queue.StatusRetry:
			default:
				continue
			}
			err := store.UpdateStatus(ctx, stage, item.TenantKey, item.StageKey, queue.StatusCancelled, queue.CancelledMessage)
			if err != nil && !errors.Is(err, queue.ErrItemFinal) {
				errs = append(errs, fmt.Errorf("cancel %s/%s: %w", stage, item.StageKey, err))
			}
		}
	}
	return errors.Join(errs...)
}
