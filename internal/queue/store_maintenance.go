package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing moves items left in processing back to pending across
// every stage table. Only a crash or hard kill can strand items there, so
// this runs once at daemon startup before workers poll.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	total := 0
	for _, stage := range s.stages {
		table := s.tables[stage]
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE `+table+` SET status = ?, updated_at = ? WHERE status = ?`,
			StatusPending, now, StatusProcessing,
		)
		if err != nil {
			return total, fmt.Errorf("reset processing items in %s: %w", stage, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected for %s: %w", stage, err)
		}
		total += int(affected)
	}
	return total, nil
}
