package queue

import (
	"context"
	"fmt"
	"strings"
)

// One table per stage. The status index backs the poll loop's scan-by-status
// so polling cost tracks queue depth, not table size.
const stageTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    tenant_key          TEXT NOT NULL,
    stage_key           TEXT NOT NULL,
    status              TEXT NOT NULL,
    priority            TEXT NOT NULL DEFAULT 'medium',
    processing_strategy TEXT,
    retry_count         INTEGER NOT NULL DEFAULT 0,
    max_retries         INTEGER NOT NULL DEFAULT 3,
    error_message       TEXT,
    payload_json        TEXT,
    metadata_json       TEXT,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL,
    PRIMARY KEY (tenant_key, stage_key)
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_status ON %[1]s (status);
CREATE INDEX IF NOT EXISTS idx_%[1]s_tenant ON %[1]s (tenant_key);
`

func (s *Store) applySchema(ctx context.Context) error {
	for _, table := range s.tables {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(stageTableDDL, table)); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

func tableName(stage string) string {
	var b strings.Builder
	b.WriteString("items_")
	for _, r := range strings.ToLower(stage) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
