package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"marketpipe/internal/config"
)

// Store manages work item persistence backed by SQLite, one table per stage.
type Store struct {
	db     *sql.DB
	path   string
	stages []string
	tables map[string]string
}

// Open initializes or connects to the item database and ensures every
// stage's table exists. The stage list is fixed for the life of the store.
func Open(cfg *config.Config, stages []string) (*Store, error) {
	if len(stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "items.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	tables := make(map[string]string, len(stages))
	ordered := make([]string, 0, len(stages))
	for _, stage := range stages {
		trimmed := strings.TrimSpace(stage)
		if trimmed == "" {
			continue
		}
		tables[trimmed] = tableName(trimmed)
		ordered = append(ordered, trimmed)
	}

	store := &Store{db: db, path: dbPath, stages: ordered, tables: tables}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the item database location.
func (s *Store) Path() string {
	return s.path
}

// Stages returns the stage list the store was opened with.
func (s *Store) Stages() []string {
	cp := make([]string, len(s.stages))
	copy(cp, s.stages)
	return cp
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) table(stage string) (string, error) {
	table, ok := s.tables[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return table, nil
}

// Put inserts a new work item into its stage table. Zero timestamps and an
// empty status are defaulted; the caller owns key construction.
func (s *Store) Put(ctx context.Context, stage string, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	table, err := s.table(stage)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.Priority == "" {
		item.Priority = PriorityMedium
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO `+table+` (
            tenant_key, stage_key, status, priority, processing_strategy,
            retry_count, max_retries, error_message, payload_json, metadata_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.TenantKey,
		item.StageKey,
		item.Status,
		item.Priority,
		nullableString(item.ProcessingStrategy),
		item.RetryCount,
		item.MaxRetries,
		nullableString(item.ErrorMessage),
		nullableString(item.PayloadJSON),
		nullableString(item.MetadataJSON),
		item.CreatedAt.Format(time.RFC3339Nano),
		item.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Get fetches one item by its composite key.
func (s *Store) Get(ctx context.Context, stage, tenantKey, stageKey string) (*Item, error) {
	table, err := s.table(stage)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM `+table+` WHERE tenant_key = ? AND stage_key = ?`,
		tenantKey,
		stageKey,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing item. Updates against a terminal
// row are refused with ErrItemFinal: terminal items are immutable.
func (s *Store) Update(ctx context.Context, stage string, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	table, err := s.table(stage)
	if err != nil {
		return err
	}
	item.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE `+table+`
         SET status = ?, priority = ?, processing_strategy = ?, retry_count = ?,
             max_retries = ?, error_message = ?, payload_json = ?, metadata_json = ?,
             updated_at = ?
         WHERE tenant_key = ? AND stage_key = ?
           AND status NOT IN ('completed', 'failed', 'cancelled')`,
		item.Status,
		item.Priority,
		nullableString(item.ProcessingStrategy),
		item.RetryCount,
		item.MaxRetries,
		nullableString(item.ErrorMessage),
		nullableString(item.PayloadJSON),
		nullableString(item.MetadataJSON),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.TenantKey,
		item.StageKey,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return s.classifyUnaffected(ctx, table, res, item.TenantKey, item.StageKey)
}

// UpdateStatus transitions an item's status, optionally recording an error
// message. Like Update, it refuses to touch terminal rows.
func (s *Store) UpdateStatus(ctx context.Context, stage, tenantKey, stageKey string, status Status, errorMessage string) error {
	table, err := s.table(stage)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var res sql.Result
	if errorMessage == "" {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE `+table+` SET status = ?, updated_at = ?
             WHERE tenant_key = ? AND stage_key = ?
               AND status NOT IN ('completed', 'failed', 'cancelled')`,
			status, now, tenantKey, stageKey,
		)
	} else {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE `+table+` SET status = ?, error_message = ?, updated_at = ?
             WHERE tenant_key = ? AND stage_key = ?
               AND status NOT IN ('completed', 'failed', 'cancelled')`,
			status, errorMessage, now, tenantKey, stageKey,
		)
	}
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return s.classifyUnaffected(ctx, table, res, tenantKey, stageKey)
}

// UpdatePayload replaces an item's payload without touching its status.
func (s *Store) UpdatePayload(ctx context.Context, stage, tenantKey, stageKey, payloadJSON string) error {
	table, err := s.table(stage)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE `+table+` SET payload_json = ?, updated_at = ?
         WHERE tenant_key = ? AND stage_key = ?
           AND status NOT IN ('completed', 'failed', 'cancelled')`,
		nullableString(payloadJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		tenantKey,
		stageKey,
	)
	if err != nil {
		return fmt.Errorf("update payload: %w", err)
	}
	return s.classifyUnaffected(ctx, table, res, tenantKey, stageKey)
}

func (s *Store) classifyUnaffected(ctx context.Context, table string, res sql.Result, tenantKey, stageKey string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM `+table+` WHERE tenant_key = ? AND stage_key = ?`,
		tenantKey, stageKey,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("classify update: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrItemFinal
}

// ScanByStatus returns up to limit items in any of the given statuses.
// Selection order is unspecified; callers must not depend on it.
func (s *Store) ScanByStatus(ctx context.Context, stage string, statuses []Status, limit int) ([]*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	table, err := s.table(stage)
	if err != nil {
		return nil, err
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for _, status := range statuses {
		args = append(args, status)
	}
	query := `SELECT ` + itemColumns + ` FROM ` + table + ` WHERE status IN (` + placeholders + `)`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan by status: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ItemsByTenant returns every item a stage holds for one request.
func (s *Store) ItemsByTenant(ctx context.Context, stage, tenantKey string) ([]*Item, error) {
	table, err := s.table(stage)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM `+table+` WHERE tenant_key = ? ORDER BY stage_key`,
		tenantKey,
	)
	if err != nil {
		return nil, fmt.Errorf("items by tenant: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Stats returns per-stage item counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[string]map[Status]int, error) {
	stats := make(map[string]map[Status]int, len(s.stages))
	for _, stage := range s.stages {
		table := s.tables[stage]
		rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM `+table+` GROUP BY status`)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", stage, err)
		}
		counts := make(map[Status]int)
		for rows.Next() {
			var status Status
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return nil, err
			}
			counts[status] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		stats[stage] = counts
	}
	return stats, nil
}

const itemColumns = "tenant_key, stage_key, status, priority, processing_strategy, retry_count, max_retries, error_message, payload_json, metadata_json, created_at, updated_at"

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		tenantKey    string
		stageKey     string
		statusStr    string
		priorityStr  string
		strategy     sql.NullString
		retryCount   int
		maxRetries   int
		errorMessage sql.NullString
		payload      sql.NullString
		metadata     sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&tenantKey,
		&stageKey,
		&statusStr,
		&priorityStr,
		&strategy,
		&retryCount,
		&maxRetries,
		&errorMessage,
		&payload,
		&metadata,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		TenantKey:          tenantKey,
		StageKey:           stageKey,
		Status:             Status(statusStr),
		Priority:           Priority(priorityStr),
		ProcessingStrategy: strategy.String,
		RetryCount:         retryCount,
		MaxRetries:         maxRetries,
		ErrorMessage:       errorMessage.String,
		PayloadJSON:        payload.String,
		MetadataJSON:       metadata.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
