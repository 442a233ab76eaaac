// Package queue persists pipeline work items. Each stage owns one SQLite
// table keyed by (tenant_key, stage_key); the store exposes the put, get,
// scan-by-status, and guarded update operations the workflow engine is built
// on. Terminal items (completed, failed, cancelled) are never mutated and
// never deleted.
package queue
