package workflow

import (
	"context"

	"marketpipe/internal/queue"
)

// ItemStore is the engine-facing persistence contract, satisfied by
// queue.Store. Listing by status must be at least eventually consistent;
// nothing here assumes strong consistency.
type ItemStore interface {
	Put(ctx context.Context, stage string, item *queue.Item) error
	Update(ctx context.Context, stage string, item *queue.Item) error
	UpdateStatus(ctx context.Context, stage, tenantKey, stageKey string, status queue.Status, errorMessage string) error
	ScanByStatus(ctx context.Context, stage string, statuses []queue.Status, limit int) ([]*queue.Item, error)
	ItemsByTenant(ctx context.Context, stage, tenantKey string) ([]*queue.Item, error)
}

// Result is what a Processor hands back on success.
type Result struct {
	// PayloadJSON replaces the item's payload when non-empty. The engine
	// stores it opaquely and never interprets it.
	PayloadJSON string
}

// Processor does one stage's work on one item. It must be safely
// retryable: the engine re-invokes it from scratch after a retry
// transition, never from partial progress.
type Processor interface {
	Process(ctx context.Context, item *queue.Item) (Result, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, item *queue.Item) (Result, error)

func (f ProcessorFunc) Process(ctx context.Context, item *queue.Item) (Result, error) {
	return f(ctx, item)
}

// Expansion describes one successor item to create after a completion.
// Zero-value Priority and Metadata inherit from the parent.
type Expansion struct {
	Stage       string
	PayloadJSON string
	Metadata    map[string]string
	Priority    queue.Priority
}

// Expander decides how a completed item fans out: how many successor items
// to create, in which stages, and with what payloads. It is pluggable per
// source stage because real stages expand N:M (one accepted request becomes
// one serp item per source; one serp item becomes one perplexity item per
// URL batch; one perplexity item becomes an insight and an implication item).
type Expander interface {
	Expand(ctx context.Context, item *queue.Item) ([]Expansion, error)
}

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc func(ctx context.Context, item *queue.Item) ([]Expansion, error)

func (f ExpanderFunc) Expand(ctx context.Context, item *queue.Item) ([]Expansion, error) {
	return f(ctx, item)
}
