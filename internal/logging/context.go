package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldTenantKey is the standardized structured logging key for request tenant keys.
	FieldTenantKey = "tenant_key"
	// FieldStageKey is the standardized structured logging key for per-stage item keys.
	FieldStageKey = "stage_key"
	// FieldCorrelationID is the standardized structured logging key for poll-cycle correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log records for downstream filtering.
	FieldEventType = "event_type"
)

type contextKey int

const (
	ctxKeyTenant contextKey = iota
	ctxKeyStage
	ctxKeyStageKey
	ctxKeyCorrelation
)

// WithItemContext returns a context carrying the identifying fields of a work item.
func WithItemContext(ctx context.Context, stage, tenantKey, stageKey, correlationID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyStage, stage)
	ctx = context.WithValue(ctx, ctxKeyTenant, tenantKey)
	ctx = context.WithValue(ctx, ctxKeyStageKey, stageKey)
	if correlationID != "" {
		ctx = context.WithValue(ctx, ctxKeyCorrelation, correlationID)
	}
	return ctx
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if stage, ok := ctx.Value(ctxKeyStage).(string); ok && stage != "" {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if tenant, ok := ctx.Value(ctxKeyTenant).(string); ok && tenant != "" {
		fields = append(fields, slog.String(FieldTenantKey, tenant))
	}
	if key, ok := ctx.Value(ctxKeyStageKey).(string); ok && key != "" {
		fields = append(fields, slog.String(FieldStageKey, key))
	}
	if rid, ok := ctx.Value(ctxKeyCorrelation).(string); ok && rid != "" {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
