// Package workflow is the queue-driven engine at the heart of marketpipe.
// It owns the static stage graph, the generic per-stage poll/process/retry
// worker, best-effort fan-out into successor stages, the cross-stage status
// rollup, and request cancellation. Stage-specific behavior is injected
// through the Processor and Expander interfaces.
package workflow
