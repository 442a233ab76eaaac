package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"marketpipe/internal/logging"
	"marketpipe/internal/queue"
	"marketpipe/internal/services"
)

// pollStatuses are the statuses a poll cycle claims. Retry items are polled
// exactly like pending ones; the engine does not distinguish them for
// selection purposes.
var pollStatuses = []queue.Status{queue.StatusPending, queue.StatusRetry}

// WorkerConfig carries the timing knobs for one stage worker.
type WorkerConfig struct {
	Stage              string
	BatchSize          int
	PollInterval       time.Duration
	ItemDelay          time.Duration
	ItemTimeout        time.Duration
	ErrorRetryInterval time.Duration
	HeartbeatInterval  time.Duration
}

// StageWorker drives one stage's items through the state machine: poll a
// batch, process each item sequentially, apply retry bookkeeping, and fan
// out completions into successor stages.
type StageWorker struct {
	cfg       WorkerConfig
	store     ItemStore
	graph     *Graph
	processor Processor
	expander  Expander
	logger    *slog.Logger
}

// NewStageWorker constructs a worker. The expander may be nil for terminal
// stages.
func NewStageWorker(cfg WorkerConfig, store ItemStore, graph *Graph, processor Processor, expander Expander, logger *slog.Logger) (*StageWorker, error) {
	if cfg.Stage == "" {
		return nil, errors.New("worker requires a stage name")
	}
	if store == nil || graph == nil || processor == nil {
		return nil, errors.New("worker requires store, graph, and processor")
	}
	if !graph.Contains(cfg.Stage) {
		return nil, fmt.Errorf("stage %q is not in the workflow graph", cfg.Stage)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ErrorRetryInterval <= 0 {
		cfg.ErrorRetryInterval = cfg.PollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StageWorker{
		cfg:       cfg,
		store:     store,
		graph:     graph,
		processor: processor,
		expander:  expander,
		logger:    logging.WithComponent(logger, "worker-"+cfg.Stage).With(logging.String(logging.FieldStage, cfg.Stage)),
	}, nil
}

// Run polls until the context is cancelled. Cancellation is cooperative:
// it is observed between poll cycles and between items, never mid-item.
func (w *StageWorker) Run(ctx context.Context) {
	w.logger.Info("stage worker started")
	lastHeartbeat := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stage worker stopped")
			return
		default:
		}

		processed, err := w.pollOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				w.logger.Info("stage worker stopped")
				return
			}
			// Poll-loop errors are never fatal; log and resume after the
			// error interval.
			w.logger.Error("poll cycle failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "poll_failed"),
			)
			if !sleepCtx(ctx, w.cfg.ErrorRetryInterval) {
				return
			}
			continue
		}

		if processed == 0 {
			if time.Since(lastHeartbeat) >= w.cfg.HeartbeatInterval {
				w.logger.Debug("stage worker idle",
					logging.String(logging.FieldEventType, "heartbeat"),
				)
				lastHeartbeat = time.Now()
			}
			if !sleepCtx(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}
		lastHeartbeat = time.Now()
	}
}

// pollOnce claims up to one batch of pending/retry items and processes them
// strictly sequentially. Individual item outcomes never abort the batch.
func (w *StageWorker) pollOnce(ctx context.Context) (int, error) {
	items, err := w.store.ScanByStatus(ctx, w.cfg.Stage, pollStatuses, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", w.cfg.Stage, err)
	}

	processed := 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}
		// The inter-item delay throttles rate-limited downstream providers.
		if w.cfg.ItemDelay > 0 && !sleepCtx(ctx, w.cfg.ItemDelay) {
			return processed, ctx.Err()
		}
		w.processItem(ctx, item)
		processed++
	}
	return processed, nil
}

func (w *StageWorker) processItem(ctx context.Context, item *queue.Item) {
	correlationID := uuid.NewString()
	itemCtx := logging.WithItemContext(ctx, w.cfg.Stage, item.TenantKey, item.StageKey, correlationID)
	logger := logging.WithContext(itemCtx, w.logger)

	item.SetProcessing()
	if err := w.store.Update(ctx, w.cfg.Stage, item); err != nil {
		if errors.Is(err, queue.ErrItemFinal) {
			// Cancelled out from under us between scan and claim.
			logger.Debug("skipping item already in a terminal state")
			return
		}
		logger.Error("failed to claim item", logging.Error(err))
		return
	}

	start := time.Now()
	logger.Info("item processing started",
		logging.String(logging.FieldEventType, "item_start"),
		logging.Int("retry_count", item.RetryCount),
	)

	result, procErr := w.invokeProcessor(itemCtx, item)
	if procErr != nil {
		if errors.Is(procErr, context.Canceled) && ctx.Err() != nil {
			logger.Debug("item interrupted by shutdown")
			return
		}
		w.handleFailure(ctx, logger, item, procErr)
		return
	}

	item.SetCompleted(result.PayloadJSON)
	if err := w.store.Update(ctx, w.cfg.Stage, item); err != nil {
		if errors.Is(err, queue.ErrItemFinal) {
			logger.Debug("item reached a terminal state mid-processing; result discarded")
			return
		}
		logger.Error("failed to persist completion", logging.Error(err))
		return
	}
	logger.Info("item completed",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.Duration("item_duration", time.Since(start)),
	)

	w.expand(ctx, logger, item)
}

// invokeProcessor runs the stage processor under the per-item timeout and
// converts panics into ordinary failures so a misbehaving processor can
// never take down the poll loop.
func (w *StageWorker) invokeProcessor(ctx context.Context, item *queue.Item) (result Result, err error) {
	if w.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.ItemTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, item)
}

func (w *StageWorker) handleFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, procErr error) {
	message := procErr.Error()
	if services.IsRetryable(procErr) {
		item.RecordFailure(message)
	} else {
		item.Fail(message)
	}

	if err := w.store.Update(ctx, w.cfg.Stage, item); err != nil && !errors.Is(err, queue.ErrItemFinal) {
		logger.Error("failed to persist item failure", logging.Error(err))
		return
	}

	switch item.Status {
	case queue.StatusRetry:
		logger.Warn("item failed, will retry",
			logging.Error(procErr),
			logging.String(logging.FieldEventType, "item_retry"),
			logging.Int("retry_count", item.RetryCount),
			logging.Int("max_retries", item.MaxRetries),
		)
	default:
		logger.Error("item failed permanently",
			logging.Error(procErr),
			logging.String(logging.FieldEventType, "item_failed"),
			logging.Int("retry_count", item.RetryCount),
		)
	}
}

// expand creates successor items for a completed item. Fan-out is
// best-effort and at-least-once: a failed successor creation is logged and
// neither rolls back the parent's completion nor blocks the remaining
// successors.
func (w *StageWorker) expand(ctx context.Context, logger *slog.Logger, item *queue.Item) {
	successors := w.graph.Successors(w.cfg.Stage)
	if len(successors) == 0 || w.expander == nil {
		return
	}

	expansions, err := w.expander.Expand(ctx, item)
	if err != nil {
		logger.Error("expansion failed; successor items were not created",
			logging.Error(err),
			logging.String(logging.FieldEventType, "expand_failed"),
		)
		return
	}

	allowed := make(map[string]struct{}, len(successors))
	for _, stage := range successors {
		allowed[stage] = struct{}{}
	}

	for _, expansion := range expansions {
		if _, ok := allowed[expansion.Stage]; !ok {
			logger.Warn("expander targeted a stage that is not a successor",
				logging.String("target_stage", expansion.Stage),
			)
			continue
		}

		successor := &queue.Item{
			TenantKey:          item.TenantKey,
			StageKey:           queue.NewStageKey(expansion.Stage),
			Status:             queue.StatusPending,
			Priority:           item.Priority,
			ProcessingStrategy: item.ProcessingStrategy,
			MaxRetries:         item.MaxRetries,
			PayloadJSON:        expansion.PayloadJSON,
			MetadataJSON:       item.MetadataJSON,
		}
		if expansion.Priority != "" {
			successor.Priority = expansion.Priority
		}
		if expansion.Metadata != nil {
			successor.MetadataJSON = queue.EncodeMetadata(expansion.Metadata)
		}

		if err := w.store.Put(ctx, expansion.Stage, successor); err != nil {
			logger.Error("failed to create successor item",
				logging.Error(err),
				logging.String(logging.FieldEventType, "fanout_failed"),
				logging.String("target_stage", expansion.Stage),
				logging.String("target_stage_key", successor.StageKey),
			)
			continue
		}
		logger.Info("successor item created",
			logging.String(logging.FieldEventType, "fanout"),
			logging.String("target_stage", expansion.Stage),
			logging.String("target_stage_key", successor.StageKey),
		)
	}
}

// sleepCtx sleeps for d or until the context is cancelled, reporting whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
