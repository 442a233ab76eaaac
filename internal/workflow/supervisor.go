package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketpipe/internal/logging"
)

// Supervisor owns one StageWorker goroutine per graph stage and coordinates
// their lifecycle.
type Supervisor struct {
	store  ItemStore
	graph  *Graph
	base   WorkerConfig
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]stageHandler
	workers  []*StageWorker
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
}

type stageHandler struct {
	processor Processor
	expander  Expander
}

// NewSupervisor constructs a supervisor. The base config's Stage field is
// ignored; each registered stage gets its own copy.
func NewSupervisor(store ItemStore, graph *Graph, base WorkerConfig, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		store:    store,
		graph:    graph,
		base:     base,
		logger:   logging.WithComponent(logger, "supervisor"),
		handlers: make(map[string]stageHandler),
	}
}

// Register binds a processor and optional expander to a stage. Registering
// after Start or for a stage outside the graph is an error.
func (s *Supervisor) Register(stage string, processor Processor, expander Expander) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("cannot register stage %q while running", stage)
	}
	if !s.graph.Contains(stage) {
		return fmt.Errorf("stage %q is not in the workflow graph", stage)
	}
	if processor == nil {
		return fmt.Errorf("stage %q requires a processor", stage)
	}
	if _, dup := s.handlers[stage]; dup {
		return fmt.Errorf("stage %q is already registered", stage)
	}
	s.handlers[stage] = stageHandler{processor: processor, expander: expander}
	return nil
}

// Start launches one worker goroutine per stage. Every graph stage must
// have been registered.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("supervisor already running")
	}
	for _, stage := range s.graph.Order() {
		if _, ok := s.handlers[stage]; !ok {
			return fmt.Errorf("stage %q has no registered processor", stage)
		}
	}

	s.workers = s.workers[:0]
	for _, stage := range s.graph.Order() {
		cfg := s.base
		cfg.Stage = stage
		handler := s.handlers[stage]
		worker, err := NewStageWorker(cfg, s.store, s.graph, handler.processor, handler.expander, s.logger)
		if err != nil {
			return fmt.Errorf("build worker for %s: %w", stage, err)
		}
		s.workers = append(s.workers, worker)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	var wg sync.WaitGroup
	for _, worker := range s.workers {
		wg.Add(1)
		go func(w *StageWorker) {
			defer wg.Done()
			w.Run(runCtx)
		}(worker)
	}
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(s.done)

	s.logger.Info("workflow supervisor started",
		logging.Int("stages", len(s.workers)),
	)
	return nil
}

// Stop cancels all workers and waits for them to exit, up to a bound.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.Info("workflow supervisor stopped")
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for stage workers to stop")
	}
}

// Running reports whether workers are active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
