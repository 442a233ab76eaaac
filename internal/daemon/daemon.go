package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"marketpipe/internal/api"
	"marketpipe/internal/blob"
	"marketpipe/internal/config"
	"marketpipe/internal/logging"
	"marketpipe/internal/queue"
	"marketpipe/internal/workflow"
)

// Daemon coordinates the workflow supervisor and the HTTP gateway, and
// enforces single-instance execution. The single-instance lock matters for
// correctness, not just hygiene: two workers polling the same stage can
// double-process an item because the store hands out no leases.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	supervisor *workflow.Supervisor
	service    *api.RequestService

	lockPath string
	lock     *flock.Flock

	apiSrv *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon over already-opened stores.
func New(cfg *config.Config, store *queue.Store, blobs *blob.Store, graph *workflow.Graph, supervisor *workflow.Supervisor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || blobs == nil || graph == nil || supervisor == nil {
		return nil, errors.New("daemon requires config, stores, graph, and supervisor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.DataDir, "marketpiped.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      store,
		supervisor: supervisor,
		service:    api.NewRequestService(store, blobs, graph, cfg.Workflow.MaxRetries),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d.service, d.logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the instance lock, recovers orphaned items, and launches
// the supervisor and the gateway.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another marketpipe daemon instance is already running")
	}

	reset, err := d.store.ResetStuckProcessing(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck items: %w", err)
	}
	if reset > 0 {
		d.logger.Info("recovered items stranded in processing", logging.Int("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.supervisor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start supervisor: %w", err)
	}
	if err := d.apiSrv.start(runCtx); err != nil {
		cancel()
		_ = d.supervisor.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("marketpipe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()),
	)
	return nil
}

// Stop shuts down the gateway and workers and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	if err := d.supervisor.Stop(); err != nil {
		d.logger.Warn("supervisor did not stop cleanly", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("marketpipe daemon stopped")
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Service returns the request facade backing the gateway.
func (d *Daemon) Service() *api.RequestService {
	return d.service
}

// APIAddr returns the gateway's bound address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}
