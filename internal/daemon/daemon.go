package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/pipeline"
	"newsroom/internal/sweeper"
	"newsroom/internal/workflow"
)

// Daemon coordinates the sweeper and HTTP API and enforces single-instance
// execution via a file lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *articles.Store
	engine     *workflow.Engine
	sweeper    *sweeper.Sweeper
	aggregator *pipeline.Aggregator

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	DBPath         string
	LockFilePath   string
	SweeperRunning bool
	LastSweep      time.Time
	LastSweepError error
	Articles       articles.StatusCounts
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *articles.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	engine := workflow.New(store, logger)
	lockPath := filepath.Join(cfg.Paths.LogDir, "newsroomd.lock")

	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		engine:     engine,
		sweeper:    sweeper.New(cfg, store, engine, logger),
		aggregator: pipeline.New(store, logger, cfg.Workflow.RecentlyPublishedDays),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Engine exposes the workflow engine, for CLI and test use.
func (d *Daemon) Engine() *workflow.Engine { return d.engine }

// Sweeper exposes the scheduled publish sweeper.
func (d *Daemon) Sweeper() *sweeper.Sweeper { return d.sweeper }

// Aggregator exposes the pipeline aggregator.
func (d *Daemon) Aggregator() *pipeline.Aggregator { return d.aggregator }

// Start acquires the daemon lock and launches the sweeper and API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("prepare lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another newsroom daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.sweeper.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start sweeper: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.sweeper.Stop()
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start api: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("newsroom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the API and sweeper down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.api != nil {
		d.api.stop()
	}
	d.sweeper.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
	d.running.Store(false)
	d.logger.Info("newsroom daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the API listener address, empty when the API is disabled or
// not started.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	lastSweep, lastErr := d.sweeper.LastSweep()
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		DBPath:         d.store.Path(),
		LockFilePath:   d.lockPath,
		SweeperRunning: d.sweeper.Running(),
		LastSweep:      lastSweep,
		LastSweepError: lastErr,
	}
	if counts, err := d.store.Health(ctx); err == nil {
		status.Articles = counts
	} else {
		d.logger.Warn("article health query failed", logging.Error(err))
	}
	return status
}
