package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/pipeline"
	"bobbin/internal/settings"
	"bobbin/internal/store"
)

// Daemon coordinates background processing and enforces single-instance
// execution via a file lock under the log directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	pipeline *pipeline.Manager
	settings *settings.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, pm *pipeline.Manager, settingsSvc *settings.Service) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || pm == nil || settingsSvc == nil {
		return nil, errors.New("daemon requires config, store, logger, pipeline manager, and settings service")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "bobbind.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		pipeline: pm,
		settings: settingsSvc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start launches the pipeline manager and the API server and acquires the
// daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bobbin daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.pipeline.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.pipeline.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("bobbin daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.pipeline.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("bobbin daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, or empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// LockPath returns the daemon lock file path.
func (d *Daemon) LockPath() string {
	return d.lockPath
}
