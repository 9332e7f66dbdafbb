package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bobbin/internal/cadence"
	"bobbin/internal/collection"
	"bobbin/internal/config"
	"bobbin/internal/fingerprint"
	"bobbin/internal/grouplock"
	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/settings"
	"bobbin/internal/stage"
	"bobbin/internal/store"
)

// Manager coordinates queue processing using the registered review stage.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	settings *settings.Service

	fingerprints *fingerprint.Service
	collections  *collection.Manager
	locks        *grouplock.Manager
	cadence      *cadence.Scheduler
	review       stage.Handler

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	heartbeatInterval  time.Duration
	heartbeatTimeout   time.Duration
	sweepInterval      time.Duration
	workers            int

	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Deps bundles the collaborating services the manager drives.
type Deps struct {
	Store        *store.Store
	Settings     *settings.Service
	Fingerprints *fingerprint.Service
	Collections  *collection.Manager
	Locks        *grouplock.Manager
	Cadence      *cadence.Scheduler
	Review       stage.Handler
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Option customizes the manager.
type Option func(*Manager)

// WithClock overrides the manager clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a pipeline manager.
func NewManager(cfg *config.Config, deps Deps, opts ...Option) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:                cfg,
		store:              deps.Store,
		logger:             logger.With(logging.String(logging.FieldComponent, "pipeline")),
		metrics:            deps.Metrics,
		settings:           deps.Settings,
		fingerprints:       deps.Fingerprints,
		collections:        deps.Collections,
		locks:              deps.Locks,
		cadence:            deps.Cadence,
		review:             deps.Review,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeatInterval:  time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		heartbeatTimeout:   time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
		sweepInterval:      time.Duration(cfg.Collections.SweepIntervalSeconds) * time.Second,
		workers:            workers,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}
	if m.review == nil {
		return errors.New("review stage not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(m.workers + 1)
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i)
	}
	go m.runMaintenance(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether background processing is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
