// Package grouplock provides non-blocking per-group mutual exclusion with a
// TTL safety net, backed by the store.
package grouplock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

// Manager hands out group locks. Acquire never blocks; contended calls
// return services.ErrLocked immediately.
type Manager struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	ttl time.Duration
	now func() time.Time
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

// NewManager wires a lock manager with the configured TTL.
func NewManager(cfg *config.Config, st *store.Store, mtr *metrics.Metrics, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:   st,
		metrics: mtr,
		logger:  logger.With(logging.String(logging.FieldComponent, "grouplock")),
		ttl:     time.Duration(cfg.Locks.TTLSeconds) * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire takes the group lock and returns the holder token. A live holder
// yields services.ErrLocked; expired holders are reclaimed in the same
// operation.
func (m *Manager) Acquire(ctx context.Context, groupID string) (string, error) {
	now := m.now()
	token := uuid.NewString()
	_, err := m.store.AcquireLock(ctx, groupID, token, now, now.Add(m.ttl))
	if errors.Is(err, store.ErrLockHeld) {
		m.metrics.LockContended()
		return "", services.Wrap(services.ErrLocked, "grouplock", "acquire", fmt.Sprintf("group %s is locked", groupID), err)
	}
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "grouplock", "acquire", "acquire lock", err)
	}
	m.logger.DebugContext(ctx, "lock acquired",
		logging.String(logging.FieldGroupID, groupID),
		logging.Time("expires", now.Add(m.ttl)))
	return token, nil
}

// Release frees the lock when the token matches the holder. A mismatched or
// absent lock is a validation error: the caller's lease already lapsed.
func (m *Manager) Release(ctx context.Context, groupID, token string) error {
	released, err := m.store.ReleaseLock(ctx, groupID, token)
	if err != nil {
		return services.Wrap(services.ErrTransient, "grouplock", "release", "release lock", err)
	}
	if !released {
		return services.Wrap(services.ErrValidation, "grouplock", "release",
			fmt.Sprintf("token does not hold the lock for group %s", groupID), nil)
	}
	m.logger.DebugContext(ctx, "lock released", logging.String(logging.FieldGroupID, groupID))
	return nil
}

// Holder returns the current lock row for observability, nil when unlocked.
func (m *Manager) Holder(ctx context.Context, groupID string) (*store.GroupLock, error) {
	lock, err := m.store.LockForGroup(ctx, groupID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "grouplock", "holder", "load lock", err)
	}
	return lock, nil
}

// Sweep removes expired lock rows.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	purged, err := m.store.PurgeExpiredLocks(ctx, m.now())
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "grouplock", "sweep", "purge expired locks", err)
	}
	return purged, nil
}
