// Package cadence gates how often a group may consume a batch and adapts the
// spacing class from recent arrival activity.
package cadence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/services"
	"bobbin/internal/settings"
	"bobbin/internal/store"
)

// Skip reasons persisted for observers.
const (
	SkipNotReady = "not_ready"
	SkipLocked   = "locked"
	SkipCadence  = "cadence"
	SkipExpired  = "expired"
)

// Activity thresholds for interval adaptation. The score counts classified
// arrivals since the last successful consumption.
const (
	narrowActivityScore = 6
	widenActivityScore  = 1
)

// Scheduler decides consumption timing per group.
type Scheduler struct {
	store    *store.Store
	settings *settings.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger

	defaultInterval store.IntervalClass

	now func() time.Time
}

// Option customizes the scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler wires a cadence scheduler.
func NewScheduler(cfg *config.Config, st *store.Store, settingsSvc *settings.Service, mtr *metrics.Metrics, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval, ok := store.ParseInterval(cfg.Cadence.DefaultInterval)
	if !ok {
		interval = store.IntervalDaily
	}
	s := &Scheduler{
		store:           st,
		settings:        settingsSvc,
		metrics:         mtr,
		logger:          logger.With(logging.String(logging.FieldComponent, "cadence")),
		defaultInterval: interval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Permit reports whether the group may consume a batch now. Denials return
// services.ErrCadenceDenied with the blocking rule in the message. Groups
// with no consumption history are always permitted.
func (s *Scheduler) Permit(ctx context.Context, groupID string) error {
	state, err := s.store.CadenceStateForGroup(ctx, groupID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "cadence", "permit", "load cadence state", err)
	}
	if state == nil || state.LastConsumedAt == nil {
		return nil
	}

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	last := *state.LastConsumedAt

	// Hard ceiling: one successful consumption per calendar day, whatever the
	// interval class says.
	if sameCalendarDay(last, now) {
		return services.Wrap(services.ErrCadenceDenied, "cadence", "permit",
			fmt.Sprintf("group %s already consumed on %s", groupID, now.UTC().Format("2006-01-02")), nil)
	}

	spacing := classSpacing(state.Interval, snap.CadenceFloorHours)
	if elapsed := now.Sub(last); elapsed < spacing {
		return services.Wrap(services.ErrCadenceDenied, "cadence", "permit",
			fmt.Sprintf("group %s needs %s between consumptions, only %s elapsed",
				groupID, spacing, elapsed.Truncate(time.Minute)), nil)
	}
	return nil
}

// RecordSuccess marks a successful consumption: lastConsumedAt advances, the
// interval adapts to the activity accumulated since the previous success,
// and the activity counter resets.
func (s *Scheduler) RecordSuccess(ctx context.Context, groupID string) error {
	state, err := s.store.CadenceStateForGroup(ctx, groupID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "cadence", "record success", "load cadence state", err)
	}
	now := s.now()
	if state == nil {
		state = &store.CadenceState{GroupID: groupID, Interval: s.defaultInterval}
	}

	previous := state.Interval
	state.Interval = adaptInterval(state.Interval, state.ActivityScore)
	state.LastConsumedAt = &now
	state.ActivityScore = 0
	state.LastSkipReason = ""
	state.LastSkipAt = nil

	if err := s.store.SaveCadenceState(ctx, *state, now); err != nil {
		return services.Wrap(services.ErrTransient, "cadence", "record success", "save cadence state", err)
	}
	if state.Interval != previous {
		s.logger.InfoContext(ctx, "cadence interval adapted",
			logging.String(logging.FieldGroupID, groupID),
			logging.String("from", string(previous)),
			logging.String("to", string(state.Interval)))
	}
	return nil
}

// RecordSkip persists why a consumption attempt was denied.
func (s *Scheduler) RecordSkip(ctx context.Context, groupID, reason string) error {
	if err := s.store.RecordCadenceSkip(ctx, groupID, reason, s.defaultInterval, s.now()); err != nil {
		return services.Wrap(services.ErrTransient, "cadence", "record skip", "persist skip reason", err)
	}
	s.metrics.CadenceSkip()
	s.logger.InfoContext(ctx, "consumption skipped",
		logging.String(logging.FieldGroupID, groupID),
		logging.String(logging.FieldSkipReason, reason))
	return nil
}

// States returns every group's cadence row for the status surface.
func (s *Scheduler) States(ctx context.Context) ([]*store.CadenceState, error) {
	states, err := s.store.ListCadenceStates(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "cadence", "states", "list cadence states", err)
	}
	return states, nil
}

// classSpacing converts an interval class to its minimum gap. The floor
// hours parameter trims the final day of each class so a "daily" group
// publishing at 9pm can still publish at 6pm the next day; the calendar-day
// ceiling in Permit keeps it at one per day regardless.
func classSpacing(class store.IntervalClass, floorHours int) time.Duration {
	if floorHours <= 0 || floorHours > 24 {
		floorHours = 24
	}
	days := 1
	switch class {
	case store.IntervalEvery3Days:
		days = 3
	case store.IntervalWeekly:
		days = 7
	}
	return time.Duration((days-1)*24+floorHours) * time.Hour
}

// adaptInterval narrows toward daily under high activity and widens toward
// weekly under low activity. Daily is the floor.
func adaptInterval(current store.IntervalClass, activityScore float64) store.IntervalClass {
	switch {
	case activityScore >= narrowActivityScore:
		switch current {
		case store.IntervalWeekly:
			return store.IntervalEvery3Days
		case store.IntervalEvery3Days:
			return store.IntervalDaily
		}
	case activityScore <= widenActivityScore:
		switch current {
		case store.IntervalDaily:
			return store.IntervalEvery3Days
		case store.IntervalEvery3Days:
			return store.IntervalWeekly
		}
	}
	return current
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
