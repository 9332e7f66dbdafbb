package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CadenceStateForGroup returns the cadence row for a group, or nil when the
// group has never been consumed or skipped.
func (s *Store) CadenceStateForGroup(ctx context.Context, groupID string) (*CadenceState, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT group_id, last_consumed_at, interval_class, activity_score, updated_at, last_skip_reason, last_skip_at
         FROM cadence_state WHERE group_id = ?`,
		groupID,
	)
	state, err := scanCadenceState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SaveCadenceState upserts the full cadence row for a group.
func (s *Store) SaveCadenceState(ctx context.Context, state CadenceState, now time.Time) error {
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO cadence_state (group_id, last_consumed_at, interval_class, activity_score, updated_at, last_skip_reason, last_skip_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(group_id) DO UPDATE SET
            last_consumed_at = excluded.last_consumed_at,
            interval_class = excluded.interval_class,
            activity_score = excluded.activity_score,
            updated_at = excluded.updated_at,
            last_skip_reason = excluded.last_skip_reason,
            last_skip_at = excluded.last_skip_at`,
		state.GroupID,
		nullableTime(state.LastConsumedAt),
		string(state.Interval),
		state.ActivityScore,
		formatTime(now),
		nullableString(state.LastSkipReason),
		nullableTime(state.LastSkipAt),
	); err != nil {
		return fmt.Errorf("save cadence state: %w", err)
	}
	return nil
}

// BumpActivity adds to a group's activity score, creating the row with the
// default interval when absent.
func (s *Store) BumpActivity(ctx context.Context, groupID string, delta float64, defaultInterval IntervalClass, now time.Time) error {
	stamp := formatTime(now)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO cadence_state (group_id, interval_class, activity_score, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(group_id) DO UPDATE SET
            activity_score = cadence_state.activity_score + excluded.activity_score,
            updated_at = excluded.updated_at`,
		groupID, string(defaultInterval), delta, stamp,
	); err != nil {
		return fmt.Errorf("bump activity: %w", err)
	}
	return nil
}

// RecordCadenceSkip persists why a group's scheduled consumption was skipped.
func (s *Store) RecordCadenceSkip(ctx context.Context, groupID, reason string, defaultInterval IntervalClass, now time.Time) error {
	stamp := formatTime(now)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO cadence_state (group_id, interval_class, activity_score, updated_at, last_skip_reason, last_skip_at)
         VALUES (?, ?, 0, ?, ?, ?)
         ON CONFLICT(group_id) DO UPDATE SET
            last_skip_reason = excluded.last_skip_reason,
            last_skip_at = excluded.last_skip_at,
            updated_at = excluded.updated_at`,
		groupID, string(defaultInterval), stamp, reason, stamp,
	); err != nil {
		return fmt.Errorf("record cadence skip: %w", err)
	}
	return nil
}

// ListCadenceStates returns all cadence rows ordered by group id.
func (s *Store) ListCadenceStates(ctx context.Context) ([]*CadenceState, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT group_id, last_consumed_at, interval_class, activity_score, updated_at, last_skip_reason, last_skip_at
         FROM cadence_state ORDER BY group_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list cadence states: %w", err)
	}
	defer rows.Close()

	var states []*CadenceState
	for rows.Next() {
		state, err := scanCadenceState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func scanCadenceState(scanner interface{ Scan(dest ...any) error }) (*CadenceState, error) {
	var (
		state        CadenceState
		lastConsumed sql.NullString
		interval     string
		updated      string
		skipReason   sql.NullString
		skipAt       sql.NullString
	)
	if err := scanner.Scan(&state.GroupID, &lastConsumed, &interval, &state.ActivityScore, &updated, &skipReason, &skipAt); err != nil {
		return nil, err
	}

	state.Interval = IntervalClass(interval)
	state.LastSkipReason = skipReason.String

	var err error
	if state.UpdatedAt, err = parseTimeString(updated); err != nil {
		return nil, fmt.Errorf("parse cadence updated: %w", err)
	}
	if lastConsumed.Valid {
		t, err := parseTimeString(lastConsumed.String)
		if err != nil {
			return nil, fmt.Errorf("parse last consumed: %w", err)
		}
		state.LastConsumedAt = &t
	}
	if skipAt.Valid {
		t, err := parseTimeString(skipAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last skip: %w", err)
		}
		state.LastSkipAt = &t
	}
	return &state, nil
}
