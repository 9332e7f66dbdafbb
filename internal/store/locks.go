package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLockHeld indicates the group lock is held by another owner and has not
// yet expired.
var ErrLockHeld = errors.New("group lock held")

// AcquireLock takes the advisory lock for a group, sweeping any expired
// holder first. The INSERT OR IGNORE makes acquisition atomic: zero rows
// affected means a live holder exists.
func (s *Store) AcquireLock(ctx context.Context, groupID, token string, now, expiresAt time.Time) (*GroupLock, error) {
	ctx = ensureContext(ctx)
	stamp := formatTime(now)

	var lock *GroupLock
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		lock = nil
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM group_locks WHERE group_id = ? AND expires_at <= ?`,
			groupID, stamp,
		); err != nil {
			return fmt.Errorf("sweep expired lock: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO group_locks (group_id, token, acquired_at, expires_at)
             VALUES (?, ?, ?, ?)`,
			groupID, token, stamp, formatTime(expiresAt),
		)
		if err != nil {
			return fmt.Errorf("insert lock: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("lock rows affected: %w", err)
		}
		if affected == 0 {
			return ErrLockHeld
		}
		lock = &GroupLock{
			GroupID:    groupID,
			Token:      token,
			AcquiredAt: now.UTC(),
			ExpiresAt:  expiresAt.UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// ReleaseLock releases a group lock when the token matches the holder.
// Releasing an absent or mismatched lock is a no-op returning false.
func (s *Store) ReleaseLock(ctx context.Context, groupID, token string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM group_locks WHERE group_id = ? AND token = ?`,
		groupID, token,
	)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release rows affected: %w", err)
	}
	return affected > 0, nil
}

// LockForGroup returns the current lock row for a group, expired or not, or
// nil when the group is unlocked.
func (s *Store) LockForGroup(ctx context.Context, groupID string) (*GroupLock, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT group_id, token, acquired_at, expires_at FROM group_locks WHERE group_id = ?`,
		groupID,
	)
	var (
		lock     GroupLock
		acquired string
		expires  string
	)
	err := row.Scan(&lock.GroupID, &lock.Token, &acquired, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock for group: %w", err)
	}
	if lock.AcquiredAt, err = parseTimeString(acquired); err != nil {
		return nil, fmt.Errorf("parse lock acquired: %w", err)
	}
	if lock.ExpiresAt, err = parseTimeString(expires); err != nil {
		return nil, fmt.Errorf("parse lock expiry: %w", err)
	}
	return &lock, nil
}

// PurgeExpiredLocks removes all expired lock rows and returns the count.
func (s *Store) PurgeExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM group_locks WHERE expires_at <= ?`,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired locks: %w", err)
	}
	return res.RowsAffected()
}
