package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SeenFingerprint reports whether a live (unexpired) fingerprint exists for
// the digest. Expired rows count as unseen.
func (s *Store) SeenFingerprint(ctx context.Context, digest string, now time.Time) (bool, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT 1 FROM fingerprints WHERE digest = ? AND expires_at > ?`,
		digest, formatTime(now),
	)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return true, nil
}

// ClaimFingerprint atomically records the digest unless a live fingerprint
// already holds it, and reports whether the claim won. The conditional upsert
// makes the duplicate check and the record one statement, so two concurrent
// submissions of the same item resolve to exactly one claim. Expired rows are
// revived in place by a winning claim.
func (s *Store) ClaimFingerprint(ctx context.Context, digest string, now, expiresAt time.Time) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO fingerprints (digest, first_seen_at, expires_at)
         VALUES (?, ?, ?)
         ON CONFLICT(digest) DO UPDATE
         SET first_seen_at = excluded.first_seen_at, expires_at = excluded.expires_at
         WHERE fingerprints.expires_at <= excluded.first_seen_at`,
		digest, formatTime(now), formatTime(expiresAt),
	)
	if err != nil {
		return false, fmt.Errorf("claim fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseFingerprint drops a digest so the item can be resubmitted. Used to
// roll back a claim when the enqueue that followed it failed.
func (s *Store) ReleaseFingerprint(ctx context.Context, digest string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM fingerprints WHERE digest = ?`, digest); err != nil {
		return fmt.Errorf("release fingerprint: %w", err)
	}
	return nil
}

// PurgeExpiredFingerprints deletes rows past their retention window and
// returns the count removed.
func (s *Store) PurgeExpiredFingerprints(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM fingerprints WHERE expires_at <= ?`,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("purge fingerprints: %w", err)
	}
	return res.RowsAffected()
}
