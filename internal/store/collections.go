package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoBuildingCollection indicates a snapshot was requested for a group
	// with no open building collection.
	ErrNoBuildingCollection = errors.New("no building collection for group")

	// ErrSnapshotConflict indicates the building collection rotated between
	// read and update, usually a concurrent snapshot of the same group.
	ErrSnapshotConflict = errors.New("building collection changed during snapshot")
)

// SnapshotResult describes a completed snapshot rotation.
type SnapshotResult struct {
	Snapshot    *Collection
	SuccessorID string
	ItemCount   int
}

// GetOrCreateBuilding returns the group's building collection, creating it
// with the supplied id when none exists. The partial unique index on
// (group_id, status='building') makes concurrent creates converge on one row.
func (s *Store) GetOrCreateBuilding(ctx context.Context, groupID, newID string, now time.Time) (*Collection, error) {
	ctx = ensureContext(ctx)
	stamp := formatTime(now)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO collections (id, group_id, status, created_at, updated_at)
         SELECT ?, ?, ?, ?, ?
         WHERE NOT EXISTS (SELECT 1 FROM collections WHERE group_id = ? AND status = ?)`,
		newID, groupID, CollectionBuilding, stamp, stamp, groupID, CollectionBuilding,
	); err != nil {
		return nil, fmt.Errorf("ensure building collection: %w", err)
	}
	return s.BuildingForGroup(ctx, groupID)
}

// BuildingForGroup returns the group's building collection, or nil when the
// group has never accumulated items since its last snapshot.
func (s *Store) BuildingForGroup(ctx context.Context, groupID string) (*Collection, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+collectionColumns+` FROM collections WHERE group_id = ? AND status = ?`,
		groupID, CollectionBuilding,
	)
	collection, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("building collection: %w", err)
	}
	return collection, nil
}

// CollectionByID fetches a collection by identifier.
func (s *Store) CollectionByID(ctx context.Context, id string) (*Collection, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`,
		id,
	)
	collection, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collection by id: %w", err)
	}
	return collection, nil
}

// SnapshotBuilding freezes the group's building collection into an immutable
// snapshot consumed by the given episode, and opens an empty successor
// linked to it. The whole rotation is one transaction: the guarded status
// update fails when another snapshot already rotated the collection, so a
// collection can never be consumed twice.
func (s *Store) SnapshotBuilding(ctx context.Context, groupID, episodeID, successorID string, now time.Time) (*SnapshotResult, error) {
	ctx = ensureContext(ctx)
	stamp := formatTime(now)

	var result *SnapshotResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = nil
		row := tx.QueryRowContext(
			ctx,
			`SELECT `+collectionColumns+` FROM collections WHERE group_id = ? AND status = ?`,
			groupID, CollectionBuilding,
		)
		building, err := scanCollection(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoBuildingCollection
		}
		if err != nil {
			return fmt.Errorf("load building collection: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE collections SET status = ?, consumed_by_episode_id = ?, snapshot_at = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			CollectionSnapshot, episodeID, stamp, stamp, building.ID, CollectionBuilding,
		)
		if err != nil {
			return fmt.Errorf("freeze collection: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("freeze rows affected: %w", err)
		}
		if affected != 1 {
			return ErrSnapshotConflict
		}

		countRow := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE collection_id = ?`, building.ID)
		var count int
		if err := countRow.Scan(&count); err != nil {
			return fmt.Errorf("count snapshot items: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO collections (id, group_id, status, created_at, updated_at, parent_collection_id)
             VALUES (?, ?, ?, ?, ?, ?)`,
			successorID, groupID, CollectionBuilding, stamp, stamp, building.ID,
		); err != nil {
			return fmt.Errorf("open successor collection: %w", err)
		}

		frozen := *building
		frozen.Status = CollectionSnapshot
		frozen.ConsumedByEpisodeID = episodeID
		snapTime := now.UTC()
		frozen.SnapshotAt = &snapTime
		frozen.UpdatedAt = now.UTC()
		result = &SnapshotResult{Snapshot: &frozen, SuccessorID: successorID, ItemCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireIdleBuilding marks building collections with no appends since the
// cutoff as expired. The group's next classified item opens a fresh one.
// Consumed snapshots are never touched: their status is the audit record
// that a consumption happened.
func (s *Store) ExpireIdleBuilding(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE collections SET status = ?, updated_at = ?
         WHERE status = ? AND updated_at < ?`,
		CollectionExpired, formatTime(now), CollectionBuilding, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("expire idle building collections: %w", err)
	}
	return res.RowsAffected()
}

// ListCollections returns collections for a group ordered newest first, or
// all collections when groupID is empty.
func (s *Store) ListCollections(ctx context.Context, groupID string) ([]*Collection, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)
	if groupID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY created_at DESC, id`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE group_id = ? ORDER BY created_at DESC, id`, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, rows.Err()
}
