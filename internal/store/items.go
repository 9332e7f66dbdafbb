package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrItemStateChanged indicates a conditional item update found the row in an
// unexpected state, usually because another worker got there first.
var ErrItemStateChanged = errors.New("item state changed concurrently")

// InsertItem enqueues a new content item in pending state.
func (s *Store) InsertItem(ctx context.Context, in NewItem, now time.Time) (*Item, error) {
	if strings.TrimSpace(in.SourceURL) == "" {
		return nil, errors.New("source url is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New("title is required")
	}
	if strings.TrimSpace(in.GroupID) == "" {
		return nil, errors.New("group id is required")
	}
	if in.PublishedAt.IsZero() {
		return nil, errors.New("published timestamp is required")
	}

	timestamp := formatTime(now)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (
            source_url, title, published_at, body, group_id, status, arrived_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SourceURL,
		in.Title,
		formatTime(in.PublishedAt),
		nullableString(in.Body),
		in.GroupID,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(ctx, id)
}

// GetItem fetches a content item by identifier.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ClaimNextPending atomically moves the oldest pending item to classifying
// and returns it. Returns nil when the queue is empty. The conditional update
// guarantees two workers never claim the same item.
func (s *Store) ClaimNextPending(ctx context.Context, now time.Time) (*Item, error) {
	ctx = ensureContext(ctx)
	stamp := formatTime(now)

	var claimed *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claimed = nil
		row := tx.QueryRowContext(ctx, `SELECT id FROM items WHERE status = ? ORDER BY arrived_at, id LIMIT 1`, StatusPending)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("select next pending: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE items SET status = ?, last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusClassifying, stamp, stamp, id, StatusPending,
		)
		if err != nil {
			return fmt.Errorf("claim item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected != 1 {
			// Lost the race inside a serialized writer; treat as empty poll.
			return nil
		}

		itemRow := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
		item, err := scanItem(itemRow)
		if err != nil {
			return fmt.Errorf("load claimed item: %w", err)
		}
		claimed = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SaveAnnotation writes the final review annotation for a claimed item and
// appends the item to its group's building collection in one transaction.
// The building collection is created when absent (successorID supplies its
// id); the subquery binds the item to whatever collection is building at
// commit time, so an in-flight snapshot rotation never splits a batch.
func (s *Store) SaveAnnotation(ctx context.Context, itemID int64, groupID string, ann Annotation, successorID string, now time.Time) error {
	ctx = ensureContext(ctx)
	stamp := formatTime(now)

	tagsJSON, err := json.Marshal(ann.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO collections (id, group_id, status, created_at, updated_at)
             SELECT ?, ?, ?, ?, ?
             WHERE NOT EXISTS (SELECT 1 FROM collections WHERE group_id = ? AND status = ?)`,
			successorID, groupID, CollectionBuilding, stamp, stamp, groupID, CollectionBuilding,
		); err != nil {
			return fmt.Errorf("ensure building collection: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE items SET
                status = ?, tags_json = ?, summary = ?, confidence = ?, classifier_tier = ?,
                fallback_used = ?, processed_at = ?, updated_at = ?, error_message = NULL,
                last_heartbeat = NULL,
                collection_id = (SELECT id FROM collections WHERE group_id = ? AND status = ?)
             WHERE id = ? AND status = ?`,
			StatusClassified,
			string(tagsJSON),
			nullableString(ann.Summary),
			ann.Confidence,
			string(ann.Tier),
			boolToInt(ann.FallbackUsed),
			formatTime(ann.ProcessedAt),
			stamp,
			groupID,
			CollectionBuilding,
			itemID,
			StatusClassifying,
		)
		if err != nil {
			return fmt.Errorf("save annotation: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("annotation rows affected: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("%w: item %d not in classifying state", ErrItemStateChanged, itemID)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE collections SET updated_at = ? WHERE group_id = ? AND status = ?`,
			stamp, groupID, CollectionBuilding,
		); err != nil {
			return fmt.Errorf("touch building collection: %w", err)
		}
		return nil
	})
}

// MarkItemFailed records a classification failure.
func (s *Store) MarkItemFailed(ctx context.Context, id int64, message string, now time.Time) error {
	stamp := formatTime(now)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
		StatusFailed, nullableString(message), stamp, id,
	); err != nil {
		return fmt.Errorf("mark item failed: %w", err)
	}
	return nil
}

// RetryFailed moves failed items back to pending for reprocessing. With no
// ids, all failed items are retried.
func (s *Store) RetryFailed(ctx context.Context, now time.Time, ids ...int64) (int64, error) {
	stamp := formatTime(now)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE items SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`,
			StatusPending, stamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, stamp)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, error_message = NULL, updated_at = ? WHERE id IN (`+placeholders+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes queue items. With no statuses, every item is removed.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		res, err := s.execWithRetry(ctx, `DELETE FROM items`)
		if err != nil {
			return 0, fmt.Errorf("clear items: %w", err)
		}
		return res.RowsAffected()
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM items WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear items by status: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64, now time.Time) error {
	stamp := formatTime(now)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		stamp, stamp, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleClassifying returns items stuck in classifying back to pending
// when their heartbeats expire (worker crash recovery).
func (s *Store) ReclaimStaleClassifying(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		formatTime(now),
		StatusClassifying,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// List returns items filtered by status set (or all items when no status is
// provided), ordered by arrival.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM items`
	orderClause := ` ORDER BY arrived_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemsInCollection returns the members of a collection in append order.
func (s *Store) ItemsInCollection(ctx context.Context, collectionID string) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM items WHERE collection_id = ? ORDER BY processed_at, id`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("items in collection: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItemsInCollection returns the live member count of a collection.
func (s *Store) CountItemsInCollection(ctx context.Context, collectionID string) (int, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM items WHERE collection_id = ?`, collectionID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count collection items: %w", err)
	}
	return count, nil
}

// QueueDepth returns the number of items awaiting or undergoing classification.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM items WHERE status IN (?, ?)`,
		StatusPending, StatusClassifying,
	)
	var depth int
	if err := row.Scan(&depth); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates item state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusClassifying:
			health.Classifying += count
		case StatusClassified:
			health.Classified += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}
