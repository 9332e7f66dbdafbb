package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const itemColumns = "id, source_url, title, published_at, body, group_id, status, arrived_at, updated_at, tags_json, summary, confidence, classifier_tier, fallback_used, processed_at, collection_id, error_message, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		sourceURL    string
		title        string
		publishedRaw string
		body         sql.NullString
		groupID      string
		statusStr    string
		arrivedRaw   sql.NullString
		updatedRaw   sql.NullString
		tagsJSON     sql.NullString
		summary      sql.NullString
		confidence   sql.NullFloat64
		tier         sql.NullString
		fallbackUsed sql.NullInt64
		processedRaw sql.NullString
		collectionID sql.NullString
		errorMessage sql.NullString
		heartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&title,
		&publishedRaw,
		&body,
		&groupID,
		&statusStr,
		&arrivedRaw,
		&updatedRaw,
		&tagsJSON,
		&summary,
		&confidence,
		&tier,
		&fallbackUsed,
		&processedRaw,
		&collectionID,
		&errorMessage,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		SourceURL:    sourceURL,
		Title:        title,
		Body:         body.String,
		GroupID:      groupID,
		Status:       Status(statusStr),
		Summary:      summary.String,
		Confidence:   confidence.Float64,
		Tier:         Tier(tier.String),
		CollectionID: collectionID.String,
		ErrorMessage: errorMessage.String,
	}
	if fallbackUsed.Valid {
		item.FallbackUsed = fallbackUsed.Int64 != 0
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &item.Tags); err != nil {
			return nil, err
		}
	}
	if published, err := parseTimeString(publishedRaw); err == nil {
		item.PublishedAt = published
	}
	if arrived, err := parseTimeString(arrivedRaw.String); err == nil {
		item.ArrivedAt = arrived
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			item.ProcessedAt = &processed
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

const collectionColumns = "id, group_id, status, created_at, updated_at, parent_collection_id, consumed_by_episode_id, snapshot_at"

func scanCollection(scanner interface{ Scan(dest ...any) error }) (*Collection, error) {
	var (
		id          string
		groupID     string
		statusStr   string
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		parentID    sql.NullString
		consumedBy  sql.NullString
		snapshotRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&groupID,
		&statusStr,
		&createdRaw,
		&updatedRaw,
		&parentID,
		&consumedBy,
		&snapshotRaw,
	); err != nil {
		return nil, err
	}

	coll := &Collection{
		ID:                  id,
		GroupID:             groupID,
		Status:              CollectionStatus(statusStr),
		ParentCollectionID:  parentID.String,
		ConsumedByEpisodeID: consumedBy.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		coll.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		coll.UpdatedAt = updated
	}
	if snapshotRaw.Valid {
		if snapshot, err := parseTimeString(snapshotRaw.String); err == nil {
			coll.SnapshotAt = &snapshot
		}
	}
	return coll, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
