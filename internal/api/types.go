// Package api defines the wire types shared by the daemon's HTTP surface and
// the CLI client.
package api

import (
	"time"

	"bobbin/internal/metrics"
)

// SubmitRequest enqueues one content item.
type SubmitRequest struct {
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"body,omitempty"`
	GroupID     string    `json:"group_id"`
}

// SubmitResponse reports the enqueued item, or that it was a duplicate.
type SubmitResponse struct {
	ItemID    int64  `json:"item_id,omitempty"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Item is the wire form of a queue item.
type Item struct {
	ID           int64    `json:"id"`
	SourceURL    string   `json:"source_url"`
	Title        string   `json:"title"`
	GroupID      string   `json:"group_id"`
	Status       string   `json:"status"`
	ArrivedAt    string   `json:"arrived_at"`
	Tags         []string `json:"tags,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`
	Tier         string   `json:"tier,omitempty"`
	FallbackUsed bool     `json:"fallback_used,omitempty"`
	CollectionID string   `json:"collection_id,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Collection is the wire form of a collection.
type Collection struct {
	ID                  string `json:"id"`
	GroupID             string `json:"group_id"`
	Status              string `json:"status"`
	CreatedAt           string `json:"created_at"`
	ParentCollectionID  string `json:"parent_collection_id,omitempty"`
	ConsumedByEpisodeID string `json:"consumed_by_episode_id,omitempty"`
	SnapshotAt          string `json:"snapshot_at,omitempty"`
}

// SnapshotRequest asks for a frozen batch on behalf of a consumer.
type SnapshotRequest struct {
	EpisodeID string `json:"episode_id"`
}

// SnapshotResponse returns the frozen batch handle. The lock token must be
// sent back via the release endpoint when downstream work completes.
type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
	ItemCount  int    `json:"item_count"`
	LockToken  string `json:"lock_token"`
}

// ReleaseRequest frees a group lock held by a consumer.
type ReleaseRequest struct {
	Token string `json:"token"`
}

// GroupStatus is the wire form of one group's pipeline state.
type GroupStatus struct {
	GroupID        string `json:"group_id"`
	BuildingID     string `json:"building_id,omitempty"`
	ItemCount      int    `json:"item_count"`
	Ready          bool   `json:"ready"`
	Interval       string `json:"interval,omitempty"`
	LastConsumedAt string `json:"last_consumed_at,omitempty"`
	LastSkipReason string `json:"last_skip_reason,omitempty"`
	Locked         bool   `json:"locked"`
}

// QueueHealth mirrors the store's item counts per lifecycle state.
type QueueHealth struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Classifying int `json:"classifying"`
	Classified  int `json:"classified"`
	Failed      int `json:"failed"`
}

// ReviewHealth reports the review stage's readiness.
type ReviewHealth struct {
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus is the full status payload.
type DaemonStatus struct {
	Running bool             `json:"running"`
	Queue   QueueHealth      `json:"queue"`
	Review  ReviewHealth     `json:"review"`
	Metrics metrics.Snapshot `json:"metrics"`
	Groups  []GroupStatus    `json:"groups,omitempty"`
}

// SettingsPayload carries the runtime settings map.
type SettingsPayload struct {
	Settings map[string]string `json:"settings"`
}

// UpdateSettingRequest changes one runtime setting.
type UpdateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RetryResponse reports how many items were requeued.
type RetryResponse struct {
	Retried int64 `json:"retried"`
}

// ClearResponse reports how many items were removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
