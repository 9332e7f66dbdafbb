package api

import (
	"errors"
	"time"

	"bobbin/internal/pipeline"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

// Error kinds carried on the wire so clients can surface typed outcomes.
const (
	KindValidation    = "validation"
	KindNotFound      = "not_found"
	KindDuplicate     = "duplicate"
	KindNotReady      = "not_ready"
	KindLocked        = "locked"
	KindCadenceDenied = "cadence_denied"
	KindConflict      = "conflict"
	KindInternal      = "internal"
)

// KindForError maps service errors to wire kinds.
func KindForError(err error) string {
	switch {
	case errors.Is(err, services.ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, services.ErrNotReady):
		return KindNotReady
	case errors.Is(err, services.ErrLocked):
		return KindLocked
	case errors.Is(err, services.ErrCadenceDenied):
		return KindCadenceDenied
	case errors.Is(err, services.ErrValidation):
		return KindValidation
	case errors.Is(err, services.ErrNotFound):
		return KindNotFound
	case errors.Is(err, services.ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// ErrorForKind reconstructs the service marker for a wire kind.
func ErrorForKind(kind string) error {
	switch kind {
	case KindDuplicate:
		return services.ErrDuplicate
	case KindNotReady:
		return services.ErrNotReady
	case KindLocked:
		return services.ErrLocked
	case KindCadenceDenied:
		return services.ErrCadenceDenied
	case KindValidation:
		return services.ErrValidation
	case KindNotFound:
		return services.ErrNotFound
	case KindConflict:
		return services.ErrConflict
	default:
		return services.ErrTransient
	}
}

// FromItem converts a store item to its wire form.
func FromItem(item *store.Item) Item {
	wire := Item{
		ID:           item.ID,
		SourceURL:    item.SourceURL,
		Title:        item.Title,
		GroupID:      item.GroupID,
		Status:       string(item.Status),
		Tags:         item.Tags,
		Summary:      item.Summary,
		Confidence:   item.Confidence,
		Tier:         string(item.Tier),
		FallbackUsed: item.FallbackUsed,
		CollectionID: item.CollectionID,
		ErrorMessage: item.ErrorMessage,
	}
	if !item.ArrivedAt.IsZero() {
		wire.ArrivedAt = item.ArrivedAt.UTC().Format(time.RFC3339)
	}
	return wire
}

// FromItems converts a slice of store items.
func FromItems(items []*store.Item) []Item {
	wire := make([]Item, len(items))
	for i, item := range items {
		wire[i] = FromItem(item)
	}
	return wire
}

// FromCollection converts a store collection to its wire form.
func FromCollection(coll *store.Collection) Collection {
	wire := Collection{
		ID:                  coll.ID,
		GroupID:             coll.GroupID,
		Status:              string(coll.Status),
		ParentCollectionID:  coll.ParentCollectionID,
		ConsumedByEpisodeID: coll.ConsumedByEpisodeID,
	}
	if !coll.CreatedAt.IsZero() {
		wire.CreatedAt = coll.CreatedAt.UTC().Format(time.RFC3339)
	}
	if coll.SnapshotAt != nil {
		wire.SnapshotAt = coll.SnapshotAt.UTC().Format(time.RFC3339)
	}
	return wire
}

// FromStatus converts the pipeline status to its wire form.
func FromStatus(status pipeline.Status) DaemonStatus {
	wire := DaemonStatus{
		Running: status.Running,
		Queue: QueueHealth{
			Total:       status.Queue.Total,
			Pending:     status.Queue.Pending,
			Classifying: status.Queue.Classifying,
			Classified:  status.Queue.Classified,
			Failed:      status.Queue.Failed,
		},
		Review: ReviewHealth{
			Ready:  status.Review.Ready,
			Detail: status.Review.Detail,
		},
		Metrics: status.Metrics,
	}
	for _, group := range status.Groups {
		wire.Groups = append(wire.Groups, GroupStatus{
			GroupID:        group.GroupID,
			BuildingID:     group.BuildingID,
			ItemCount:      group.ItemCount,
			Ready:          group.Ready,
			Interval:       string(group.Interval),
			LastConsumedAt: group.LastConsumedAt,
			LastSkipReason: group.LastSkipReason,
			Locked:         group.Locked,
		})
	}
	return wire
}
