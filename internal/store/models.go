package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a content item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusClassifying Status = "classifying"
	StatusClassified  Status = "classified"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusClassifying,
	StatusClassified,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known item statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Tier identifies which classifier produced an annotation.
type Tier string

const (
	TierFast      Tier = "fast"
	TierEscalated Tier = "escalated"
)

// Item represents a content item persisted in SQLite. Identity is the
// (SourceURL, Title, PublishedAt) triple; everything else is payload or
// lifecycle state. Annotation fields are nil/zero until classification.
type Item struct {
	ID          int64
	SourceURL   string
	Title       string
	PublishedAt time.Time
	Body        string
	GroupID     string
	Status      Status
	ArrivedAt   time.Time
	UpdatedAt   time.Time

	Tags          []string
	Summary       string
	Confidence    float64
	Tier          Tier
	FallbackUsed  bool
	ProcessedAt   *time.Time
	CollectionID  string
	ErrorMessage  string
	LastHeartbeat *time.Time
}

// Annotated reports whether the item carries a review annotation.
func (i Item) Annotated() bool {
	return i.ProcessedAt != nil && i.Tier != ""
}

// NewItem carries the fields required to enqueue a content item.
type NewItem struct {
	SourceURL   string
	Title       string
	PublishedAt time.Time
	Body        string
	GroupID     string
}

// Annotation is the single review record written for a classified item.
type Annotation struct {
	Tags         []string
	Summary      string
	Confidence   float64
	Tier         Tier
	FallbackUsed bool
	ProcessedAt  time.Time
}

// CollectionStatus represents the stored lifecycle of a collection. Readiness
// is derived from live item counts and never stored.
type CollectionStatus string

const (
	CollectionBuilding CollectionStatus = "building"
	CollectionSnapshot CollectionStatus = "snapshot"
	CollectionExpired  CollectionStatus = "expired"
)

// Collection represents one batch of classified items for a group.
type Collection struct {
	ID                  string
	GroupID             string
	Status              CollectionStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ParentCollectionID  string
	ConsumedByEpisodeID string
	SnapshotAt          *time.Time
}

// GroupLock is the mutual-exclusion record for one group.
type GroupLock struct {
	GroupID    string
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// IntervalClass is a cadence spacing class.
type IntervalClass string

const (
	IntervalDaily      IntervalClass = "daily"
	IntervalEvery3Days IntervalClass = "every3days"
	IntervalWeekly     IntervalClass = "weekly"
)

// ParseInterval converts a string into a known IntervalClass.
func ParseInterval(value string) (IntervalClass, bool) {
	switch IntervalClass(strings.ToLower(strings.TrimSpace(value))) {
	case IntervalDaily:
		return IntervalDaily, true
	case IntervalEvery3Days:
		return IntervalEvery3Days, true
	case IntervalWeekly:
		return IntervalWeekly, true
	default:
		return "", false
	}
}

// CadenceState tracks per-group consumption spacing.
type CadenceState struct {
	GroupID        string
	LastConsumedAt *time.Time
	Interval       IntervalClass
	ActivityScore  float64
	UpdatedAt      time.Time
	LastSkipReason string
	LastSkipAt     *time.Time
}

// HealthSummary describes aggregated item counts per lifecycle state.
type HealthSummary struct {
	Total       int
	Pending     int
	Classifying int
	Classified  int
	Failed      int
}
