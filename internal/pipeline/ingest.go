package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bobbin/internal/fingerprint"
	"bobbin/internal/logging"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

// SubmitRequest carries a content item offered to the pipeline.
type SubmitRequest struct {
	SourceURL   string
	Title       string
	PublishedAt time.Time
	Body        string
	GroupID     string
}

// Submit validates, deduplicates, and enqueues a content item. Duplicate
// submissions return services.ErrDuplicate; the caller treats that as a
// normal outcome, not a failure.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*store.Item, error) {
	if err := validateSubmit(req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "submit", "invalid submission", err)
	}

	now := m.now()
	digest := fingerprint.Digest(req.SourceURL, req.Title, req.PublishedAt)
	retention := m.cfg.Ingest.FingerprintRetentionDays
	if snap, err := m.settings.Snapshot(ctx); err == nil {
		retention = snap.FingerprintRetentionDays
	}

	// The claim is the dedup verdict: one winner per digest, no matter how
	// many workers submit the item concurrently.
	if !m.fingerprints.Claim(ctx, digest, retention, now) {
		m.metrics.DuplicateRejected()
		logging.WithContext(ctx, m.logger).Info("duplicate submission rejected",
			logging.String(logging.FieldGroupID, req.GroupID),
			logging.String("title", req.Title))
		return nil, services.Wrap(services.ErrDuplicate, "pipeline", "submit",
			fmt.Sprintf("item %q already ingested", req.Title), nil)
	}

	item, err := m.store.InsertItem(ctx, store.NewItem{
		SourceURL:   req.SourceURL,
		Title:       req.Title,
		PublishedAt: req.PublishedAt,
		Body:        req.Body,
		GroupID:     req.GroupID,
	}, now)
	if err != nil {
		m.fingerprints.Release(ctx, digest)
		return nil, services.Wrap(services.ErrTransient, "pipeline", "submit", "enqueue item", err)
	}

	m.metrics.ItemSubmitted()
	logging.WithContext(ctx, m.logger).Info("item submitted",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldGroupID, item.GroupID))
	return item, nil
}

func validateSubmit(req SubmitRequest) error {
	switch {
	case strings.TrimSpace(req.SourceURL) == "":
		return fmt.Errorf("source url is required")
	case strings.TrimSpace(req.Title) == "":
		return fmt.Errorf("title is required")
	case strings.TrimSpace(req.GroupID) == "":
		return fmt.Errorf("group id is required")
	case req.PublishedAt.IsZero():
		return fmt.Errorf("published timestamp is required")
	}
	return nil
}
