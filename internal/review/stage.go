package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bobbin/internal/classifier"
	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/services"
	"bobbin/internal/settings"
	"bobbin/internal/stage"
	"bobbin/internal/store"
)

// Stage annotates claimed items. It implements stage.Handler.
type Stage struct {
	store     *store.Store
	settings  *settings.Service
	fast      classifier.Scorer
	escalated classifier.Scorer
	metrics   *metrics.Metrics
	logger    *slog.Logger

	maxSummaryChars int
	defaultInterval store.IntervalClass

	now   func() time.Time
	newID func() string
}

// Option customizes the stage.
type Option func(*Stage)

// WithClock overrides the stage clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Stage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how successor collection ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Stage) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewStage wires the review stage.
func NewStage(
	cfg *config.Config,
	st *store.Store,
	settingsSvc *settings.Service,
	fast, escalated classifier.Scorer,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval, ok := store.ParseInterval(cfg.Cadence.DefaultInterval)
	if !ok {
		interval = store.IntervalDaily
	}
	s := &Stage{
		store:           st,
		settings:        settingsSvc,
		fast:            fast,
		escalated:       escalated,
		metrics:         m,
		logger:          logger.With(logging.String(logging.FieldComponent, "review")),
		maxSummaryChars: cfg.Ingest.MaxSummaryChars,
		defaultInterval: interval,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare validates that the claimed item carries enough material to score.
func (s *Stage) Prepare(_ context.Context, item *store.Item) error {
	if item == nil {
		return services.Wrap(services.ErrValidation, "review", "prepare", "missing item", nil)
	}
	if strings.TrimSpace(item.Title) == "" {
		return services.Wrap(services.ErrValidation, "review", "prepare", "item has no title", nil)
	}
	if strings.TrimSpace(item.GroupID) == "" {
		return services.Wrap(services.ErrValidation, "review", "prepare", "item has no group", nil)
	}
	return nil
}

// Execute scores the item and persists exactly one annotation. The settings
// snapshot is read once up front so a tuning change mid-item cannot mix
// routing parameters.
func (s *Stage) Execute(ctx context.Context, item *store.Item) error {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return err
	}

	input := classifier.Input{
		Title: item.Title,
		Body:  classifier.ExtractText(item.Body),
		Group: item.GroupID,
	}
	log := logging.WithContext(ctx, s.logger)

	fastInput := input
	fastInput.Model = snap.FastModel
	fastStart := s.now()
	fastResult, fastErr := s.fast.Score(ctx, fastInput)
	if fastErr == nil {
		s.metrics.TierScored(false, s.now().Sub(fastStart))
	}

	// Boundary equality routes fast: only strictly-below-threshold escalates.
	if fastErr == nil && fastResult.Confidence >= snap.ConfidenceThreshold {
		return s.persist(ctx, item, fastResult, store.TierFast, false)
	}

	if !snap.EscalatedEnabled {
		if fastErr != nil {
			s.metrics.ClassifyFailure()
			return services.Wrap(services.ErrTransient, "review", "execute", "fast tier failed with escalation disabled", fastErr)
		}
		log.Info("low confidence accepted, escalation disabled",
			logging.Float64("confidence", fastResult.Confidence),
			logging.Float64("threshold", snap.ConfidenceThreshold))
		return s.persist(ctx, item, fastResult, store.TierFast, false)
	}

	escInput := input
	escInput.Model = snap.EscalatedModel
	escStart := s.now()
	escResult, escErr := s.escalated.Score(ctx, escInput)
	if escErr == nil {
		s.metrics.TierScored(true, s.now().Sub(escStart))
		s.metrics.Escalation()
		return s.persist(ctx, item, escResult, store.TierEscalated, false)
	}

	if fastErr != nil {
		s.metrics.ClassifyFailure()
		return services.Wrap(services.ErrTransient, "review", "execute",
			fmt.Sprintf("both tiers failed (fast: %v)", fastErr), escErr)
	}

	// Escalation failed after its retry budget: keep the low-confidence fast
	// result rather than losing the item.
	s.metrics.Fallback()
	log.Warn("escalated tier unavailable, falling back to fast result",
		logging.Float64("confidence", fastResult.Confidence),
		logging.Error(escErr))
	return s.persist(ctx, item, fastResult, store.TierFast, true)
}

// HealthCheck probes the fast tier, and the escalated tier when enabled.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.fast.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("review", fmt.Sprintf("fast tier: %v", err))
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return stage.Unhealthy("review", fmt.Sprintf("settings: %v", err))
	}
	if snap.EscalatedEnabled && s.escalated != nil {
		if err := s.escalated.HealthCheck(ctx); err != nil {
			return stage.Unhealthy("review", fmt.Sprintf("escalated tier: %v", err))
		}
	}
	return stage.Healthy("review")
}

func (s *Stage) persist(ctx context.Context, item *store.Item, result classifier.Result, tier store.Tier, fallbackUsed bool) error {
	now := s.now()
	ann := store.Annotation{
		Tags:         result.Tags,
		Summary:      boundSummary(result.Summary, s.maxSummaryChars),
		Confidence:   result.Confidence,
		Tier:         tier,
		FallbackUsed: fallbackUsed,
		ProcessedAt:  now,
	}
	if err := s.store.SaveAnnotation(ctx, item.ID, item.GroupID, ann, s.newID(), now); err != nil {
		return services.Wrap(services.ErrTransient, "review", "persist", "save annotation", err)
	}
	if err := s.store.BumpActivity(ctx, item.GroupID, 1, s.defaultInterval, now); err != nil {
		// Activity shaping is advisory; the annotation already landed.
		logging.WithContext(ctx, s.logger).Warn("activity bump failed", logging.Error(err))
	}
	s.metrics.ItemClassified()
	logging.WithContext(ctx, s.logger).Info("item annotated",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldGroupID, item.GroupID),
		logging.String(logging.FieldTier, string(tier)),
		logging.Float64("confidence", result.Confidence),
		logging.Bool("fallback", fallbackUsed))
	return nil
}

func boundSummary(summary string, maxChars int) string {
	if maxChars <= 0 {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= maxChars {
		return summary
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}
