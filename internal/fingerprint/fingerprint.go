// Package fingerprint derives dedup digests from content item identity and
// manages their retention window.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/store"
)

// Digest computes the dedup fingerprint for an item's identity triple. Titles
// are NFC-normalized and case-folded so trivially restyled resubmissions of
// the same piece collapse to one digest. Publication time is truncated to the
// second; sub-second jitter between feeds must not defeat dedup.
func Digest(sourceURL, title string, publishedAt time.Time) string {
	folded := cases.Fold().String(norm.NFC.String(strings.TrimSpace(title)))
	url := strings.TrimSpace(sourceURL)
	stamp := publishedAt.UTC().Truncate(time.Second).Format(time.RFC3339)

	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(folded))
	h.Write([]byte{0})
	h.Write([]byte(stamp))
	return hex.EncodeToString(h.Sum(nil))
}

// Service checks and records fingerprints against the store.
type Service struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option customizes the service.
type Option func(*Service)

// WithMetrics attaches a counter set so degraded lookups are observable.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs a fingerprint service.
func NewService(st *store.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	svc := &Service{store: st, logger: logger.With(logging.String(logging.FieldComponent, "fingerprint"))}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Seen reports whether the digest has a live fingerprint. Store failures
// fail open: losing dedup for one item is better than losing the item.
func (s *Service) Seen(ctx context.Context, digest string, now time.Time) bool {
	seen, err := s.store.SeenFingerprint(ctx, digest, now)
	if err != nil {
		s.degraded(ctx, "fingerprint lookup failed, treating as unseen", err)
		return false
	}
	return seen
}

// Claim atomically records the digest with the retention window unless a live
// fingerprint already holds it, and reports whether the claim won. Losing the
// claim means the item is a duplicate. Store failures fail open and grant the
// claim, for the same reason as Seen.
func (s *Service) Claim(ctx context.Context, digest string, retentionDays int, now time.Time) bool {
	if retentionDays <= 0 {
		retentionDays = 1
	}
	expiresAt := now.Add(time.Duration(retentionDays) * 24 * time.Hour)
	claimed, err := s.store.ClaimFingerprint(ctx, digest, now, expiresAt)
	if err != nil {
		s.degraded(ctx, "fingerprint claim failed, treating as unseen", err)
		return true
	}
	return claimed
}

// Release drops a claimed digest so the item can be resubmitted. Failures are
// logged and swallowed; the worst case is a duplicate verdict until expiry.
func (s *Service) Release(ctx context.Context, digest string) {
	if err := s.store.ReleaseFingerprint(ctx, digest); err != nil {
		s.degraded(ctx, "fingerprint release failed", err)
	}
}

func (s *Service) degraded(ctx context.Context, msg string, err error) {
	if s.metrics != nil {
		s.metrics.FingerprintDegradation()
	}
	s.logger.WarnContext(ctx, msg, logging.Error(err))
}

// Purge removes expired fingerprints and returns the count removed.
func (s *Service) Purge(ctx context.Context, now time.Time) (int64, error) {
	return s.store.PurgeExpiredFingerprints(ctx, now)
}
