package testsupport

import (
	"path/filepath"
	"testing"

	"bobbin/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Classifier.Fast.Endpoint = "http://127.0.0.1:0/fast"
	cfg.Classifier.Escalated.Endpoint = "http://127.0.0.1:0/escalated"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithConfidenceThreshold overrides the routing threshold on the test config.
func WithConfidenceThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Classifier.ConfidenceThreshold = threshold
	}
}

// WithEscalatedDisabled turns off the escalated classifier tier.
func WithEscalatedDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Classifier.EscalatedEnabled = false
		cfg.Classifier.Escalated.Endpoint = ""
	}
}

// WithLockTTL overrides the group lock lifetime in seconds.
func WithLockTTL(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Locks.TTLSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
