package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Ingest contains settings for item intake and deduplication. Values here
// seed the runtime settings table on first open; after that operators mutate
// them through the settings interface without a restart.
type Ingest struct {
	FingerprintRetentionDays int `toml:"fingerprint_retention_days"`
	MaxSummaryChars          int `toml:"max_summary_chars"`
}

// Tier describes one classifier scoring endpoint.
type Tier struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Classifier contains the two-tier classification settings.
type Classifier struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	EscalatedEnabled    bool    `toml:"escalated_enabled"`
	Fast                Tier    `toml:"fast"`
	Escalated           Tier    `toml:"escalated"`
}

// Collections contains batch lifecycle settings.
type Collections struct {
	MinItemsForReady     int `toml:"min_items_for_ready"`
	RetentionDays        int `toml:"retention_days"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Cadence contains consumption spacing settings.
type Cadence struct {
	FloorHours      int    `toml:"floor_hours"`
	DefaultInterval string `toml:"default_interval"`
}

// Locks contains group lock settings.
type Locks struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// Workflow contains worker and polling configuration.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bobbin.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Ingest: dedup retention and summary bounds (settings seeds)
//   - Classifier: fast/escalated scorer endpoints and routing threshold
//   - Collections: batch readiness and expiry
//   - Cadence: consumption spacing
//   - Locks: group lock TTL
//   - Workflow: worker counts and polling intervals
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Ingest      Ingest      `toml:"ingest"`
	Classifier  Classifier  `toml:"classifier"`
	Collections Collections `toml:"collections"`
	Cadence     Cadence     `toml:"cadence"`
	Locks       Locks       `toml:"locks"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bobbin/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("bobbin.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Cadence.DefaultInterval = strings.ToLower(strings.TrimSpace(c.Cadence.DefaultInterval))
	for _, tier := range []*Tier{&c.Classifier.Fast, &c.Classifier.Escalated} {
		tier.Endpoint = strings.TrimSpace(tier.Endpoint)
		tier.APIKey = strings.TrimSpace(tier.APIKey)
		tier.Model = strings.TrimSpace(tier.Model)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "bobbin.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
