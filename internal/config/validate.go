package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var validIntervals = map[string]struct{}{
	"daily":      {},
	"every3days": {},
	"weekly":     {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateCollections(); err != nil {
		return err
	}
	if err := c.validateCadence(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.ConfidenceThreshold < 0 || c.Classifier.ConfidenceThreshold > 1 {
		return errors.New("classifier.confidence_threshold must be between 0 and 1")
	}
	if c.Classifier.Fast.Endpoint == "" {
		return errors.New("classifier.fast.endpoint must be set")
	}
	if c.Classifier.EscalatedEnabled && c.Classifier.Escalated.Endpoint == "" {
		return errors.New("classifier.escalated.endpoint must be set when classifier.escalated_enabled is true")
	}
	return ensurePositive(map[string]int{
		"classifier.fast.timeout_seconds":      c.Classifier.Fast.TimeoutSeconds,
		"classifier.escalated.timeout_seconds": c.Classifier.Escalated.TimeoutSeconds,
		"classifier.escalated.retry_attempts":  c.Classifier.Escalated.RetryAttempts,
	})
}

func (c *Config) validateCollections() error {
	return ensurePositive(map[string]int{
		"collections.min_items_for_ready":    c.Collections.MinItemsForReady,
		"collections.retention_days":         c.Collections.RetentionDays,
		"collections.sweep_interval_seconds": c.Collections.SweepIntervalSeconds,
		"ingest.fingerprint_retention_days":  c.Ingest.FingerprintRetentionDays,
		"ingest.max_summary_chars":           c.Ingest.MaxSummaryChars,
	})
}

func (c *Config) validateCadence() error {
	if _, ok := validIntervals[c.Cadence.DefaultInterval]; !ok {
		return fmt.Errorf("cadence.default_interval must be one of daily, every3days, weekly (got %q)", c.Cadence.DefaultInterval)
	}
	return ensurePositive(map[string]int{
		"cadence.floor_hours": c.Cadence.FloorHours,
		"locks.ttl_seconds":   c.Locks.TTLSeconds,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositive(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
	})
}

func ensurePositive(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
