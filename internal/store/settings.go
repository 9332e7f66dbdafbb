package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"bobbin/internal/config"
)

// Runtime setting keys. Values live in the database so operators can tune the
// pipeline without a restart; the file config only seeds them on first open.
const (
	SettingConfidenceThreshold      = "confidence_threshold"
	SettingEscalatedTierEnabled     = "escalated_tier_enabled"
	SettingFastModel                = "fast_model"
	SettingEscalatedModel           = "escalated_model"
	SettingFingerprintRetentionDays = "fingerprint_retention_days"
	SettingMinItemsForReady         = "min_items_for_ready"
	SettingCadenceFloorHours        = "cadence_floor_hours"
)

// KnownSettingKeys returns the ordered list of recognized setting keys.
func KnownSettingKeys() []string {
	return []string{
		SettingConfidenceThreshold,
		SettingEscalatedTierEnabled,
		SettingFastModel,
		SettingEscalatedModel,
		SettingFingerprintRetentionDays,
		SettingMinItemsForReady,
		SettingCadenceFloorHours,
	}
}

// seedSettings inserts the runtime settings missing from the database,
// taking initial values from the file config. Existing rows win.
func (s *Store) seedSettings(ctx context.Context, cfg *config.Config) error {
	seeds := map[string]string{
		SettingConfidenceThreshold:      strconv.FormatFloat(cfg.Classifier.ConfidenceThreshold, 'f', -1, 64),
		SettingEscalatedTierEnabled:     strconv.FormatBool(cfg.Classifier.EscalatedEnabled),
		SettingFastModel:                cfg.Classifier.Fast.Model,
		SettingEscalatedModel:           cfg.Classifier.Escalated.Model,
		SettingFingerprintRetentionDays: strconv.Itoa(cfg.Ingest.FingerprintRetentionDays),
		SettingMinItemsForReady:         strconv.Itoa(cfg.Collections.MinItemsForReady),
		SettingCadenceFloorHours:        strconv.Itoa(cfg.Cadence.FloorHours),
	}
	for _, key := range KnownSettingKeys() {
		if _, err := s.execWithRetry(
			ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
			key, seeds[key],
		); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}

// GetSetting returns the stored value for a key. Missing keys return an
// empty string without error.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a value for a key, replacing any existing value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// AllSettings returns every stored setting.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
