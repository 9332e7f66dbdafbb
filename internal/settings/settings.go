// Package settings exposes the runtime-tunable pipeline parameters stored in
// the database. Each operation reads one consistent snapshot so a
// mid-operation tune never mixes old and new values.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bobbin/internal/config"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

// Snapshot is one consistent read of the tunable parameters.
type Snapshot struct {
	ConfidenceThreshold      float64
	EscalatedEnabled         bool
	FastModel                string
	EscalatedModel           string
	FingerprintRetentionDays int
	MinItemsForReady         int
	CadenceFloorHours        int
}

// Service reads and updates runtime settings.
type Service struct {
	store *store.Store
	cfg   *config.Config
}

// NewService constructs a settings service backed by the store, with the
// file config supplying fallbacks for unparseable values.
func NewService(st *store.Store, cfg *config.Config) *Service {
	return &Service{store: st, cfg: cfg}
}

// Snapshot reads all tunables at once. Malformed stored values fall back to
// the file config rather than failing the calling operation.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	stored, err := s.store.AllSettings(ctx)
	if err != nil {
		return Snapshot{}, services.Wrap(services.ErrTransient, "settings", "snapshot", "read settings", err)
	}

	snap := Snapshot{
		ConfidenceThreshold:      s.cfg.Classifier.ConfidenceThreshold,
		EscalatedEnabled:         s.cfg.Classifier.EscalatedEnabled,
		FastModel:                s.cfg.Classifier.Fast.Model,
		EscalatedModel:           s.cfg.Classifier.Escalated.Model,
		FingerprintRetentionDays: s.cfg.Ingest.FingerprintRetentionDays,
		MinItemsForReady:         s.cfg.Collections.MinItemsForReady,
		CadenceFloorHours:        s.cfg.Cadence.FloorHours,
	}

	if raw, ok := stored[store.SettingConfidenceThreshold]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			snap.ConfidenceThreshold = v
		}
	}
	if raw, ok := stored[store.SettingEscalatedTierEnabled]; ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			snap.EscalatedEnabled = v
		}
	}
	if raw, ok := stored[store.SettingFastModel]; ok && strings.TrimSpace(raw) != "" {
		snap.FastModel = strings.TrimSpace(raw)
	}
	if raw, ok := stored[store.SettingEscalatedModel]; ok && strings.TrimSpace(raw) != "" {
		snap.EscalatedModel = strings.TrimSpace(raw)
	}
	if raw, ok := stored[store.SettingFingerprintRetentionDays]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			snap.FingerprintRetentionDays = v
		}
	}
	if raw, ok := stored[store.SettingMinItemsForReady]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			snap.MinItemsForReady = v
		}
	}
	if raw, ok := stored[store.SettingCadenceFloorHours]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			snap.CadenceFloorHours = v
		}
	}
	return snap, nil
}

// Update validates and stores one setting.
func (s *Service) Update(ctx context.Context, key, value string) error {
	if err := validate(key, value); err != nil {
		return services.Wrap(services.ErrValidation, "settings", "update", fmt.Sprintf("invalid value for %s", key), err)
	}
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return services.Wrap(services.ErrTransient, "settings", "update", "store setting", err)
	}
	return nil
}

// All returns the raw stored settings.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	stored, err := s.store.AllSettings(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "settings", "all", "read settings", err)
	}
	return stored, nil
}

func validate(key, value string) error {
	switch key {
	case store.SettingConfidenceThreshold:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold %v outside [0, 1]", v)
		}
	case store.SettingEscalatedTierEnabled:
		if _, err := strconv.ParseBool(value); err != nil {
			return err
		}
	case store.SettingFastModel, store.SettingEscalatedModel:
		// Any name is legal; an empty value falls back to the file config.
	case store.SettingFingerprintRetentionDays, store.SettingMinItemsForReady, store.SettingCadenceFloorHours:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
