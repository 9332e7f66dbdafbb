package main

import (
	"log/slog"

	"bobbin/internal/cadence"
	"bobbin/internal/classifier"
	"bobbin/internal/collection"
	"bobbin/internal/config"
	"bobbin/internal/fingerprint"
	"bobbin/internal/grouplock"
	"bobbin/internal/metrics"
	"bobbin/internal/pipeline"
	"bobbin/internal/review"
	"bobbin/internal/settings"
	"bobbin/internal/store"
)

func buildSettings(cfg *config.Config, st *store.Store) *settings.Service {
	return settings.NewService(st, cfg)
}

func buildPipeline(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Manager {
	mtr := &metrics.Metrics{}
	settingsSvc := buildSettings(cfg, st)

	fast := classifier.NewClient(tierConfig(cfg.Classifier.Fast))
	escalated := classifier.NewClient(tierConfig(cfg.Classifier.Escalated))

	return pipeline.NewManager(cfg, pipeline.Deps{
		Store:        st,
		Settings:     settingsSvc,
		Fingerprints: fingerprint.NewService(st, logger, fingerprint.WithMetrics(mtr)),
		Collections:  collection.NewManager(cfg, st, settingsSvc, mtr, logger),
		Locks:        grouplock.NewManager(cfg, st, mtr, logger),
		Cadence:      cadence.NewScheduler(cfg, st, settingsSvc, mtr, logger),
		Review:       review.NewStage(cfg, st, settingsSvc, fast, escalated, mtr, logger),
		Metrics:      mtr,
		Logger:       logger,
	})
}

func tierConfig(tier config.Tier) classifier.Config {
	return classifier.Config{
		Endpoint:       tier.Endpoint,
		APIKey:         tier.APIKey,
		Model:          tier.Model,
		TimeoutSeconds: tier.TimeoutSeconds,
		RetryAttempts:  tier.RetryAttempts,
	}
}
