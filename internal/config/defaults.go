package config

const (
	defaultDataDir              = "~/.local/share/bobbin"
	defaultLogDir               = "~/.local/share/bobbin/logs"
	defaultAPIBind              = "127.0.0.1:7510"
	defaultRetentionDays        = 30
	defaultMaxSummaryChars      = 480
	defaultConfidenceThreshold  = 0.75
	defaultFastTimeoutSeconds   = 5
	defaultEscTimeoutSeconds    = 30
	defaultEscRetryAttempts     = 3
	defaultMinItemsForReady     = 3
	defaultCollectionRetention  = 14
	defaultSweepIntervalSeconds = 300
	defaultCadenceFloorHours    = 20
	defaultCadenceInterval      = "daily"
	defaultLockTTLSeconds       = 600
	defaultWorkers              = 2
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Ingest: Ingest{
			FingerprintRetentionDays: defaultRetentionDays,
			MaxSummaryChars:          defaultMaxSummaryChars,
		},
		Classifier: Classifier{
			ConfidenceThreshold: defaultConfidenceThreshold,
			EscalatedEnabled:    true,
			Fast: Tier{
				TimeoutSeconds: defaultFastTimeoutSeconds,
				RetryAttempts:  1,
			},
			Escalated: Tier{
				TimeoutSeconds: defaultEscTimeoutSeconds,
				RetryAttempts:  defaultEscRetryAttempts,
			},
		},
		Collections: Collections{
			MinItemsForReady:     defaultMinItemsForReady,
			RetentionDays:        defaultCollectionRetention,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Cadence: Cadence{
			FloorHours:      defaultCadenceFloorHours,
			DefaultInterval: defaultCadenceInterval,
		},
		Locks: Locks{
			TTLSeconds: defaultLockTTLSeconds,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
