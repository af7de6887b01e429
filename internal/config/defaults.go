package config

const (
	defaultDataDir             = "~/.local/share/reelsmith"
	defaultStagingDir          = "~/.local/share/reelsmith/staging"
	defaultLogDir              = "~/.local/share/reelsmith/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultPollIntervalMS      = 500
	defaultMaxRetries          = 3
	defaultRetryBackoffMS      = 2000
	defaultStageTimeoutSeconds = 900
	defaultNtfyTimeoutSeconds  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Workflow: Workflow{
			PollIntervalMS:      defaultPollIntervalMS,
			MaxRetries:          defaultMaxRetries,
			RetryBackoffMS:      defaultRetryBackoffMS,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
		},
		Stages: Stages{
			VoiceEnabled:  true,
			VoiceRequired: false,
			MusicEnabled:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
	}
}
