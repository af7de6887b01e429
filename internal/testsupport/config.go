package testsupport

import (
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
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
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.PollIntervalMS = 10
	cfg.Workflow.RetryBackoffMS = 10

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMaxRetries sets the stage retry limit on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxRetries = n
	}
}

// WithStageTimeout sets the per-stage deadline in seconds.
func WithStageTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.StageTimeoutSeconds = seconds
	}
}

// WithAudioDisabled turns off both audio stage defaults.
func WithAudioDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Stages.VoiceEnabled = false
		cfg.Stages.VoiceRequired = false
		cfg.Stages.MusicEnabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
