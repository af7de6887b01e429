package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, cfg jobs.GenerationConfig) *jobs.Job {
	t.Helper()

	configJSON, err := jobs.EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("jobs.EncodeConfig: %v", err)
	}
	job, err := store.Create(context.Background(), uuid.NewString(), configJSON)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// ScriptConfig returns a minimal valid generation config for tests.
func ScriptConfig() jobs.GenerationConfig {
	return jobs.GenerationConfig{
		Script:       "A lighthouse keeper greets the dawn. Waves break below.",
		DurationSecs: 8,
		VoiceEnabled: true,
		MusicEnabled: true,
	}
}
