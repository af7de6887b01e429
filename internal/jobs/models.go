package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Job is the durable record for one script submission.
type Job struct {
	ID           string
	Status       Status
	Progress     float64
	ConfigJSON   string
	ErrorMessage string
	RetryCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Version      int64
}

// GenerationConfig is the immutable parameter snapshot captured at submission.
type GenerationConfig struct {
	Script        string `json:"script"`
	ImageModel    string `json:"image_model,omitempty"`
	VideoModel    string `json:"video_model,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	DurationSecs  int    `json:"duration_secs,omitempty"`
	VoiceEnabled  bool   `json:"voice_enabled"`
	VoiceRequired bool   `json:"voice_required"`
	MusicEnabled  bool   `json:"music_enabled"`
}

// Validate rejects configs that cannot produce a runnable pipeline.
func (c GenerationConfig) Validate() error {
	if strings.TrimSpace(c.Script) == "" {
		return fmt.Errorf("generation config: script must not be empty")
	}
	if c.DurationSecs < 0 {
		return fmt.Errorf("generation config: duration_secs must not be negative")
	}
	if c.VoiceRequired && !c.VoiceEnabled {
		return fmt.Errorf("generation config: voice_required implies voice_enabled")
	}
	return nil
}

// HasAudio reports whether any audio stage is enabled.
func (c GenerationConfig) HasAudio() bool {
	return c.VoiceEnabled || c.MusicEnabled
}

// Config decodes the job's stored generation config.
func (j *Job) Config() (GenerationConfig, error) {
	var cfg GenerationConfig
	if err := json.Unmarshal([]byte(j.ConfigJSON), &cfg); err != nil {
		return GenerationConfig{}, fmt.Errorf("decode job config: %w", err)
	}
	return cfg, nil
}

// EncodeConfig serializes a generation config for storage.
func EncodeConfig(cfg GenerationConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode job config: %w", err)
	}
	return string(data), nil
}

// TransitionRecord is one append-only audit entry for a status change.
type TransitionRecord struct {
	ID         int64
	JobID      string
	FromStatus Status
	ToStatus   Status
	Reason     string
	CreatedAt  time.Time
}

// StageStatus is the runtime state of one execution-graph node.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageRecord is the persisted outcome of one stage node, used to rebuild the
// execution graph after a restart.
type StageRecord struct {
	JobID        string
	Kind         string
	Status       StageStatus
	Attempts     int
	ErrorMessage string
	UpdatedAt    time.Time
}

// HealthSummary aggregates job counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}
