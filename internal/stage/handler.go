package stage

import (
	"context"

	"reelsmith/internal/jobs"
)

// Request carries everything a stage handler needs for one invocation.
type Request struct {
	JobID  string
	Kind   Kind
	Config jobs.GenerationConfig
	// Attempt is 0 for the first dispatch and increments per retry.
	Attempt int
}

// Result is what a stage handler produces on success.
type Result struct {
	// ArtifactPath points at the stage's primary output, when it has one.
	ArtifactPath string
	Detail       string
}

// Handler describes the contract the orchestrator needs from each stage.
type Handler interface {
	Prepare(context.Context, Request) error
	Execute(context.Context, Request) (Result, error)
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
