// Package orchestrator drives submitted jobs through the generation
// pipeline. Each job gets its own goroutine that builds the stage graph
// from the job's configuration, dispatches eligible stages to the task
// backend, and applies version-guarded status transitions as the graph
// advances. Interrupted jobs are re-adopted on startup from the persisted
// per-stage outcomes.
package orchestrator
