// Package jobs defines the job lifecycle model: the closed status enum with
// its legal-transition table, the durable SQLite-backed record store with
// optimistic-concurrency writes, the append-only transition history, and the
// persisted per-stage outcomes the orchestrator uses to resume after a
// restart.
package jobs
