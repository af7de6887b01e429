// Package daemon wraps the orchestrator in a long-running process lifecycle
// with flock-based locking to prevent multiple concurrent daemon instances
// from competing for the same staging workspace.
package daemon
