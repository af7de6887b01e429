// Package tasks defines the asynchronous task-execution contract the
// orchestrator dispatches stage invocations through, and an in-process
// implementation that runs registered stage handlers on goroutines.
package tasks
