// Package services holds the error taxonomy shared by stage handlers, the
// task backend, and the orchestrator's retry policy.
package services
