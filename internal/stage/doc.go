// Package stage defines the pipeline stage kinds, the handler contract each
// unit of generation work implements, and the registry the orchestrator
// resolves handlers through.
package stage
