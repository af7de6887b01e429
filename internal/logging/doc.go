// Package logging provides slog logger construction with console and JSON
// handlers, standardized field names, and context-derived attributes.
package logging
