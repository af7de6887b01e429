// Package notifications delivers job lifecycle events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The orchestrator emits one notification per terminal job status,
// so a phone subscribed to the topic sees completions, failures, and
// cancellations without tailing logs.
//
// Extend this package if you need alternative transports; orchestration code
// depends only on the simple Service interface.
package notifications
