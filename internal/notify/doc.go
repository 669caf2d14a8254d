// Package notify delivers terminal-transition events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml (a bare name goes to ntfy.sh, a full URL is used as-is) and
// gracefully degrades to a no-op when no topic is set. Completion and
// failure events honor their per-event switches; the orchestrator depends
// only on the Service interface, so failures here never touch the state
// machine.
package notify
