// Package logging assembles the structured slog loggers used across
// deckcast components.
//
// It provides the console and JSON handlers, level and sink plumbing, and
// context-aware helpers that tag log lines with the task, file, and
// correlation identifiers carried on a request context. A no-op logger
// covers tests and optional collaborators.
//
// New code should construct loggers through this package so every component
// emits the same line shape.
package logging
