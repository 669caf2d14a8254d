// Package task defines the shared model for generation tasks.
//
// A Task carries the two backend identifiers (file and task), the reduced
// client status, normalized progress, and the last full status payload. The
// status enum, the backend-to-client status mapping, and progress
// normalization live here so every other package agrees on lifecycle
// semantics.
//
// Identifiers minted before the backend registers a task use the synthetic
// "local-" prefix; UsableID is the single gate deciding whether an identifier
// may be sent to status, cancel, or media endpoints.
package task
