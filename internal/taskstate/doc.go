// Package taskstate persists the session task so a restarted client can
// resume an in-flight generation.
//
// The store keeps a single JSON snapshot (the full task plus a save
// timestamp) at <state_dir>/task.json. Every task mutation overwrites the
// snapshot with a complete record; writes go through a temp file and rename
// so a crash never leaves a torn snapshot behind. A snapshot older than the
// resume window is treated as absent and purged on load, as are snapshots
// that fail to parse.
package taskstate
