// Package history persists a local record of submitted generation tasks in
// SQLite.
//
// The Store tracks one row per submission: identifiers, the originating file,
// declared outputs, and the last observed status. Rows are written at submit
// time and restamped as polling observes progress, so listings work without
// contacting the backend. A single listing stamp records when statuses were
// last synced; submissions invalidate it and listing commands re-poll
// non-terminal rows once it goes stale.
//
// The database is an archive of past submissions, not coordination state.
// Disabling history in the config yields a store whose methods are no-ops.
// Schema changes bump the version in schema.go; a mismatched database must be
// deleted and rebuilt.
package history
