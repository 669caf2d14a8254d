// Package orchestrator drives the client-side lifecycle of one generation
// task: upload, status polling, identifier backfill, media readiness, and
// the persisted session that survives restarts.
//
// The state machine is idle -> uploading -> processing -> completed/error,
// with backend cancellation folding back to idle. All mutation happens under
// one lock; asynchronous results (polls, searches, probes) carry the epoch
// and task identifier they were started for and are dropped when the session
// has moved on. Every transition is checkpointed through taskstate and
// mirrored into the optional history store; terminal failures and resets
// purge the checkpoint so a dead task does not reappear on the next start.
//
// Collaborators are injected as interfaces (pipeline.Service, media.Prober,
// notify.Service), so tests drive the full lifecycle without a backend. A
// file lock scoped to the state directory keeps concurrent sessions from
// interleaving snapshot writes.
package orchestrator
