// Package media talks to the artifact host for finished generations.
//
// A task marked completed by the backend does not guarantee the video file
// is durably written yet, so the prober issues a presence-only request
// against the video artifact and caches the answer per task ID; that probe,
// not the declared task type, is the authoritative signal for whether a
// video exists. The client also warms the backend cache for finished
// artifacts (at most one prefetch per URL per task, rate limited) and
// downloads artifacts to disk for the fetch command.
package media
