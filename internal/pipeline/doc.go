// Package pipeline is the HTTP client for the generation backend.
//
// The Client covers the four operations the session depends on: multipart
// document submission, status fetch, task search by upload identifier, and
// cancellation. Every response is classified against the shared sentinel
// errors so callers can distinguish transient outages from rejections and
// protocol drift without parsing messages.
//
// Correlation identifiers travel in the request context; helpers here also
// carry task and file identifiers so the logging package can stamp them onto
// every line.
package pipeline
