// Package main hosts the deckcast CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into session
// operations against the generation backend: document submission, status
// watching, history listings, artifact downloads, and configuration
// scaffolding. It centralizes configuration resolution, logger setup, and
// session construction so subcommands can focus on user experience instead
// of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
// That separation keeps the CLI declarative while the lifecycle logic lives
// in the orchestrator.
package main
