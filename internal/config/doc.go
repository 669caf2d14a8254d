// Package config loads, normalizes, and validates deckcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// DECKCAST_API_URL. The Config type centralizes every knob the CLI and the
// session orchestrator need, so backend endpoints, poll cadence, and output
// defaults are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical language tags, and clear validation errors.
package config
