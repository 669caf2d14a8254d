package testsupport

import (
	"path/filepath"
	"testing"

	"deckcast/internal/config"
)

// ConfigOption mutates the generated test configuration before NewConfig
// returns it.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and a backend URL no test can accidentally reach.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Pipeline.BaseURL = "http://127.0.0.1:0"
	cfg.Pipeline.MediaBaseURL = "http://127.0.0.1:0"
	cfg.History.Path = filepath.Join(base, "state", "history.db")
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBaseURL points the pipeline client at the provided URL, typically an
// httptest server started by the test.
func WithBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) { cfg.Pipeline.BaseURL = url }
}

// WithMediaBaseURL points artifact probes and downloads at the provided URL.
func WithMediaBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) { cfg.Pipeline.MediaBaseURL = url }
}

// WithNtfyTopic enables notification delivery against the provided topic or
// endpoint URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) { cfg.Notifications.NtfyTopic = topic }
}

// WithHistoryDisabled turns off the submission history database.
func WithHistoryDisabled() ConfigOption {
	return func(cfg *config.Config) { cfg.History.Enabled = false }
}

// WithPollInterval overrides the status poll cadence in seconds.
func WithPollInterval(seconds int) ConfigOption {
	return func(cfg *config.Config) { cfg.Session.PollInterval = seconds }
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
