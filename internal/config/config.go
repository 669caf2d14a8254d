package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for session state and logs.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Pipeline contains connection settings for the generation backend.
// APIToken is optional; when set it is sent as a bearer token.
type Pipeline struct {
	BaseURL        string `toml:"base_url"`
	MediaBaseURL   string `toml:"media_base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
	UploadTimeout  int    `toml:"upload_timeout"`
}

// Session contains polling and resume behavior.
type Session struct {
	PollInterval      int `toml:"poll_interval"`
	ResumeWindowHours int `toml:"resume_window_hours"`
}

// Output contains the defaults applied to new submissions. An empty
// TranscriptLanguage lets the backend derive it from the voice language.
type Output struct {
	TaskType           string `toml:"task_type"`
	VoiceLanguage      string `toml:"voice_language"`
	SubtitleLanguage   string `toml:"subtitle_language"`
	TranscriptLanguage string `toml:"transcript_language"`
	VideoResolution    string `toml:"video_resolution"`
	GenerateAvatar     bool   `toml:"generate_avatar"`
	GenerateSubtitles  bool   `toml:"generate_subtitles"`
}

// Media contains settings for artifact readiness probes and prefetch.
type Media struct {
	ProbeTimeout   int  `toml:"probe_timeout"`
	ProbePerSecond int  `toml:"probe_per_second"`
	ProbeBurst     int  `toml:"probe_burst"`
	Prefetch       bool `toml:"prefetch"`
}

// History contains configuration for the local submission history database.
type History struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	ListingTTL int    `toml:"listing_ttl"`
}

// Notifications configures ntfy push delivery for terminal states. An empty
// topic disables delivery.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnComplete     bool   `toml:"on_complete"`
	OnError        bool   `toml:"on_error"`
}

// Logging selects the log format, level, and retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config carries every deckcast setting, grouped by section:
//   - Paths: session state and log directories
//   - Pipeline: generation backend endpoints and timeouts
//   - Session: poll cadence and the resume freshness window
//   - Output: default task type and languages for submissions
//   - Media: artifact probe rate limits and prefetch
//   - History: local submission history database
//   - Notifications: ntfy delivery for completed and failed runs
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Session       Session       `toml:"session"`
	Output        Output        `toml:"output"`
	Media         Media         `toml:"media"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns where deckcast looks for its config file first.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/deckcast/config.toml")
}

// Load resolves the configuration file location, layers it over the built-in
// defaults, and validates the result. Path fields come back expanded and
// absolute. The returned bool reports whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// ResolvePath reports which configuration file Load would use for an
// explicit path (empty selects the default lookup order) and whether the
// file exists.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		switch _, err := os.Stat(expanded); {
		case err == nil:
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("deckcast.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for session operation.
// The history directory is created on a best-effort basis so the client can
// run when the history database lives on unavailable storage.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		_ = os.MkdirAll(filepath.Dir(c.History.Path), 0o755)
	}
	return nil
}

// StatePath returns the location of the persisted session snapshot.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "task.json")
}

// LockPath returns the location of the session lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "session.lock")
}

// expandPath turns a configured path into an absolute one, resolving a
// leading "~" against the home directory. "~user" forms pass through as-is.
func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	if rest, ok := strings.CutPrefix(pathValue, "~"); ok {
		if rest == "" || rest[0] == '/' || rest[0] == '\\' {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			pathValue = filepath.Join(home, strings.TrimLeft(rest, `/\`))
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated starter configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
