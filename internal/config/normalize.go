package config

import (
	"fmt"
	"os"
	"strings"

	"deckcast/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeOutput()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if value, ok := os.LookupEnv("DECKCAST_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.Pipeline.BaseURL = value
	}
	if value, ok := os.LookupEnv("DECKCAST_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Pipeline.APIToken = value
	}
	c.Pipeline.BaseURL = strings.TrimRight(strings.TrimSpace(c.Pipeline.BaseURL), "/")
	c.Pipeline.MediaBaseURL = strings.TrimRight(strings.TrimSpace(c.Pipeline.MediaBaseURL), "/")
	if c.Pipeline.MediaBaseURL == "" {
		c.Pipeline.MediaBaseURL = c.Pipeline.BaseURL
	}
	c.Pipeline.APIToken = strings.TrimSpace(c.Pipeline.APIToken)
}

func (c *Config) normalizeOutput() {
	c.Output.TaskType = strings.ToLower(strings.TrimSpace(c.Output.TaskType))
	if c.Output.TaskType == "" {
		c.Output.TaskType = defaultTaskType
	}
	c.Output.VoiceLanguage = strings.TrimSpace(c.Output.VoiceLanguage)
	if c.Output.VoiceLanguage == "" {
		c.Output.VoiceLanguage = defaultVoiceLanguage
	}
	if canonical, ok := language.Normalize(c.Output.VoiceLanguage); ok {
		c.Output.VoiceLanguage = canonical
	}
	c.Output.SubtitleLanguage = strings.TrimSpace(c.Output.SubtitleLanguage)
	if canonical, ok := language.Normalize(c.Output.SubtitleLanguage); ok {
		c.Output.SubtitleLanguage = canonical
	}
	c.Output.TranscriptLanguage = strings.TrimSpace(c.Output.TranscriptLanguage)
	if canonical, ok := language.Normalize(c.Output.TranscriptLanguage); ok {
		c.Output.TranscriptLanguage = canonical
	}
	c.Output.VideoResolution = strings.ToLower(strings.TrimSpace(c.Output.VideoResolution))
	if c.Output.VideoResolution == "" {
		c.Output.VideoResolution = defaultVideoResolution
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	expanded, err := expandPath(c.History.Path)
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("DECKCAST_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
