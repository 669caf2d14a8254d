package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"deckcast/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/deckcast/config.toml"
		}
		return fmt.Errorf("pipeline.base_url is required. Set DECKCAST_API_URL env var or edit %s (create with 'deckcast config init')", defaultPath)
	}
	for key, value := range map[string]string{
		"pipeline.base_url":       c.Pipeline.BaseURL,
		"pipeline.media_base_url": c.Pipeline.MediaBaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must use http or https, got %q", key, value)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s is missing a host: %q", key, value)
		}
	}
	return ensurePositiveMap(map[string]int{
		"pipeline.request_timeout":      c.Pipeline.RequestTimeout,
		"pipeline.upload_timeout":       c.Pipeline.UploadTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateSession() error {
	if err := ensurePositiveMap(map[string]int{
		"session.poll_interval": c.Session.PollInterval,
	}); err != nil {
		return err
	}
	if c.Session.ResumeWindowHours <= 0 {
		return errors.New("session.resume_window_hours must be positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.TaskType {
	case "video", "podcast", "both":
	default:
		return fmt.Errorf("output.task_type must be video, podcast, or both, got %q", c.Output.TaskType)
	}
	switch c.Output.VideoResolution {
	case "480p", "720p", "1080p":
	default:
		return fmt.Errorf("output.video_resolution must be 480p, 720p, or 1080p, got %q", c.Output.VideoResolution)
	}
	if !language.Valid(c.Output.VoiceLanguage) {
		return fmt.Errorf("output.voice_language is not a valid language tag: %q", c.Output.VoiceLanguage)
	}
	if c.Output.SubtitleLanguage != "" && !language.Valid(c.Output.SubtitleLanguage) {
		return fmt.Errorf("output.subtitle_language is not a valid language tag: %q", c.Output.SubtitleLanguage)
	}
	if c.Output.TranscriptLanguage != "" && !language.Valid(c.Output.TranscriptLanguage) {
		return fmt.Errorf("output.transcript_language is not a valid language tag: %q", c.Output.TranscriptLanguage)
	}
	return nil
}

func (c *Config) validateMedia() error {
	return ensurePositiveMap(map[string]int{
		"media.probe_timeout":    c.Media.ProbeTimeout,
		"media.probe_per_second": c.Media.ProbePerSecond,
		"media.probe_burst":      c.Media.ProbeBurst,
	})
}

func (c *Config) validateHistory() error {
	if c.History.Enabled {
		if strings.TrimSpace(c.History.Path) == "" {
			return errors.New("history.path must be set when history.enabled is true")
		}
		if c.History.ListingTTL <= 0 {
			return errors.New("history.listing_ttl must be positive when history.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
