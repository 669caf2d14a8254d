package config

const (
	defaultStateDir          = "~/.local/share/deckcast"
	defaultLogDir            = "~/.local/share/deckcast/logs"
	defaultHistoryPath       = "~/.local/share/deckcast/history.db"
	defaultBaseURL           = "http://127.0.0.1:8000"
	defaultRequestTimeout    = 15
	defaultUploadTimeout     = 600
	defaultPollInterval      = 3
	defaultResumeWindowHours = 24
	defaultTaskType          = "both"
	defaultVoiceLanguage     = "en"
	defaultVideoResolution   = "1080p"
	defaultProbeTimeout      = 10
	defaultProbePerSecond    = 4
	defaultProbeBurst        = 8
	defaultHistoryListingTTL = 30
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Pipeline: Pipeline{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Session: Session{
			PollInterval:      defaultPollInterval,
			ResumeWindowHours: defaultResumeWindowHours,
		},
		Output: Output{
			TaskType:          defaultTaskType,
			VoiceLanguage:     defaultVoiceLanguage,
			VideoResolution:   defaultVideoResolution,
			GenerateSubtitles: true,
		},
		Media: Media{
			ProbeTimeout:   defaultProbeTimeout,
			ProbePerSecond: defaultProbePerSecond,
			ProbeBurst:     defaultProbeBurst,
			Prefetch:       true,
		},
		History: History{
			Enabled:    true,
			Path:       defaultHistoryPath,
			ListingTTL: defaultHistoryListingTTL,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			OnComplete:     true,
			OnError:        true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
