package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"deckcast/internal/config"
	"deckcast/internal/history"
	"deckcast/internal/logging"
	"deckcast/internal/media"
	"deckcast/internal/orchestrator"
	"deckcast/internal/pipeline"
	"deckcast/internal/task"
	"deckcast/internal/taskstate"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

// ensureLogger builds the session logger. Diagnostics go to deckcast.log
// under the configured log directory; --verbose mirrors them to stderr at
// debug level. Stdout stays reserved for command output.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		logger, err := c.buildLogger(cfg)
		if err != nil {
			c.loggerErr = err
			return
		}
		logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "*.log", cfg.Logging.RetentionDays)
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) buildLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.verbose() {
		verboseCfg := *cfg
		verboseCfg.Logging.Level = "debug"
		return logging.NewFromConfig(&verboseCfg)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "deckcast.log")
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Sinks:  []string{logPath},
	})
}

func (c *commandContext) pipelineClient(cfg *config.Config, logger *slog.Logger) (*pipeline.Client, error) {
	return pipeline.New(cfg.Pipeline.BaseURL,
		pipeline.WithAPIToken(cfg.Pipeline.APIToken),
		pipeline.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Pipeline.RequestTimeout) * time.Second}),
		pipeline.WithUploadClient(&http.Client{Timeout: time.Duration(cfg.Pipeline.UploadTimeout) * time.Second}),
		pipeline.WithLogger(logger),
	)
}

func (c *commandContext) mediaClient(cfg *config.Config, logger *slog.Logger) (*media.Client, error) {
	return media.New(cfg.Pipeline.MediaBaseURL,
		media.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Media.ProbeTimeout) * time.Second}),
		media.WithRateLimit(cfg.Media.ProbePerSecond, cfg.Media.ProbeBurst),
		media.WithLogger(logger),
	)
}

// session bundles the collaborators a locked command needs: the orchestrator
// plus the clients and stores it was built from.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	media  *media.Client
	hist   *history.Store
	orc    *orchestrator.Orchestrator
}

func (s *session) Close() {
	if err := s.hist.Close(); err != nil {
		s.logger.Warn("close history store", logging.Error(err))
	}
}

func (c *commandContext) openSession(hooks orchestrator.Hooks) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	svc, err := c.pipelineClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	mediaClient, err := c.mediaClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	orc, err := orchestrator.New(cfg, svc, mediaClient, logger,
		orchestrator.WithHistory(hist),
		orchestrator.WithHooks(hooks),
	)
	if err != nil {
		_ = hist.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, media: mediaClient, hist: hist, orc: orc}, nil
}

func noHooks() orchestrator.Hooks {
	return orchestrator.Hooks{}
}

// withSession runs fn inside a started orchestrator session. The session
// lock, poller, and history store are torn down when fn returns.
func (c *commandContext) withSession(ctx context.Context, hooks orchestrator.Hooks, fn func(context.Context, *session) error) error {
	sess, err := c.openSession(hooks)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.orc.Start(ctx); err != nil {
		if errors.Is(err, orchestrator.ErrSessionActive) {
			return fmt.Errorf("%w; close it or remove %s", err, sess.cfg.LockPath())
		}
		return err
	}
	defer sess.orc.Stop()

	return fn(ctx, sess)
}

// loadSavedTask reads the persisted session snapshot without taking the
// session lock. Read-only commands use it so they never block a live session.
func loadSavedTask(cfg *config.Config, logger *slog.Logger) (task.Task, bool) {
	window := time.Duration(cfg.Session.ResumeWindowHours) * time.Hour
	return taskstate.NewStore(cfg.StatePath(), window, logger).Load()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
