package orchestrator

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"deckcast/internal/config"
	"deckcast/internal/history"
	"deckcast/internal/logging"
	"deckcast/internal/media"
	"deckcast/internal/notify"
	"deckcast/internal/pipeline"
	"deckcast/internal/presenter"
	"deckcast/internal/task"
	"deckcast/internal/taskstate"
)

// Hooks observe orchestrator state changes. Callbacks fire outside the state
// lock, in the goroutine that triggered the change; any field may be nil.
type Hooks struct {
	// OnTransition fires when the task status changes.
	OnTransition func(from, to task.Status, current task.Task)
	// OnProgress fires when a poll updates progress without changing status.
	OnProgress func(current task.Task)
	// OnSelection fires when the completed-media tab moves or is pinned.
	OnSelection func(selection presenter.Media, pinned bool)
	// OnResolved fires when the identifier resolver backfills a task ID.
	OnResolved func(current task.Task)
}

// Orchestrator drives one generation task through its lifecycle: submit,
// poll, resolve identifiers, probe finished media, persist every transition.
// It owns the session lock; a second instance against the same state
// directory refuses to start.
type Orchestrator struct {
	cfg      *config.Config
	svc      pipeline.Service
	prober   media.Prober
	snapshot *taskstate.Store
	history  *history.Store
	notifier notify.Service
	logger   *slog.Logger
	hooks    Hooks

	lock         *flock.Flock
	pollInterval time.Duration

	mu           sync.Mutex
	current      task.Task
	present      *presenter.Presenter
	epoch        uint64
	videoReady   bool
	videoChecked bool
	resuming     bool
	running      bool
	cancelRun    func()
	wg           sync.WaitGroup
}

// Option configures optional Orchestrator collaborators.
type Option func(*Orchestrator)

// WithSnapshotStore overrides the session snapshot store.
func WithSnapshotStore(store *taskstate.Store) Option {
	return func(o *Orchestrator) {
		o.snapshot = store
	}
}

// WithHistory attaches a submission history store.
func WithHistory(store *history.Store) Option {
	return func(o *Orchestrator) {
		o.history = store
	}
}

// WithNotifier overrides the notification service.
func WithNotifier(service notify.Service) Option {
	return func(o *Orchestrator) {
		o.notifier = service
	}
}

// WithHooks registers state-change callbacks.
func WithHooks(hooks Hooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// New constructs an orchestrator around the backend service and media prober.
func New(cfg *config.Config, svc pipeline.Service, prober media.Prober, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator requires config")
	}
	if svc == nil || prober == nil {
		return nil, errors.New("orchestrator requires backend service and media prober")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	o := &Orchestrator{
		cfg:          cfg,
		svc:          svc,
		prober:       prober,
		logger:       logging.NewComponentLogger(logger, "orchestrator"),
		lock:         flock.New(cfg.LockPath()),
		pollInterval: time.Duration(cfg.Session.PollInterval) * time.Second,
		current:      task.New(),
		present:      presenter.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.snapshot == nil {
		window := time.Duration(cfg.Session.ResumeWindowHours) * time.Hour
		o.snapshot = taskstate.NewStore(cfg.StatePath(), window, logger)
	}
	if o.notifier == nil {
		o.notifier = notify.NewService(cfg)
	}
	return o, nil
}

// Task returns a copy of the current task.
func (o *Orchestrator) Task() task.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Selection returns the completed-media tab and whether the user pinned it.
func (o *Orchestrator) Selection() (presenter.Media, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.present.Selection(), o.present.Pinned()
}

// SelectMedia pins a manual media tab choice.
func (o *Orchestrator) SelectMedia(selection presenter.Media) {
	o.mu.Lock()
	o.present.Select(selection)
	pinned := o.present.Pinned()
	o.mu.Unlock()

	if o.hooks.OnSelection != nil {
		o.hooks.OnSelection(selection, pinned)
	}
}

// VideoReady reports the probed video availability for the current task.
// The second return is false until a probe has answered.
func (o *Orchestrator) VideoReady() (ready, known bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.videoReady, o.videoChecked
}

// Running reports whether the session is started.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// persistLocked checkpoints the current task. Callers hold o.mu. Terminal
// failures and idle purge the snapshot; anything else overwrites it. Writes
// are suppressed while a load-triggered resume is settling.
func (o *Orchestrator) persistLocked() {
	if o.resuming {
		return
	}
	switch o.current.Status {
	case task.StatusIdle, task.StatusError, task.StatusCancelled:
		if err := o.snapshot.Clear(); err != nil {
			o.logger.Warn("failed to purge session snapshot", logging.Error(err))
		}
	default:
		if err := o.snapshot.Save(o.current); err != nil {
			o.logger.Warn("failed to persist session snapshot", logging.Error(err))
		}
	}
}

// stillCurrentLocked reports whether an async result taken at epoch for
// taskID may be applied. Callers hold o.mu.
func (o *Orchestrator) stillCurrentLocked(epoch uint64, taskID string) bool {
	return epoch == o.epoch && o.current.ID == taskID
}

func notifyName(t task.Task) string {
	if t.Details != nil && t.Details.Filename != "" {
		return t.Details.Filename
	}
	return "document"
}
