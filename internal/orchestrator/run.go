package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deckcast/internal/logging"
	"deckcast/internal/task"
)

// ErrSessionActive indicates another process holds the session lock.
var ErrSessionActive = errors.New("another deckcast session is active")

// Start acquires the session lock, loads a resumable snapshot, and begins
// background polling. It returns once the session is live; Stop tears it
// down.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("session already running")
	}
	o.mu.Unlock()

	if err := o.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure state directories: %w", err)
	}

	ok, err := o.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return ErrSessionActive
	}

	resumed, loaded := o.loadSnapshot()

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.running = true
	o.cancelRun = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go o.runPoller(runCtx)

	if loaded {
		o.logger.Info("resumed session",
			logging.String(logging.FieldTaskID, resumed.ID),
			logging.String(logging.FieldStatus, string(resumed.Status)),
			logging.Int("progress", resumed.Progress),
		)
		if resumed.Status == task.StatusCompleted && resumed.HasUsableID() {
			epoch := o.currentEpoch()
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.ensureMediaSignals(runCtx, resumed.ID, epoch)
			}()
		}
	}

	o.mu.Lock()
	o.resuming = false
	o.mu.Unlock()
	return nil
}

// loadSnapshot pulls the persisted task into memory, discarding snapshots
// that cannot drive any further work. Returns the task and whether one was
// adopted. Sets the resuming flag so the adoption itself is not re-persisted.
func (o *Orchestrator) loadSnapshot() (task.Task, bool) {
	t, ok := o.snapshot.Load()
	if !ok {
		return task.Task{}, false
	}
	// An in-flight task with no identifiers cannot be polled or resolved.
	if t.InFlight() && t.FileID == "" && !t.HasUsableID() {
		o.logger.Warn("discarding unusable session snapshot",
			logging.String(logging.FieldStatus, string(t.Status)),
		)
		if err := o.snapshot.Clear(); err != nil {
			o.logger.Warn("failed to purge session snapshot", logging.Error(err))
		}
		return task.Task{}, false
	}

	o.mu.Lock()
	o.current = t
	o.resuming = true
	if t.Details != nil {
		o.present.Apply(t.Details.TaskType, false)
	}
	o.mu.Unlock()
	return t, true
}

// Stop halts background polling, waits for in-flight work, and releases the
// session lock.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancelRun
	o.running = false
	o.cancelRun = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()

	if err := o.lock.Unlock(); err != nil {
		o.logger.Warn("failed to release session lock", logging.Error(err))
	}
}

func (o *Orchestrator) runPoller(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.pollInterval):
		}
		o.pollOnce(ctx)
	}
}

func (o *Orchestrator) currentEpoch() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}
