// Package watch triggers reconciliation when the store root changes on disk.
// It watches the root and every recording folder, waits for touched files to
// stop growing, and then runs a sync pass.
package watch

import (
	"context"
	"os"
	"time"

	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording/store"
)

// FileEvent is one detected filesystem change.
type FileEvent struct {
	Path      string
	Timestamp time.Time
}

// Watcher emits FileEvents for a directory tree.
type Watcher interface {
	// Watch starts watching dir and returns the event channel.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	// Add registers an additional directory, typically a recording folder
	// that appeared after Watch started.
	Add(dir string) error
	// Stop stops the watcher and releases resources.
	Stop() error
}

// PollStabilizer waits for a file to finish writing by polling its size.
type PollStabilizer struct {
	// Interval is the duration between size checks.
	Interval time.Duration
	// Checks is the number of consecutive stable checks required.
	Checks int
}

// NewPollStabilizer creates a polling-based stabilizer.
func NewPollStabilizer(interval time.Duration, checks int) *PollStabilizer {
	return &PollStabilizer{Interval: interval, Checks: checks}
}

// WaitForStable blocks until the file size stays constant for the configured
// number of consecutive checks. A vanished file is stable: whatever was
// writing it is done with it.
func (s *PollStabilizer) WaitForStable(ctx context.Context, path string) error {
	var lastSize int64 = -1
	stableCount := 0

	for stableCount < s.Checks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Interval):
		}

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if info.Size() == lastSize {
			stableCount++
		} else {
			stableCount = 0
			lastSize = info.Size()
		}
	}
	return nil
}

// Runner connects a Watcher to the reconciliation service.
type Runner struct {
	store      *store.Store
	watcher    Watcher
	stabilizer *PollStabilizer
	sync       func(context.Context) error
	log        logging.Logger
}

// NewRunner creates a watch runner. sync is invoked once at startup and then
// after each stabilized filesystem event.
func NewRunner(st *store.Store, w Watcher, stab *PollStabilizer,
	sync func(context.Context) error, log logging.Logger) *Runner {
	return &Runner{store: st, watcher: w, stabilizer: stab, sync: sync, log: log}
}

// Run blocks until ctx is cancelled or the watcher fails.
func (r *Runner) Run(ctx context.Context) error {
	events, err := r.watcher.Watch(ctx, r.store.Root())
	if err != nil {
		return err
	}
	defer r.watcher.Stop()

	// Initial convergence, then keep folder watches current.
	r.runSync(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.stabilizer.WaitForStable(ctx, event.Path); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Error("stabilization failed", err,
					logging.String("path", event.Path))
			}
			r.runSync(ctx)
		}
	}
}

func (r *Runner) runSync(ctx context.Context) {
	if err := r.sync(ctx); err != nil {
		r.log.Error("sync failed", err)
	}
	// New recording folders need their own watches for side-file events.
	folders, err := r.store.ListRecordingFolders()
	if err != nil {
		r.log.Error("list folders for watch refresh", err)
		return
	}
	for _, folder := range folders {
		if err := r.watcher.Add(folder.Path); err != nil {
			r.log.Debug("add folder watch",
				logging.String("path", folder.Path))
		}
	}
}
