package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/config"
	"github.com/voxvault/voxvault/internal/pidfile"
	"github.com/voxvault/voxvault/internal/recording/watch"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var watchMode bool
	var stop bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the store with the index",
		Long: `Reconcile the recording folders on disk with the metadata index.

New folders are discovered, vanished folders are removed from the index, and
transcription/analysis side files are mirrored into their index entries.

With --watch, sync keeps running and re-reconciles whenever the filesystem
changes. A PID file prevents two watchers on the same store; --stop signals
a running watcher to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stop {
				return stopWatcher()
			}

			app, err := openApp("sync")
			if err != nil {
				return err
			}
			defer app.Close()

			if !watchMode {
				summary, err := app.Reconcile.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Sync complete: %d inserted, %d updated, %d removed.\n",
					summary.Inserted, summary.Updated, summary.Removed)
				return nil
			}

			pid := pidfile.New(filepath.Join(app.Root, config.MarkerDir))
			if removed, err := pid.CleanStale(); err != nil {
				return fmt.Errorf("check pid file: %w", err)
			} else if removed {
				app.Log.Info("removed stale watcher pid file")
			}
			if running, other, _ := pid.IsRunning(); running {
				return fmt.Errorf("watcher already running (pid %d)", other)
			}
			if err := pid.Write(os.Getpid()); err != nil {
				return fmt.Errorf("write pid file: %w", err)
			}
			defer pid.Remove()

			watcher, err := watch.NewPlatformWatcher()
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			defer watcher.Stop()

			stab := watch.NewPollStabilizer(
				time.Duration(app.Config.StabilizationIntervalMs)*time.Millisecond,
				app.Config.StabilizationChecks,
			)
			syncOnce := func(ctx context.Context) error {
				_, err := app.Reconcile.Run(ctx)
				return err
			}
			runner := watch.NewRunner(app.Store, watcher, stab, syncOnce, app.Log.WithComponent("watch"))

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(os.Stdout, "Watching %s (pid %d)\n", app.Root, os.Getpid())
			return runner.Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "keep running and sync on filesystem changes")
	cmd.Flags().BoolVar(&stop, "stop", false, "stop a running watcher")
	return cmd
}

// stopWatcher signals the watcher recorded in the pid file.
func stopWatcher() error {
	root, err := config.FindStoreRoot()
	if err != nil {
		return ErrNotAStore
	}
	pid := pidfile.New(filepath.Join(root, config.MarkerDir))

	running, watcherPID, err := pid.IsRunning()
	if err != nil {
		return fmt.Errorf("check pid file: %w", err)
	}
	if !running {
		fmt.Fprintln(os.Stdout, "No watcher running.")
		return nil
	}
	if err := syscall.Kill(watcherPID, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal watcher: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Stopped watcher (pid %d)\n", watcherPID)
	return nil
}
