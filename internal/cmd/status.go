package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/config"
	"github.com/voxvault/voxvault/internal/pidfile"
	"github.com/voxvault/voxvault/internal/status"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store and sync status",
		Long:  `Show the store location, index size, watcher state, and today's sync activity.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp("status")
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Fprintf(os.Stdout, "Store:      %s\n", app.Root)
			fmt.Fprintf(os.Stdout, "Recordings: %d\n", app.Index.Len())

			pid := pidfile.New(filepath.Join(app.Root, config.MarkerDir))
			if running, watcherPID, _ := pid.IsRunning(); running {
				fmt.Fprintf(os.Stdout, "Watcher:    running (pid %d)\n", watcherPID)
			} else {
				fmt.Fprintln(os.Stdout, "Watcher:    not running")
			}

			stats, err := status.ParseToday(app.logDir())
			if err != nil {
				return fmt.Errorf("read log: %w", err)
			}
			fmt.Fprintf(os.Stdout, "\nToday: %d sync runs, %d inserted, %d updated, %d removed, %d errors\n",
				stats.SyncRuns, stats.Inserted, stats.Updated, stats.Removed, stats.Errors)
			if stats.LastSync != nil {
				fmt.Fprintf(os.Stdout, "Last sync: %s\n", status.FormatTimestamp(*stats.LastSync))
			}
			return nil
		},
	}
}
