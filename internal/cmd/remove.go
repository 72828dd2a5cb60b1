package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/archive"
	"github.com/voxvault/voxvault/internal/logging"
)

// NewRemoveCmd creates the remove command.
func NewRemoveCmd() *cobra.Command {
	var archiveFlag bool

	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a recording",
		Long: `Remove a recording's folder and its index entry.

With --archive, the folder is copied into the configured archive directory
before deletion. Removing a recording that is already gone from disk still
clears its index entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp("remove")
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := app.resolveID(args[0])
			if err != nil {
				return err
			}
			entity, ok := app.Index.Find(id)
			if !ok {
				return fmt.Errorf("no recording %s", id)
			}
			folder := app.Store.FolderPath(id)

			if archiveFlag {
				if app.Config.ArchiveDir == "" {
					return fmt.Errorf("no archive directory configured (set archiveDir in config.json)")
				}
				arch := archive.NewFolderArchiver()
				if err := arch.Archive(cmd.Context(), folder, app.Config.ArchiveDir); err != nil {
					return fmt.Errorf("archive %s: %w", id, err)
				}
				app.Log.Info("recording archived",
					logging.String("id", id),
					logging.String("dest", app.Config.ArchiveDir),
				)
			}

			if err := app.Store.DeleteFolder(folder); err != nil {
				return fmt.Errorf("delete folder: %w", err)
			}
			if _, err := app.Reconcile.Run(cmd.Context()); err != nil {
				return fmt.Errorf("sync after remove: %w", err)
			}

			fmt.Fprintf(os.Stdout, "Removed %q\n", entity.Title)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&archiveFlag, "archive", "a", false, "archive the folder before removing it")
	return cmd
}
