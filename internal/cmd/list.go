package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/audio/m4a"
	"github.com/voxvault/voxvault/internal/recording"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings in the store",
		Long: `List all recordings, newest first.

Runs a sync pass before listing unless --no-sync is given, so folders added
or removed behind the index's back are reflected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp("list")
			if err != nil {
				return err
			}
			defer app.Close()

			if !noSync {
				if _, err := app.Reconcile.Run(cmd.Context()); err != nil {
					return fmt.Errorf("sync: %w", err)
				}
			}

			entities := app.sortedEntities()
			if len(entities) == 0 {
				fmt.Fprintln(os.Stdout, "No recordings.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tDURATION\tFILES\tTITLE")
			for _, e := range entities {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ID[:8],
					e.CreatedAt.Format("2006-01-02 15:04"),
					formatDuration(e.DurationSeconds),
					sideFileMarkers(e, app.Store.AudioPath(app.Store.FolderPath(e.ID))),
					e.Title,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the sync pass before listing")
	return cmd
}

func formatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// sideFileMarkers summarizes per-recording files: T for transcription, A for
// analysis, ! when the audio header cannot be parsed.
func sideFileMarkers(e *recording.Entity, audioPath string) string {
	marks := ""
	if e.Transcription != nil {
		marks += "T"
	}
	if e.AnalysisRaw != nil {
		marks += "A"
	}
	if _, err := m4a.Probe(audioPath); err != nil {
		marks += "!"
	}
	if marks == "" {
		marks = "-"
	}
	return marks
}
