package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/analysis"
	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording"
	"github.com/voxvault/voxvault/internal/sidecar"
)

// NewProcessCmd creates the process command.
func NewProcessCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "process [id]",
		Short: "Transcribe and analyze recordings",
		Long: `Run the transcription and analysis pipeline for a recording.

Each step writes its side file into the recording folder; steps whose side
file already exists are skipped, so process is safe to re-run. When the
analysis yields a suggested title and the recording still carries its
auto-generated one, the title is upgraded.

With --all, every recording missing a side file is processed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("provide a recording id or --all, not both")
			}

			app, err := openApp("process")
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := app.Reconcile.Run(cmd.Context()); err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			proc := buildProcessor(app)

			var targets []string
			if all {
				for _, e := range app.sortedEntities() {
					if e.Transcription == nil || e.AnalysisRaw == nil {
						targets = append(targets, e.ID)
					}
				}
				if len(targets) == 0 {
					fmt.Fprintln(os.Stdout, "Nothing to process.")
					return nil
				}
			} else {
				id, err := app.resolveID(args[0])
				if err != nil {
					return err
				}
				targets = []string{id}
			}

			var failed int
			for _, id := range targets {
				if err := proc.Process(cmd.Context(), app.Store.FolderPath(id)); err != nil {
					failed++
					app.Log.Error("processing failed", err, logging.String("id", id))
					fmt.Fprintf(os.Stderr, "process %s: %v\n", id[:8], err)
				}
			}

			if _, err := app.Reconcile.Run(cmd.Context()); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if err := applySuggestedTitles(cmd.Context(), app); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d recordings failed", failed, len(targets))
			}
			fmt.Fprintf(os.Stdout, "Processed %d recording(s).\n", len(targets))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "process every recording missing a side file")
	return cmd
}

func buildProcessor(app *app) *sidecar.Processor {
	log := app.Log.WithComponent("sidecar")

	transcriber := sidecar.NewRetryTranscriber(
		sidecar.NewWhisperClient(app.Config.TranscribeURL, sidecar.WithLanguage(app.Config.Language)),
		sidecar.WithRetryCount(app.Config.RetryCount),
		sidecar.WithRetryLogger(log),
	)
	analyzer := sidecar.NewRetryAnalyzer(
		sidecar.NewChatClient(app.Config.AnalyzeURL, app.Config.AnalyzeKey(), app.Config.AnalyzeModel),
		sidecar.WithRetryCount(app.Config.RetryCount),
		sidecar.WithRetryLogger(log),
	)
	return sidecar.NewProcessor(app.Store, transcriber, analyzer, log)
}

// applySuggestedTitles upgrades auto-generated titles from analysis results.
// Recordings already given a real title are left alone.
func applySuggestedTitles(ctx context.Context, app *app) error {
	for _, e := range app.Index.All() {
		if e.AnalysisRaw == nil || e.Title != recording.PlaceholderTitle(e.CreatedAt) {
			continue
		}
		result, stage, err := analysis.Parse(*e.AnalysisRaw)
		if err != nil {
			app.Log.Error("analysis parse failed", err, logging.String("id", e.ID))
			continue
		}
		if result.SuggestedTitle == "" {
			continue
		}
		e.Title = result.SuggestedTitle
		app.Index.Upsert(e)
		app.Log.Info("title upgraded",
			logging.String("id", e.ID),
			logging.String("stage", stage.String()),
		)
	}
	if !app.Index.HasPendingChanges() {
		return nil
	}
	if err := app.Index.Commit(ctx); err != nil {
		return fmt.Errorf("persist titles: %w", err)
	}
	return nil
}
