package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/audio/capture"
	"github.com/voxvault/voxvault/internal/audio/encode"
	"github.com/voxvault/voxvault/internal/audio/session"
)

// NewRecordCmd creates the record command.
func NewRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record a new voice note",
		Long: `Record a new voice note from the default input device.

Recording runs until Enter is pressed or an interrupt signal arrives. The
finished note is written to its own folder and indexed immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp("record")
			if err != nil {
				return err
			}
			defer app.Close()

			ffmpeg := encode.NewFFmpeg()
			if err := ffmpeg.Available(); err != nil {
				return err
			}

			guard := session.NewGuard()
			engine := capture.New(app.Store, capture.NewPortAudioDevice(), ffmpeg, guard, app.Log.WithComponent("capture"))

			ctx := cmd.Context()
			handle, err := engine.Start(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Recording %s (press Enter to stop)\n", handle.ID)

			go renderMeter(engine.Events(), os.Stderr)

			stopped := make(chan struct{})
			go func() {
				reader := bufio.NewReader(os.Stdin)
				reader.ReadString('\n')
				close(stopped)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-stopped:
			case <-sigCh:
			case <-ctx.Done():
			}

			entity := engine.Stop()
			if entity == nil {
				return fmt.Errorf("recording was interrupted before completion")
			}

			app.Index.Upsert(entity)
			if err := app.Index.Commit(context.Background()); err != nil {
				return fmt.Errorf("persist recording: %w", err)
			}
			if _, err := app.Reconcile.Run(context.Background()); err != nil {
				app.Log.Error("post-record sync failed", err)
			}

			fmt.Fprintf(os.Stdout, "Saved %q (%.1fs)\n", entity.Title, entity.DurationSeconds)
			return nil
		},
	}
}

// renderMeter rewrites a single status line in place with the elapsed time
// and a coarse input level bar. It also keeps the event channel drained so
// the engine's samplers never block.
func renderMeter(events <-chan capture.Event, w io.Writer) {
	var seconds float64
	for ev := range events {
		switch ev.Kind {
		case capture.EventDuration:
			seconds = ev.Seconds
		case capture.EventLevel:
			fmt.Fprintf(w, "\r  %s [%-10s]", formatDuration(seconds), levelBar(ev.Level))
		}
	}
	fmt.Fprint(w, "\r")
}

// levelBar renders a normalized level in [0, 1] as up to ten hash marks.
func levelBar(level float64) string {
	n := int(level*10 + 0.5)
	if n < 0 {
		n = 0
	}
	if n > 10 {
		n = 10
	}
	return strings.Repeat("#", n)
}
