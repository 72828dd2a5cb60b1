package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/audio/encode"
	"github.com/voxvault/voxvault/internal/audio/playback"
	"github.com/voxvault/voxvault/internal/audio/session"
)

// NewPlayCmd creates the play command.
func NewPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <id>",
		Short: "Play a recording",
		Long: `Play a recording through the default output device.

The identifier may be a full recording ID or an unambiguous prefix. Playback
runs to the end of the file or until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp("play")
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
			audioPath := app.Store.AudioPath(app.Store.FolderPath(id))

			guard := session.NewGuard()
			engine := playback.New(playback.NewFileOpener(encode.NewFFmpeg()), guard, app.Log.WithComponent("playback"))

			duration, err := engine.Prepare(audioPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Playing %q (%s)\n", entity.Title, formatDuration(duration))

			if err := engine.Play(audioPath); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			for {
				select {
				case ev := <-engine.Events():
					if ev.Kind == playback.EventState && ev.State == playback.StateIdle {
						return nil
					}
				case <-sigCh:
					engine.Stop()
					return nil
				case <-cmd.Context().Done():
					engine.Stop()
					return nil
				}
			}
		},
	}
}
