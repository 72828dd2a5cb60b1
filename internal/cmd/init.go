package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voxvault/voxvault/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a voxvault store",
		Long: `Initialize a new voxvault store at the given path (default: current directory).

Creates the .voxvault marker directory with store metadata and a default
configuration file. Recordings live in folders directly under the store root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			if name == "" {
				name = filepath.Base(abs)
			}

			if err := config.InitStore(abs, name); err != nil {
				if errors.Is(err, config.ErrStoreExists) {
					return fmt.Errorf("store already initialized at %s", abs)
				}
				return err
			}

			fmt.Fprintf(os.Stdout, "Initialized voxvault store %q at %s\n", name, abs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "store name (default: directory name)")
	return cmd
}
