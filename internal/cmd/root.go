// Package cmd implements the voxvault CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the voxvault CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voxvault",
		Short: "Voice note store",
		Long:  "Voxvault records short voice notes into per-recording folders and keeps a searchable metadata index converged with the filesystem",
	}

	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewRecordCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewPlayCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewRemoveCmd())
	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
