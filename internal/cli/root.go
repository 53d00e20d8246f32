// Package cli implements the Astra command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/astra-mentor/astra/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "astra",
	Short: "Astra: an AI mentor with XP, levels, skills, and badges",
	Long: `Astra serves a friendly AI mentor for children and tracks their progress.
Every chat turn earns XP; levels, skill tracks, daily streaks, and badges
follow from it.

Run 'astra serve' to start the API, or inspect progress from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	daemon.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
