// Command warden supervises a fleet of coding-agent workers: it keeps the
// coordinating daemon alive, watches worker filesystem activity, gates
// worker output, and routes notifications.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var projectRoot string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Supervise coding-agent workers",
	Long: `warden keeps the coordinating daemon alive, monitors worker filesystem
activity against policy and area locks, validates worker output after exit,
and routes findings to notification channels.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(projectRoot)
		if err != nil {
			return fmt.Errorf("resolve project root: %w", err)
		}
		projectRoot = abs
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "project", "p", ".",
		"project root directory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
