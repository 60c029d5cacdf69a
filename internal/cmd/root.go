// Package cmd implements the rehoboam CLI's command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rehoboam",
	Short: "Observability and orchestration engine for fleets of Claude Code agents",
}

// Execute runs the root command. Called from cmd/rehoboam/main.go.
func Execute() error {
	return rootCmd.Execute()
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("%s requires a subcommand; see --help", cmd.Name())
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loopCmd)
}
