// Package main provides the CLI entry point for the reactor control plane.
//
// reactor embeds the runtime core directly: the run subcommand drives one
// agent against stdin, printing streamed replies and effect notifications,
// and the inspect subcommand prints the persisted head state for a given
// key without starting a scheduler.
//
// # Basic Usage
//
// Run an agent against a config file, reading messages from stdin:
//
//	reactor run --config reactor.yaml --key <uuid>
//
// Inspect a persisted agent's head state:
//
//	reactor inspect --store sqlite:///var/lib/reactor/state.db --key <uuid>
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for the reference Think/Speak adapter
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "reactor",
		Short:        "reactor - event-sourced conversational agent control plane",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildRunCmd(), buildInspectCmd())
	return rootCmd
}
