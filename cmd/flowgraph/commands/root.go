package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph/pkg/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowgraph",
		Short: "FlowGraph - Graph Execution Engine",
		Long: `FlowGraph is a graph-based workflow engine for stateful,
multi-step applications.

Features:
  - Versioned graph manifests with structural hashing
  - Conditional routing via expression evaluation
  - Execution, state, and version registries
  - Pluggable checkpoint persistence (memory, SQLite, Redis)
  - Unified telemetry: logging, tracing, metrics, events`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newVersionsCommand())
	rootCmd.AddCommand(newExecutionsCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newPlatformCommand())

	return rootCmd
}

// loadConfig resolves the runtime configuration, falling back to
// defaults when no --config flag was given.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}
