package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph/pkg/registry"
)

func newVersionsCommand() *cobra.Command {
	var (
		paths []string
		diff  bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "versions <graph-id>",
		Short: "Show version history for a graph",
		Long: `Show the version history recorded for a graph.

Manifests are loaded from the configured registry paths (or the --path
flags) and registered, which fingerprints each graph's structure. Each
distinct content hash produces a new version entry.`,
		Example: `  # List versions of a graph
  flowgraph versions chat --path ./graphs

  # Diff the two most recent versions
  flowgraph versions chat --path ./graphs --diff`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphID := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				paths = cfg.Registry.Paths
			}
			if len(paths) == 0 {
				return fmt.Errorf("no manifest paths: set registry.paths in the config or pass --path")
			}

			store := registry.NewVersionStore()
			graphs := registry.NewGraphRegistry(store)
			loader := registry.NewLoader(log.Logger, graphs)
			if _, err := loader.LoadFromPaths(cmd.Context(), paths); err != nil {
				return fmt.Errorf("failed to load manifests: %w", err)
			}

			if _, ok := graphs.Get(graphID); !ok {
				return fmt.Errorf("graph %s not found in %v", graphID, paths)
			}

			if diff {
				return printVersionDiff(store, graphID)
			}
			return printVersionHistory(store, graphID, limit)
		},
	}

	cmd.Flags().StringSliceVarP(&paths, "path", "p", nil, "manifest file or directory (repeatable)")
	cmd.Flags().BoolVar(&diff, "diff", false, "diff the two most recent versions")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum history entries to show")

	return cmd
}

func printVersionHistory(store *registry.VersionStore, graphID string, limit int) error {
	history := store.History(graphID, limit)
	if len(history) == 0 {
		fmt.Printf("No versions recorded for graph %s\n", graphID)
		return nil
	}

	if jsonOutput {
		for i := range history {
			out, err := history[i].ToJSON()
			if err != nil {
				return fmt.Errorf("failed to encode version: %w", err)
			}
			fmt.Println(out)
		}
		return nil
	}

	fmt.Printf("Versions of %s (newest first):\n", graphID)
	for _, v := range history {
		fmt.Printf("  %-12s %s  nodes=%d edges=%d  %s\n",
			v.Version, v.ContentHash[:12], v.NodeCount, v.EdgeCount,
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printVersionDiff(store *registry.VersionStore, graphID string) error {
	latest, ok := store.Latest(graphID)
	if !ok {
		return fmt.Errorf("no versions recorded for graph %s", graphID)
	}
	previous, ok := store.Previous(graphID)
	if !ok {
		fmt.Printf("Graph %s has a single version (%s); nothing to diff\n",
			graphID, latest.Version)
		return nil
	}

	d := latest.Diff(&previous)
	if jsonOutput {
		out, err := d.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to encode diff: %w", err)
		}
		fmt.Println(out)
		return nil
	}

	fmt.Println(d.DetailedReport())
	return nil
}
