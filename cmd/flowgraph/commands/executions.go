package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph/pkg/checkpoint"
	"github.com/flowgraph/flowgraph/pkg/config"
)

func newExecutionsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List executions recorded in the checkpoint store",
		Long: `List executions persisted to the configured checkpoint backend.

Each thread's most recent checkpoint is shown: the graph it was
running, the last node that completed, and when. Requires a durable
backend (sqlite or redis) in the config; the memory backend holds no
history between processes.`,
		Example: `  # List recent executions
  flowgraph executions --config ./flowgraph.yaml

  # Machine-readable output
  flowgraph executions --config ./flowgraph.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openCheckpointStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			threads, err := store.Threads(ctx)
			if err != nil {
				return fmt.Errorf("failed to list threads: %w", err)
			}

			latest := make([]checkpoint.Checkpoint, 0, len(threads))
			for _, threadID := range threads {
				cp, err := store.Latest(ctx, threadID)
				if err != nil {
					log.Warn().Err(err).Str("thread_id", threadID).Msg("Skipping thread")
					continue
				}
				latest = append(latest, cp)
			}

			// Newest first.
			sort.Slice(latest, func(i, j int) bool {
				return latest[i].CreatedAt.After(latest[j].CreatedAt)
			})
			if limit > 0 && len(latest) > limit {
				latest = latest[:limit]
			}

			if jsonOutput {
				data, err := json.MarshalIndent(latest, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode executions: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(latest) == 0 {
				fmt.Println("No executions recorded")
				return nil
			}

			fmt.Printf("%-38s %-16s %-16s %s\n", "THREAD", "GRAPH", "LAST NODE", "AT")
			for _, cp := range latest {
				fmt.Printf("%-38s %-16s %-16s %s\n",
					cp.ThreadID, cp.GraphID, cp.Node,
					cp.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum executions to show")

	return cmd
}

// openCheckpointStore builds the checkpoint backend selected by the
// configuration.
func openCheckpointStore(ctx context.Context, cfg *config.Config) (checkpoint.Checkpointer, error) {
	switch cfg.Checkpoint.Backend {
	case "sqlite":
		return checkpoint.NewSQLiteStore(ctx, cfg.Checkpoint.Path, log.Logger)
	case "redis":
		return checkpoint.NewRedisStore(ctx, cfg.Checkpoint.URL, cfg.Checkpoint.TTL, log.Logger)
	default:
		return checkpoint.NewMemoryStore(), nil
	}
}
