package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph/pkg/engine"
	"github.com/flowgraph/flowgraph/pkg/registry"
	"github.com/flowgraph/flowgraph/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		stateJSON string
		threadID  string
		resume    bool
	)

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Execute a graph manifest",
		Long: `Execute a graph manifest with built-in echo handlers.

Each node's handler records its own name into the state, so a run
demonstrates routing, state propagation, checkpointing, and the
resulting execution record without any application code. Conditional
edges are evaluated against the state supplied via --state.`,
		Example: `  # Run a graph with an empty initial state
  flowgraph run ./graphs/chat.yaml

  # Supply initial state for conditional routing
  flowgraph run ./graphs/chat.yaml --state '{"escalate": true}'

  # Resume an interrupted thread from its latest checkpoint
  flowgraph run ./graphs/chat.yaml --thread 1b4e28ba --resume`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			manifest, err := loadManifest(args[0])
			if err != nil {
				return err
			}

			state := map[string]interface{}{}
			if stateJSON != "" {
				if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
					return fmt.Errorf("invalid --state JSON: %w", err)
				}
			}

			ctx := cmd.Context()

			// Route telemetry away from stdout so the summary stays readable.
			telCfg := cfg.Telemetry
			telCfg.Logging.Output = "stderr"
			if telCfg.Tracing.Exporter == "stdout" {
				telCfg.Tracing.Exporter = "none"
			}
			telCfg.Events.EnableAsync = false
			tel, err := telemetry.NewTelemetry(&telCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer tel.Shutdown(context.Background())
			ctx = tel.WithContext(ctx)

			store, err := openCheckpointStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			graphs := registry.NewGraphRegistry(registry.NewVersionStore())
			if err := graphs.Register(manifest); err != nil {
				return fmt.Errorf("failed to register graph: %w", err)
			}

			executions := registry.NewExecutionRegistryWithLimit(cfg.Engine.MaxExecutionRecords)
			states := registry.NewStateRegistry(cfg.Engine.MaxSnapshotsPerThread)

			runner := engine.NewRunner(graphs, log.Logger,
				engine.WithExecutionRegistry(executions),
				engine.WithStateRegistry(states),
				engine.WithCheckpointer(store),
				engine.WithMaxSteps(cfg.Engine.MaxSteps),
			)

			// Echo handlers: each node stamps the state with its name.
			for _, name := range manifest.NodeNames() {
				node := name
				runner.RegisterHandler(node, func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error) {
					log.Debug().Str("node", node).Msg("Echo handler")
					return map[string]interface{}{node: "done"}, nil
				})
			}

			start := time.Now()
			var result *engine.Result
			if resume {
				if threadID == "" {
					return fmt.Errorf("--resume requires --thread")
				}
				result, err = runner.Resume(ctx, threadID)
			} else {
				var opts []engine.RunOption
				if threadID != "" {
					opts = append(opts, engine.WithThreadID(threadID))
				}
				result, err = runner.Run(ctx, manifest.GraphID, state, opts...)
			}
			if err != nil && result == nil {
				return err
			}

			printRunSummary(result, time.Since(start), executions)
			printTraceSummary(tel, result.ThreadID)
			if err != nil {
				return fmt.Errorf("execution finished with status %s: %w", result.Status, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stateJSON, "state", "", "initial state as a JSON object")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id (generated when empty)")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume the thread from its latest checkpoint")

	return cmd
}

func printRunSummary(result *engine.Result, elapsed time.Duration, executions *registry.ExecutionRegistry) {
	if jsonOutput {
		if record, ok := executions.Get(result.ThreadID); ok {
			if out, err := record.ToJSON(); err == nil {
				fmt.Println(out)
				return
			}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Thread:   %s\n", result.ThreadID)
	fmt.Printf("Graph:    %s@%s\n", result.GraphID, result.GraphVersion)
	fmt.Printf("Status:   %s\n", result.Status)
	fmt.Printf("Steps:    %d (%s)\n", result.Steps, elapsed.Round(time.Millisecond))
	fmt.Printf("Path:     %v\n", result.NodesExecuted)

	if len(result.FinalState) > 0 {
		data, err := json.MarshalIndent(result.FinalState, "", "  ")
		if err == nil {
			fmt.Printf("State:\n%s\n", string(data))
		}
	}
}

// printTraceSummary reports the unified trace for the thread: per-node
// timings folded from the telemetry event stream.
func printTraceSummary(tel *telemetry.Telemetry, threadID string) {
	if jsonOutput || tel == nil || tel.Traces == nil {
		return
	}
	trace, err := tel.Traces.Trace(threadID)
	if err != nil || len(trace.NodesExecuted) == 0 {
		return
	}

	var slowest telemetry.NodeExecution
	for _, exec := range trace.NodesExecuted {
		if exec.Duration > slowest.Duration {
			slowest = exec
		}
	}

	fmt.Printf("Trace:    %d node executions, slowest %s (%s)\n",
		len(trace.NodesExecuted), slowest.Node, slowest.Duration.Round(time.Microsecond))
	if trace.TotalTokens > 0 {
		fmt.Printf("Tokens:   %d\n", trace.TotalTokens)
	}
	for _, e := range trace.Errors {
		fmt.Printf("Error:    %s: %s\n", e.Node, e.Message)
	}
}
