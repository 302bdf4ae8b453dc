// Package engine executes workflow graphs.
//
// # Overview
//
// The engine walks a registered graph manifest from its entry point,
// invoking the Handler bound to each node and merging the handler's
// returned updates into the execution state. After every node the engine
// snapshots the state, persists a checkpoint, and records the step in the
// execution registry, so a run can be inspected while it happens and
// resumed after it stops.
//
// # Routing
//
// A node's outgoing edges are considered in declaration order. An
// unconditional edge is always taken; a conditional edge is taken when
// its expression evaluates to true against the current state. When no
// edge matches, the run completes.
//
// # Example Usage
//
//	graphs := registry.NewGraphRegistry(registry.NewVersionStore())
//	graphs.Register(manifest)
//
//	runner := engine.NewRunner(graphs, logger,
//	    engine.WithExecutionRegistry(executions),
//	    engine.WithStateRegistry(states),
//	    engine.WithCheckpointer(store),
//	)
//	runner.RegisterHandler("model", callModel)
//
//	result, err := runner.Run(ctx, "chat", initialState)
//	if result.Status == registry.StatusCompleted {
//	    // Success
//	}
//
// Interrupted or crashed runs resume from their latest checkpoint:
//
//	result, err := runner.Resume(ctx, threadID)
//
// # Termination
//
// Every run ends in exactly one terminal status: completed when no edge
// matches, failed when a handler or edge condition errors, interrupted on
// context cancellation, and timed_out when the step limit is exceeded.
// The limit defaults to DefaultMaxSteps and can be overridden per runner
// or per run.
//
// # Error Classification
//
// Errors are classified for retry logic (see package graph):
//
//	if graph.IsTransient(err) {
//	    // Retry the run
//	}
//
// # Thread Safety
//
// A Runner is safe for concurrent use. Handlers may be registered while
// runs are in flight; each run works on its own copy of the state.
package engine
