package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowgraph/flowgraph/pkg/checkpoint"
	"github.com/flowgraph/flowgraph/pkg/graph"
	"github.com/flowgraph/flowgraph/pkg/registry"
	"github.com/flowgraph/flowgraph/pkg/telemetry"
)

// Handler executes one graph node. It receives the current execution
// state and returns the updates to merge into it.
type Handler func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error)

// DefaultMaxSteps bounds how many node executions a single run may
// perform before it is stopped with a timed out status.
const DefaultMaxSteps = 100

// Result summarizes a completed run.
type Result struct {
	// ThreadID is the execution thread of the run.
	ThreadID string `json:"thread_id"`

	// GraphID is the graph that was executed.
	GraphID string `json:"graph_id"`

	// GraphVersion is the registered version of the graph, if known.
	GraphVersion string `json:"graph_version,omitempty"`

	// Status is the terminal execution status.
	Status registry.Status `json:"status"`

	// FinalState is the state when the run ended.
	FinalState map[string]interface{} `json:"final_state"`

	// NodesExecuted lists the executed nodes in order.
	NodesExecuted []string `json:"nodes_executed"`

	// Steps is the number of node executions performed.
	Steps int `json:"steps"`

	// Duration is the wall-clock duration of the run.
	Duration time.Duration `json:"duration"`

	// Err is the error that ended the run, nil on success.
	Err error `json:"-"`
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutionRegistry wires the registry that records execution
// lifecycles.
func WithExecutionRegistry(reg *registry.ExecutionRegistry) RunnerOption {
	return func(r *Runner) {
		r.executions = reg
	}
}

// WithStateRegistry wires the registry that captures per-node state
// snapshots.
func WithStateRegistry(reg *registry.StateRegistry) RunnerOption {
	return func(r *Runner) {
		r.states = reg
	}
}

// WithCheckpointer wires the store that persists a checkpoint after
// every node.
func WithCheckpointer(cp checkpoint.Checkpointer) RunnerOption {
	return func(r *Runner) {
		r.checkpoints = cp
	}
}

// WithMaxSteps overrides the default step limit for all runs.
func WithMaxSteps(maxSteps int) RunnerOption {
	return func(r *Runner) {
		if maxSteps > 0 {
			r.maxSteps = maxSteps
		}
	}
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	threadID string
	maxSteps int
}

// WithThreadID pins the run to a caller-chosen thread ID instead of a
// generated one. Reusing a thread ID continues its snapshot and
// checkpoint history.
func WithThreadID(threadID string) RunOption {
	return func(c *runConfig) {
		c.threadID = threadID
	}
}

// WithRunMaxSteps overrides the runner's step limit for one run.
func WithRunMaxSteps(maxSteps int) RunOption {
	return func(c *runConfig) {
		if maxSteps > 0 {
			c.maxSteps = maxSteps
		}
	}
}

// Runner executes registered graphs. It walks a graph from its entry
// point, invoking the handler bound to each node, evaluating edge
// conditions against the state to pick the next node, and feeding every
// step into the execution registry, state registry, checkpoint store,
// and telemetry.
type Runner struct {
	logger      zerolog.Logger
	graphs      *registry.GraphRegistry
	executions  *registry.ExecutionRegistry
	states      *registry.StateRegistry
	checkpoints checkpoint.Checkpointer
	maxSteps    int

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRunner creates a runner over the given graph registry.
func NewRunner(graphs *registry.GraphRegistry, logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:   logger.With().Str("component", "runner").Logger(),
		graphs:   graphs,
		maxSteps: DefaultMaxSteps,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterHandler binds a handler to a node name. Handlers are shared
// across graphs: every node with this name runs this handler.
func (r *Runner) RegisterHandler(node string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[node] = h
}

// Handler returns the handler bound to a node name.
func (r *Runner) Handler(node string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[node]
	return h, ok
}

// Run executes a registered graph from its entry point until no edge
// matches, the step limit is hit, the context is cancelled, or a
// handler fails. The returned Result carries the terminal status; the
// error is non-nil only when the run did not complete normally.
func (r *Runner) Run(ctx context.Context, graphID string, state map[string]interface{}, opts ...RunOption) (*Result, error) {
	manifest, ok := r.graphs.Get(graphID)
	if !ok {
		return nil, graph.NewPermanentError(fmt.Sprintf("graph not registered: %s", graphID), nil).
			WithCode(graph.ErrCodeNotFound)
	}
	return r.exec(ctx, manifest, manifest.EntryPoint, state, opts...)
}

// Resume loads the latest checkpoint of a thread and continues the run
// from the node that follows the checkpointed one.
func (r *Runner) Resume(ctx context.Context, threadID string, opts ...RunOption) (*Result, error) {
	if r.checkpoints == nil {
		return nil, graph.NewPermanentError("runner has no checkpoint store", nil).
			WithCode(graph.ErrCodeValidation)
	}

	cp, err := r.checkpoints.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}

	manifest, ok := r.graphs.Get(cp.GraphID)
	if !ok {
		return nil, graph.NewPermanentError(fmt.Sprintf("graph not registered: %s", cp.GraphID), nil).
			WithCode(graph.ErrCodeNotFound)
	}

	next, err := r.route(manifest, cp.Node, cp.State)
	if err != nil {
		return nil, err
	}
	if next == "" {
		// The checkpointed node was the last one. Nothing left to run.
		return &Result{
			ThreadID:   threadID,
			GraphID:    cp.GraphID,
			Status:     registry.StatusCompleted,
			FinalState: cp.State,
		}, nil
	}

	return r.exec(ctx, manifest, next, cp.State, append(opts, WithThreadID(threadID))...)
}

// exec is the shared run loop behind Run and Resume.
func (r *Runner) exec(ctx context.Context, manifest *graph.Manifest, start string, state map[string]interface{}, opts ...RunOption) (*Result, error) {
	cfg := runConfig{maxSteps: r.maxSteps}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threadID == "" {
		cfg.threadID = uuid.New().String()
	}

	graphID := manifest.GraphID
	version := ""
	if v, ok := r.graphs.Versions().Latest(graphID); ok {
		version = v.Version
	}

	if state == nil {
		state = make(map[string]interface{})
	} else {
		state = copyState(state)
	}

	logger := r.logger.With().
		Str("thread_id", cfg.threadID).
		Str("graph_id", graphID).
		Logger()
	logger.Info().
		Str("start_node", start).
		Int("max_steps", cfg.maxSteps).
		Msg("Starting run")

	ctx = telemetry.WithExecutionContext(ctx, cfg.threadID, graphID, version)

	if r.executions != nil {
		r.executions.RecordStart(cfg.threadID, graphID, version)
	}

	started := time.Now()
	result := &Result{
		ThreadID:     cfg.threadID,
		GraphID:      graphID,
		GraphVersion: version,
		FinalState:   state,
	}

	var lastCheckpointID string
	current := start

	for current != "" {
		if ctx.Err() != nil {
			return r.finishInterrupted(ctx, logger, result, started)
		}
		if result.Steps >= cfg.maxSteps {
			return r.finishTimedOut(ctx, logger, result, started)
		}

		node := current
		updates, err := r.runNode(ctx, cfg.threadID, graphID, node, state)
		if err != nil {
			return r.finishFailed(ctx, logger, result, started, node, err)
		}

		for k, v := range updates {
			state[k] = v
		}
		result.FinalState = state
		result.NodesExecuted = append(result.NodesExecuted, node)
		result.Steps++

		if r.executions != nil {
			r.executions.RecordNode(cfg.threadID, node)
		}
		if r.checkpoints != nil {
			cp := checkpoint.New(cfg.threadID, graphID, node, copyState(state))
			cp.ParentID = lastCheckpointID
			err := telemetry.RecordCheckpointOperation(ctx, cfg.threadID, "save", func() error {
				return r.checkpoints.Put(ctx, cp)
			})
			if err != nil {
				return r.finishFailed(ctx, logger, result, started, node,
					graph.NewTransientError("failed to save checkpoint", err).
						WithCode(graph.ErrCodeStoreFailed))
			}
			lastCheckpointID = cp.ID
			if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
				_ = tel.Events.PublishCheckpointSaved(cfg.threadID, graphID, node, cp.ID)
			}
		}
		if r.states != nil {
			snap := registry.NewSnapshot(cfg.threadID, node, state)
			snap.CheckpointID = lastCheckpointID
			r.states.Record(snap)
			if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
				tel.Metrics.RecordSnapshot(graphID, snap.SizeBytes)
				_ = tel.Events.PublishSnapshotRecorded(cfg.threadID, graphID, node, snap.SizeBytes)
			}
		}

		next, err := r.route(manifest, node, state)
		if err != nil {
			return r.finishFailed(ctx, logger, result, started, node, err)
		}
		current = next
	}

	result.Status = registry.StatusCompleted
	result.Duration = time.Since(started)
	if r.executions != nil {
		r.executions.RecordCompletion(result.ThreadID, copyState(state))
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil && tel.Traces != nil {
		tel.Traces.SetFinalState(result.ThreadID, copyState(state))
	}
	telemetry.EndExecutionContext(ctx, result.ThreadID, result.GraphID, string(registry.StatusCompleted), nil)
	logger.Info().
		Int("steps", result.Steps).
		Dur("duration", result.Duration).
		Msg("Run completed")
	return result, nil
}

// runNode invokes the handler bound to a node inside a node telemetry
// context.
func (r *Runner) runNode(ctx context.Context, threadID, graphID, node string, state map[string]interface{}) (map[string]interface{}, error) {
	h, ok := r.Handler(node)
	if !ok {
		return nil, graph.NewPermanentError(fmt.Sprintf("no handler registered for node: %s", node), nil).
			WithCode(graph.ErrCodeValidation).
			WithNode(node)
	}

	nodeCtx := telemetry.WithNodeContext(ctx, threadID, graphID, node)
	updates, err := h(nodeCtx, copyState(state))
	if err != nil {
		telemetry.EndNodeContext(nodeCtx, threadID, graphID, node, "error", err)
		return nil, err
	}
	telemetry.EndNodeContext(nodeCtx, threadID, graphID, node, "ok", nil)
	return updates, nil
}

// route picks the next node from a node's outgoing edges. Edges are
// considered in declaration order: a conditional edge is taken when its
// condition evaluates true, an unconditional edge is always taken.
// Returns "" when no edge matches.
func (r *Runner) route(manifest *graph.Manifest, node string, state map[string]interface{}) (string, error) {
	for _, edge := range manifest.OutgoingEdges(node) {
		if !edge.Conditional {
			return edge.To, nil
		}
		matched, err := graph.EvalCondition(edge.Condition, state)
		if err != nil {
			return "", err
		}
		if matched {
			return edge.To, nil
		}
	}
	return "", nil
}

func (r *Runner) finishFailed(ctx context.Context, logger zerolog.Logger, result *Result, started time.Time, node string, err error) (*Result, error) {
	result.Status = registry.StatusFailed
	result.Duration = time.Since(started)
	result.Err = err
	if r.executions != nil {
		r.executions.RecordFailure(result.ThreadID, err.Error())
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		var gerr *graph.Error
		if errors.As(err, &gerr) {
			tel.Metrics.RecordError(string(gerr.Class), gerr.Code)
		}
	}
	telemetry.EndExecutionContext(ctx, result.ThreadID, result.GraphID, string(registry.StatusFailed), err)
	logger.Error().Err(err).Str("node", node).Msg("Run failed")
	return result, err
}

func (r *Runner) finishInterrupted(ctx context.Context, logger zerolog.Logger, result *Result, started time.Time) (*Result, error) {
	result.Status = registry.StatusInterrupted
	result.Duration = time.Since(started)
	result.Err = ctx.Err()
	if r.executions != nil {
		r.executions.RecordInterrupt(result.ThreadID)
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		_ = tel.Events.PublishExecutionInterrupted(result.ThreadID, result.GraphID)
	}
	telemetry.EndExecutionContext(ctx, result.ThreadID, result.GraphID, string(registry.StatusInterrupted), ctx.Err())
	logger.Warn().Int("steps", result.Steps).Msg("Run interrupted")
	return result, ctx.Err()
}

func (r *Runner) finishTimedOut(ctx context.Context, logger zerolog.Logger, result *Result, started time.Time) (*Result, error) {
	result.Status = registry.StatusTimedOut
	result.Duration = time.Since(started)
	err := graph.NewPermanentError(fmt.Sprintf("run exceeded step limit after %d steps", result.Steps), nil).
		WithCode(graph.ErrCodeTimeout)
	result.Err = err
	if r.executions != nil {
		r.executions.RecordTimeout(result.ThreadID)
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		_ = tel.Events.PublishExecutionTimedOut(result.ThreadID, result.GraphID, result.Steps)
	}
	telemetry.EndExecutionContext(ctx, result.ThreadID, result.GraphID, string(registry.StatusTimedOut), err)
	logger.Warn().Int("steps", result.Steps).Msg("Run exceeded step limit")
	return result, err
}

func copyState(state map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}
