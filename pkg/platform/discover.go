package platform

import "time"

// FrameworkVersion is the version reported by Discover.
const FrameworkVersion = "0.4.0"

// Discover builds the registry describing the framework itself: its
// modules, their public operations, and the features they provide.
func Discover() *Registry {
	modules := []ModuleInfo{
		{
			Name:        "graph",
			Description: "Graph manifests, structural analysis, content hashing, and DOT rendering",
			APIs: []APIInfo{
				{
					Name:        "graph.Analyze",
					Description: "Validate a manifest and compute execution levels",
					Signature:   "func Analyze(m *Manifest) (*Analysis, error)",
					Example:     `analysis, err := graph.Analyze(manifest)`,
				},
				{
					Name:        "graph.ContentHash",
					Description: "Compute the 16-hex structural hash of a manifest",
					Signature:   "func ContentHash(m *Manifest) string",
					Example:     `hash := graph.ContentHash(manifest)`,
				},
				{
					Name:        "graph.ToDOT",
					Description: "Render a manifest as a Graphviz DOT document",
					Signature:   "func ToDOT(m *Manifest) (string, error)",
				},
				{
					Name:        "graph.ParseDOT",
					Description: "Parse a Graphviz DOT document into a manifest",
					Signature:   "func ParseDOT(input string) (*Manifest, error)",
				},
				{
					Name:        "graph.EvalCondition",
					Description: "Evaluate an edge condition expression against the state",
					Signature:   "func EvalCondition(condition string, state map[string]interface{}) (bool, error)",
					Example:     `take, err := graph.EvalCondition("score > 0.5", state)`,
				},
				{
					Name:        "graph.ParseManifestYAML",
					Description: "Parse a YAML graph manifest",
					Signature:   "func ParseManifestYAML(data []byte) (*Manifest, error)",
				},
			},
		},
		{
			Name:        "registry",
			Description: "Graph, version, execution, and state snapshot registries",
			APIs: []APIInfo{
				{
					Name:        "GraphRegistry.Register",
					Description: "Validate and register a manifest, capturing a version on change",
					Signature:   "func (reg *GraphRegistry) Register(m *graph.Manifest) error",
					Example:     `err := graphs.Register(manifest)`,
				},
				{
					Name:        "VersionStore.Latest",
					Description: "Return the most recent version of a graph",
					Signature:   "func (s *VersionStore) Latest(graphID string) (Version, bool)",
				},
				{
					Name:        "VersionStore.History",
					Description: "Return a graph's versions, newest first, up to a limit",
					Signature:   "func (s *VersionStore) History(graphID string, limit int) []Version",
				},
				{
					Name:        "Version.Diff",
					Description: "Compare two versions node by node",
					Signature:   "func (v *Version) Diff(other *Version) VersionDiff",
				},
				{
					Name:        "ExecutionRegistry.RecordStart",
					Description: "Register the start of a graph execution",
					Signature:   "func (reg *ExecutionRegistry) RecordStart(threadID, graphID, graphVersion string)",
				},
				{
					Name:        "ExecutionRegistry.ListRecent",
					Description: "Return recent executions, newest first",
					Signature:   "func (reg *ExecutionRegistry) ListRecent(limit int) []ExecutionRecord",
				},
				{
					Name:        "ExecutionRegistry.SuccessRate",
					Description: "Return the fraction of terminal executions that completed",
					Signature:   "func (reg *ExecutionRegistry) SuccessRate() float64",
				},
				{
					Name:        "StateRegistry.Record",
					Description: "Append a state snapshot to a thread's history",
					Signature:   "func (reg *StateRegistry) Record(snapshot Snapshot)",
				},
				{
					Name:        "StateRegistry.Diffs",
					Description: "Diff consecutive snapshots of a thread",
					Signature:   "func (reg *StateRegistry) Diffs(threadID string) []StateDiff",
				},
				{
					Name:        "Loader.LoadFromPaths",
					Description: "Load and register manifests from files or directories",
					Signature:   "func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]*graph.Manifest, error)",
				},
			},
		},
		{
			Name:        "checkpoint",
			Description: "Durable execution checkpoints with pluggable backends",
			APIs: []APIInfo{
				{
					Name:        "Checkpointer.Put",
					Description: "Persist a checkpoint for a thread",
					Signature:   "func Put(ctx context.Context, cp Checkpoint) error",
					Example:     `err := store.Put(ctx, checkpoint)`,
				},
				{
					Name:        "Checkpointer.Get",
					Description: "Load a specific checkpoint of a thread",
					Signature:   "func Get(ctx context.Context, threadID, id string) (Checkpoint, error)",
				},
				{
					Name:        "Checkpointer.Latest",
					Description: "Load the most recent checkpoint of a thread",
					Signature:   "func Latest(ctx context.Context, threadID string) (Checkpoint, error)",
				},
				{
					Name:        "Checkpointer.List",
					Description: "List a thread's checkpoints, newest first",
					Signature:   "func List(ctx context.Context, threadID string) ([]Checkpoint, error)",
				},
				{
					Name:        "checkpoint.NewSQLiteStore",
					Description: "Open a SQLite-backed checkpoint store",
					Signature:   "func NewSQLiteStore(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteStore, error)",
				},
				{
					Name:        "checkpoint.NewRedisStore",
					Description: "Connect a Redis-backed checkpoint store",
					Signature:   "func NewRedisStore(ctx context.Context, url string, ttl time.Duration, logger zerolog.Logger) (*RedisStore, error)",
				},
			},
		},
		{
			Name:        "telemetry",
			Description: "Structured logging, tracing, metrics, events, and execution traces",
			APIs: []APIInfo{
				{
					Name:        "telemetry.NewLogger",
					Description: "Create a structured logger",
					Signature:   "func NewLogger(cfg LoggingConfig) (*Logger, error)",
				},
				{
					Name:        "telemetry.NewTracer",
					Description: "Create an OpenTelemetry tracer",
					Signature:   "func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error)",
				},
				{
					Name:        "telemetry.NewMetrics",
					Description: "Register Prometheus collectors for executions and nodes",
					Signature:   "func NewMetrics(cfg MetricsConfig) (*Metrics, error)",
				},
				{
					Name:        "EventPublisher.Publish",
					Description: "Publish a lifecycle event to subscribers",
					Signature:   "func (ep *EventPublisher) Publish(event Event) error",
				},
				{
					Name:        "Unifier.Trace",
					Description: "Assemble the unified trace of an execution",
					Signature:   "func (u *Unifier) Trace(threadID string) (*ExecutionTrace, error)",
				},
			},
		},
		{
			Name:        "engine",
			Description: "Graph execution runner with routing, snapshots, and checkpoints",
			APIs: []APIInfo{
				{
					Name:        "Runner.Run",
					Description: "Execute a registered graph from its entry point",
					Signature:   "func (r *Runner) Run(ctx context.Context, graphID string, state map[string]interface{}, opts ...RunOption) (*Result, error)",
					Example:     `result, err := runner.Run(ctx, "chat", initialState)`,
				},
				{
					Name:        "Runner.RegisterHandler",
					Description: "Bind a handler function to a node name",
					Signature:   "func (r *Runner) RegisterHandler(node string, h Handler)",
				},
			},
		},
	}

	features := []FeatureInfo{
		{
			Name:             "versioning",
			Summary:          "Automatic graph version capture",
			Description:      "Registering a manifest whose content hash changed records a new version with per-node hashes and diffs.",
			EnabledByDefault: true,
		},
		{
			Name:             "checkpointing",
			Summary:          "Durable execution state",
			Description:      "Execution state is checkpointed after each node so interrupted runs can resume.",
			EnabledByDefault: true,
			Backends:         []string{"memory", "sqlite", "redis"},
		},
		{
			Name:             "conditional-routing",
			Summary:          "Expression-gated edges",
			Description:      "Edges may carry boolean expressions evaluated against the state to pick the next node.",
			EnabledByDefault: true,
		},
		{
			Name:             "state-inspection",
			Summary:          "Snapshot history and diffs",
			Description:      "Per-thread state snapshots with field lookup, time travel, and structural diffs.",
			EnabledByDefault: true,
		},
		{
			Name:             "telemetry",
			Summary:          "Unified observability",
			Description:      "Structured logs, OpenTelemetry spans, Prometheus metrics, and lifecycle events joined into per-execution traces.",
			EnabledByDefault: true,
			Backends:         []string{"otlp-grpc", "stdout", "prometheus"},
		},
		{
			Name:             "hot-reload",
			Summary:          "Manifest directory watching",
			Description:      "The manifest loader can watch directories and re-register graphs on change.",
			EnabledByDefault: false,
		},
	}

	apiCount := 0
	for _, m := range modules {
		apiCount += len(m.APIs)
	}

	return &Registry{
		Version:  FrameworkVersion,
		Modules:  modules,
		Features: features,
		Metadata: Metadata{
			GeneratedAt:  time.Now().UTC(),
			ModuleCount:  len(modules),
			APICount:     apiCount,
			FeatureCount: len(features),
		},
	}
}
