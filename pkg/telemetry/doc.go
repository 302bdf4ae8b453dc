// Package telemetry provides observability instrumentation for graph
// executions.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring and debugging graph executions.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// A fifth component, the Unifier, joins logs, spans, metrics, and events
// for a single execution into one ExecutionTrace.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "flowgraph"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithThreadID("thread-123").WithGraphID("chat")
//	logger.Info("Starting execution")
//	logger.WithError(err).Error("Execution failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into execution flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("graph.id", graphID),
//	    attribute.String("node.name", node),
//	)
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track executions, nodes, tokens, and errors:
//
//	tel.Metrics.RecordExecutionStarted("chat")
//	tel.Metrics.RecordExecutionCompleted("chat", "completed", duration)
//	tel.Metrics.RecordNodeExecution("chat", "model", "ok", duration)
//	tel.Metrics.RecordTokens("chat", "model", 150)
//	tel.Metrics.RecordError("transient", "TIMEOUT")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishExecutionStarted(threadID, graphID, version)
//	tel.Events.PublishNodeCompleted(threadID, graphID, node, duration)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByThreadID,
// FilterByGraphID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Execution context
//	ctx = telemetry.WithExecutionContext(ctx, threadID, graphID, version)
//	defer telemetry.EndExecutionContext(ctx, threadID, graphID, status, err)
//
//	// Node context
//	ctx = telemetry.WithNodeContext(ctx, threadID, graphID, node)
//	defer telemetry.EndNodeContext(ctx, threadID, graphID, node, status, err)
//
//	// Checkpoint operation
//	err := telemetry.RecordCheckpointOperation(ctx, threadID, "save", func() error {
//	    return store.Put(ctx, checkpoint)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - flowgraph_executions_started_total{graph}
//   - flowgraph_executions_completed_total{graph,status}
//   - flowgraph_execution_duration_seconds{graph,status}
//   - flowgraph_nodes_executed_total{graph,node,status}
//   - flowgraph_node_duration_seconds{graph,node}
//   - flowgraph_tokens_used_total{graph,node}
//   - flowgraph_checkpoint_operations_total{operation,status}
//   - flowgraph_errors_by_class_total{class}
//   - flowgraph_snapshots_recorded_total{graph}
//   - flowgraph_active_executions
package telemetry
