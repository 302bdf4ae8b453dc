package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flowgraph/flowgraph/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "flowgraph"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("engine")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"thread_id": "thread-123",
		"graph_id":  "chat",
	})

	// Log at different levels
	logger.Debug("Starting execution")
	logger.Info("Node completed successfully")
	logger.Warn("Node took longer than expected")

	// Log with error
	err := fmt.Errorf("network timeout")
	logger.WithError(err).Error("Failed to reach model endpoint")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "execution.run")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("graph.id", "chat"),
		attribute.Int("graph.nodes", 5),
	)

	// Add event
	span.AddEvent("analysis.complete")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "node.model")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("node.name", "model"),
		attribute.String("node.type", "llm"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record execution metrics
	tel.Metrics.RecordExecutionStarted("chat")

	// Simulate execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordExecutionCompleted("chat", "completed", duration)

	// Record node metrics
	tel.Metrics.RecordNodeExecution("chat", "model", "ok", 25*time.Millisecond)

	// Record token usage
	tel.Metrics.RecordTokens("chat", "model", 150)

	// Record error metrics
	tel.Metrics.RecordError("transient", "TIMEOUT")

	// Record checkpoint activity
	tel.Metrics.RecordCheckpointOp("save", "ok", 2*time.Millisecond)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishExecutionStarted("thread-123", "chat", "1.0.0")
	tel.Events.PublishNodeStarted("thread-123", "chat", "model")
	tel.Events.PublishNodeCompleted("thread-123", "chat", "model", 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_executionInstrumentation demonstrates instrumenting a complete execution.
func Example_executionInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	// Keep stdout clean for the example output
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start execution context
	threadID := "thread-123"
	graphID := "chat"
	ctx = telemetry.WithExecutionContext(ctx, threadID, graphID, "1.0.0")

	// Execute graph (simulated)
	executeNode(ctx, threadID, graphID)

	// End execution context
	telemetry.EndExecutionContext(ctx, threadID, graphID, "completed", nil)

	fmt.Println("Execution instrumentation complete")
	// Output: Execution instrumentation complete
}

func executeNode(ctx context.Context, threadID, graphID string) {
	node := "model"

	ctx = telemetry.WithNodeContext(ctx, threadID, graphID, node)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Executing node")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End node context
	telemetry.EndNodeContext(ctx, threadID, graphID, node, "ok", nil)
}

// Example_checkpointInstrumentation demonstrates instrumenting checkpoint operations.
func Example_checkpointInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Record checkpoint operation
	err := telemetry.RecordCheckpointOperation(ctx, "thread-123", "save", func() error {
		// Simulate store write
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Checkpoint operation completed successfully")
	}

	// Output: Checkpoint operation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "manifest.validate",
		attribute.String("manifest.path", "/etc/flowgraph/graphs/chat.yaml"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Validating manifest")

	// Simulate validation
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Manifest validation complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only node failures)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Node failure: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeNodeFailed))

	// Publish various events
	tel.Events.PublishExecutionStarted("thread-123", "chat", "1.0.0") // Info - filtered by level filter
	tel.Events.PublishExecutionInterrupted("thread-123", "chat")      // Warning - passes level filter
	tel.Events.PublishNodeFailed("thread-123", "chat", "model", "timeout")

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "flowgraph"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "flowgraph"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "node.model")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("connection timeout")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("transient", "TIMEOUT")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Node failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	engineLogger := tel.Logger.NewComponentLogger("engine")
	registryLogger := tel.Logger.NewComponentLogger("registry")
	checkpointLogger := tel.Logger.NewComponentLogger("checkpoint")

	engineLogger.Info("Engine initialized")
	registryLogger.Info("Loading graph manifests")
	checkpointLogger.Info("Opening checkpoint store")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
