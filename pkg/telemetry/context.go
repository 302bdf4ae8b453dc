package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher

	// Traces folds the event stream into per-thread execution traces.
	Traces *Unifier

	Config *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Traces:  NewUnifier(events),
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithExecutionContext creates a context enriched with execution-specific telemetry.
func WithExecutionContext(ctx context.Context, threadID, graphID, graphVersion string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start execution span
	spanCtx, span := tel.Tracer.StartExecutionSpan(ctx, threadID, graphID)

	// Create execution-specific logger
	logger := tel.Logger.WithThreadID(threadID).WithGraphID(graphID)
	spanCtx = logger.WithContext(spanCtx)

	// Record execution started metric
	tel.Metrics.RecordExecutionStarted(graphID)

	// Publish execution started event
	_ = tel.Events.PublishExecutionStarted(threadID, graphID, graphVersion)

	// Store the span in context for later retrieval
	spanCtx = context.WithValue(spanCtx, executionSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, executionTimerKey{}, NewTimer())

	return spanCtx
}

// executionSpanKey is the context key for execution spans.
type executionSpanKey struct{}

// executionTimerKey is the context key for execution timers.
type executionTimerKey struct{}

// EndExecutionContext completes the execution context, recording metrics and events.
func EndExecutionContext(ctx context.Context, threadID, graphID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the execution span from context
	if span, ok := ctx.Value(executionSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrExecutionStatus.String(status))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	var duration time.Duration
	if timer, ok := ctx.Value(executionTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	// Record metrics
	tel.Metrics.RecordExecutionCompleted(graphID, status, duration)

	// Publish events
	if err != nil {
		_ = tel.Events.PublishExecutionFailed(threadID, graphID, err.Error())
	} else {
		_ = tel.Events.PublishExecutionCompleted(threadID, graphID, duration)
	}
}

// WithNodeContext creates a context enriched with node-specific telemetry.
func WithNodeContext(ctx context.Context, threadID, graphID, node string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start node span
	spanCtx, span := tel.Tracer.StartNodeSpan(ctx, threadID, node)

	// Create node-specific logger
	logger := tel.Logger.
		WithThreadID(threadID).
		WithGraphID(graphID).
		WithNode(node)
	spanCtx = logger.WithContext(spanCtx)

	// Publish node started event
	_ = tel.Events.PublishNodeStarted(threadID, graphID, node)

	// Store the span and timer in context
	spanCtx = context.WithValue(spanCtx, nodeSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, nodeTimerKey{}, NewTimer())

	return spanCtx
}

// nodeSpanKey is the context key for node spans.
type nodeSpanKey struct{}

// nodeTimerKey is the context key for node timers.
type nodeTimerKey struct{}

// EndNodeContext completes the node context, recording metrics and events.
func EndNodeContext(ctx context.Context, threadID, graphID, node, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the span from context
	if span, ok := ctx.Value(nodeSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	var duration time.Duration
	if timer, ok := ctx.Value(nodeTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	// Record metrics
	tel.Metrics.RecordNodeExecution(graphID, node, status, duration)

	// Publish events
	if err != nil {
		_ = tel.Events.PublishNodeFailed(threadID, graphID, node, err.Error())
	} else {
		_ = tel.Events.PublishNodeCompleted(threadID, graphID, node, duration)
	}
}

// RecordCheckpointOperation records a checkpoint store operation with metrics and tracing.
func RecordCheckpointOperation(ctx context.Context, threadID, operation string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	// Start span
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartCheckpointSpan(ctx, threadID, operation)
		defer span.End()
	}

	// Start timer
	timer := NewTimer()

	// Execute operation
	err := fn()

	// Record metrics
	if tel != nil {
		duration := timer.Duration()
		status := "ok"
		if err != nil {
			status = "error"
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		tel.Metrics.RecordCheckpointOp(operation, status, duration)
	}

	return err
}
