package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted during graph execution.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ThreadID is the associated execution thread, if applicable.
	ThreadID string `json:"thread_id,omitempty"`

	// GraphID is the associated graph, if applicable.
	GraphID string `json:"graph_id,omitempty"`

	// Node is the associated node, if applicable.
	Node string `json:"node,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeExecutionStarted     = "execution.started"
	EventTypeExecutionCompleted   = "execution.completed"
	EventTypeExecutionFailed      = "execution.failed"
	EventTypeExecutionInterrupted = "execution.interrupted"
	EventTypeExecutionTimedOut    = "execution.timed_out"
	EventTypeNodeStarted          = "node.started"
	EventTypeNodeCompleted        = "node.completed"
	EventTypeNodeFailed           = "node.failed"
	EventTypeVersionRegistered    = "version.registered"
	EventTypeSnapshotRecorded     = "snapshot.recorded"
	EventTypeCheckpointSaved      = "checkpoint.saved"
	EventTypeError                = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishExecutionStarted publishes an execution started event.
func (ep *EventPublisher) PublishExecutionStarted(threadID, graphID, graphVersion string) error {
	return ep.Publish(Event{
		Type:     EventTypeExecutionStarted,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Message:  fmt.Sprintf("Execution %s started on graph %s", threadID, graphID),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"graph_version": graphVersion,
		},
	})
}

// PublishExecutionCompleted publishes an execution completed event.
func (ep *EventPublisher) PublishExecutionCompleted(threadID, graphID string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:     EventTypeExecutionCompleted,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Message:  fmt.Sprintf("Execution %s completed", threadID),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishExecutionFailed publishes an execution failed event.
func (ep *EventPublisher) PublishExecutionFailed(threadID, graphID, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeExecutionFailed,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Message:  fmt.Sprintf("Execution %s failed: %s", threadID, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishExecutionInterrupted publishes an execution interrupted event.
func (ep *EventPublisher) PublishExecutionInterrupted(threadID, graphID string) error {
	return ep.Publish(Event{
		Type:     EventTypeExecutionInterrupted,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Message:  fmt.Sprintf("Execution %s interrupted", threadID),
		Level:    EventLevelWarning,
	})
}

// PublishExecutionTimedOut publishes an execution timed out event.
func (ep *EventPublisher) PublishExecutionTimedOut(threadID, graphID string, steps int) error {
	return ep.Publish(Event{
		Type:     EventTypeExecutionTimedOut,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Message:  fmt.Sprintf("Execution %s exceeded its step limit", threadID),
		Level:    EventLevelWarning,
		Data: map[string]interface{}{
			"steps": steps,
		},
	})
}

// PublishNodeStarted publishes a node started event.
func (ep *EventPublisher) PublishNodeStarted(threadID, graphID, node string) error {
	return ep.Publish(Event{
		Type:     EventTypeNodeStarted,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Node:     node,
		Message:  fmt.Sprintf("Node %s started", node),
		Level:    EventLevelInfo,
	})
}

// PublishNodeCompleted publishes a node completed event.
func (ep *EventPublisher) PublishNodeCompleted(threadID, graphID, node string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:     EventTypeNodeCompleted,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Node:     node,
		Message:  fmt.Sprintf("Node %s completed", node),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishNodeFailed publishes a node failed event.
func (ep *EventPublisher) PublishNodeFailed(threadID, graphID, node, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeNodeFailed,
		Source:   "engine",
		ThreadID: threadID,
		GraphID:  graphID,
		Node:     node,
		Message:  fmt.Sprintf("Node %s failed: %s", node, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishVersionRegistered publishes a version registered event.
func (ep *EventPublisher) PublishVersionRegistered(graphID, version, contentHash string) error {
	return ep.Publish(Event{
		Type:    EventTypeVersionRegistered,
		Source:  "registry",
		GraphID: graphID,
		Message: fmt.Sprintf("Graph %s registered version %s", graphID, version),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"version":      version,
			"content_hash": contentHash,
		},
	})
}

// PublishSnapshotRecorded publishes a snapshot recorded event.
func (ep *EventPublisher) PublishSnapshotRecorded(threadID, graphID, node string, sizeBytes int) error {
	return ep.Publish(Event{
		Type:     EventTypeSnapshotRecorded,
		Source:   "registry",
		ThreadID: threadID,
		GraphID:  graphID,
		Node:     node,
		Message:  fmt.Sprintf("Snapshot recorded for %s after node %s", threadID, node),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"size_bytes": sizeBytes,
		},
	})
}

// PublishCheckpointSaved publishes a checkpoint saved event.
func (ep *EventPublisher) PublishCheckpointSaved(threadID, graphID, node, checkpointID string) error {
	return ep.Publish(Event{
		Type:     EventTypeCheckpointSaved,
		Source:   "checkpoint",
		ThreadID: threadID,
		GraphID:  graphID,
		Node:     node,
		Message:  fmt.Sprintf("Checkpoint saved for %s after node %s", threadID, node),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"checkpoint_id": checkpointID,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Drain the buffer and flush everything before shutting down
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						ep.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers, synchronously and
// in publish order. Subscribers that fold events into per-thread state
// (the trace unifier) rely on node events arriving in the order they
// were published.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	entries := make([]subscriberEntry, len(ep.subscribers))
	copy(entries, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range entries {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByThreadID creates a filter that only allows events for a specific execution.
func FilterByThreadID(threadID string) EventFilter {
	return func(event Event) bool {
		return event.ThreadID == threadID
	}
}

// FilterByGraphID creates a filter that only allows events for a specific graph.
func FilterByGraphID(graphID string) EventFilter {
	return func(event Event) bool {
		return event.GraphID == graphID
	}
}
