package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/flowgraph/flowgraph/pkg/graph"
)

// Unifier folds the event stream into per-thread execution traces. It
// subscribes to an EventPublisher and maintains a live ExecutionTrace for
// every thread it sees, so callers can reconstruct a full execution
// history from the same events that feed metrics and logs.
type Unifier struct {
	mu     sync.RWMutex
	traces map[string]*unifiedTrace
}

type unifiedTrace struct {
	trace     ExecutionTrace
	nodeStart map[string]time.Time
}

// NewUnifier creates a unifier and subscribes it to the publisher. Events
// without a thread ID are ignored.
func NewUnifier(events *EventPublisher) *Unifier {
	u := &Unifier{
		traces: make(map[string]*unifiedTrace),
	}
	if events != nil {
		events.Subscribe(u.handleEvent, nil)
	}
	return u
}

// Trace returns a snapshot of the trace for the given thread.
func (u *Unifier) Trace(threadID string) (*ExecutionTrace, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	ut, ok := u.traces[threadID]
	if !ok {
		return nil, graph.NewPermanentError(fmt.Sprintf("no trace for thread %s", threadID), nil).
			WithCode(graph.ErrCodeNotFound)
	}
	snapshot := cloneTrace(&ut.trace)
	return snapshot, nil
}

// Traces returns snapshots of all known traces.
func (u *Unifier) Traces() []*ExecutionTrace {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make([]*ExecutionTrace, 0, len(u.traces))
	for _, ut := range u.traces {
		out = append(out, cloneTrace(&ut.trace))
	}
	return out
}

// ThreadIDs returns the thread IDs the unifier has seen.
func (u *Unifier) ThreadIDs() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	ids := make([]string, 0, len(u.traces))
	for id := range u.traces {
		ids = append(ids, id)
	}
	return ids
}

// Remove discards the trace for the given thread.
func (u *Unifier) Remove(threadID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.traces, threadID)
}

// Clear discards all traces.
func (u *Unifier) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.traces = make(map[string]*unifiedTrace)
}

func (u *Unifier) handleEvent(event Event) {
	if event.ThreadID == "" {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	ut, ok := u.traces[event.ThreadID]
	if !ok {
		ut = &unifiedTrace{
			trace: ExecutionTrace{
				ThreadID: event.ThreadID,
				Metadata: make(map[string]interface{}),
			},
			nodeStart: make(map[string]time.Time),
		}
		u.traces[event.ThreadID] = ut
	}
	if event.GraphID != "" {
		ut.trace.GraphID = event.GraphID
	}

	switch event.Type {
	case EventTypeExecutionStarted:
		ut.trace.ExecutionID = event.ID
		ut.trace.StartedAt = event.Timestamp
		if v, ok := event.Data["graph_version"].(string); ok {
			ut.trace.GraphVersion = v
		}

	case EventTypeExecutionCompleted:
		ut.trace.Completed = true
		u.finalize(ut, event)

	case EventTypeExecutionFailed, EventTypeExecutionInterrupted, EventTypeExecutionTimedOut:
		ut.trace.Completed = false
		u.finalize(ut, event)

	case EventTypeNodeStarted:
		ut.nodeStart[event.Node] = event.Timestamp

	case EventTypeNodeCompleted:
		ut.trace.NodesExecuted = append(ut.trace.NodesExecuted, NodeExecution{
			Node:      event.Node,
			Duration:  eventDuration(event),
			Success:   true,
			Index:     len(ut.trace.NodesExecuted),
			StartedAt: ut.nodeStart[event.Node],
		})
		delete(ut.nodeStart, event.Node)

	case EventTypeNodeFailed:
		reason, _ := event.Data["reason"].(string)
		ut.trace.NodesExecuted = append(ut.trace.NodesExecuted, NodeExecution{
			Node:         event.Node,
			Success:      false,
			ErrorMessage: reason,
			Index:        len(ut.trace.NodesExecuted),
			StartedAt:    ut.nodeStart[event.Node],
		})
		ut.trace.Errors = append(ut.trace.Errors, ErrorTrace{
			Node:           event.Node,
			Message:        reason,
			Timestamp:      event.Timestamp,
			ExecutionIndex: len(ut.trace.NodesExecuted) - 1,
		})
		delete(ut.nodeStart, event.Node)
	}
}

// finalize closes out a trace on a terminal execution event.
func (u *Unifier) finalize(ut *unifiedTrace, event Event) {
	ut.trace.EndedAt = event.Timestamp
	if !ut.trace.StartedAt.IsZero() {
		ut.trace.TotalDuration = event.Timestamp.Sub(ut.trace.StartedAt)
	}
	if reason, ok := event.Data["reason"].(string); ok && event.Type == EventTypeExecutionFailed {
		if len(ut.trace.Errors) == 0 {
			ut.trace.Errors = append(ut.trace.Errors, ErrorTrace{
				Node:      event.Node,
				Message:   reason,
				Timestamp: event.Timestamp,
			})
		}
	}
	var tokens uint64
	for _, n := range ut.trace.NodesExecuted {
		tokens += n.TokensUsed
	}
	if tokens > 0 {
		ut.trace.TotalTokens = tokens
	}
}

// RecordTokens attributes token usage to the most recent execution of the
// named node and updates the trace total. Token counts are not part of
// the event payloads, so callers that track model usage report them here.
func (u *Unifier) RecordTokens(threadID, node string, tokens uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	ut, ok := u.traces[threadID]
	if !ok {
		return
	}
	for i := len(ut.trace.NodesExecuted) - 1; i >= 0; i-- {
		if ut.trace.NodesExecuted[i].Node == node {
			ut.trace.NodesExecuted[i].TokensUsed += tokens
			break
		}
	}
	ut.trace.TotalTokens += tokens
}

// SetFinalState attaches the final state snapshot to a thread's trace.
func (u *Unifier) SetFinalState(threadID string, state map[string]interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()

	ut, ok := u.traces[threadID]
	if !ok {
		return
	}
	ut.trace.FinalState = state
}

func eventDuration(event Event) time.Duration {
	if secs, ok := event.Data["duration"].(float64); ok {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

func cloneTrace(t *ExecutionTrace) *ExecutionTrace {
	out := *t
	out.NodesExecuted = append([]NodeExecution(nil), t.NodesExecuted...)
	out.Errors = append([]ErrorTrace(nil), t.Errors...)
	if t.FinalState != nil {
		out.FinalState = make(map[string]interface{}, len(t.FinalState))
		for k, v := range t.FinalState {
			out.FinalState[k] = v
		}
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
