package telemetry

import (
	"encoding/json"
	"time"
)

// ExecutionTrace is the complete recorded history of a single graph
// execution: every node that ran, how long it took, token usage, and any
// errors encountered. Traces are the raw material for debugging and
// self-analysis workflows.
type ExecutionTrace struct {
	// ThreadID is the execution thread this trace belongs to.
	ThreadID string `json:"thread_id,omitempty"`

	// ExecutionID uniquely identifies this trace.
	ExecutionID string `json:"execution_id,omitempty"`

	// GraphID is the graph that was executed.
	GraphID string `json:"graph_id,omitempty"`

	// GraphVersion is the registered version of the graph, if known.
	GraphVersion string `json:"graph_version,omitempty"`

	// NodesExecuted lists every node execution in order.
	NodesExecuted []NodeExecution `json:"nodes_executed"`

	// TotalDuration is the wall-clock duration of the whole execution.
	TotalDuration time.Duration `json:"total_duration"`

	// TotalTokens is the token usage summed across all nodes.
	TotalTokens uint64 `json:"total_tokens"`

	// Errors lists every error encountered during the execution.
	Errors []ErrorTrace `json:"errors"`

	// Completed reports whether the execution reached a normal end.
	Completed bool `json:"completed"`

	// StartedAt is when the execution began.
	StartedAt time.Time `json:"started_at,omitempty"`

	// EndedAt is when the execution finished, zero while still running.
	EndedAt time.Time `json:"ended_at,omitempty"`

	// FinalState is the state at the end of the execution, if captured.
	FinalState map[string]interface{} `json:"final_state,omitempty"`

	// Metadata holds custom trace annotations.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NodeExecution records a single execution of one graph node.
type NodeExecution struct {
	// Node is the node name.
	Node string `json:"node"`

	// Duration is how long the node ran.
	Duration time.Duration `json:"duration"`

	// TokensUsed is the token usage attributed to this execution.
	TokensUsed uint64 `json:"tokens_used"`

	// Success reports whether the node completed without error.
	Success bool `json:"success"`

	// ErrorMessage is set when the node failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// Index is the position of this execution within the trace.
	Index int `json:"index"`

	// StartedAt is when the node execution began.
	StartedAt time.Time `json:"started_at,omitempty"`
}

// ErrorTrace records an error that occurred during execution.
type ErrorTrace struct {
	// Node is where the error occurred.
	Node string `json:"node"`

	// Message is the error message.
	Message string `json:"message"`

	// ErrorType categorizes the error, e.g. an error code or class.
	ErrorType string `json:"error_type,omitempty"`

	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// ExecutionIndex is the node execution index at which the error hit.
	ExecutionIndex int `json:"execution_index"`
}

// NewExecutionTrace creates an empty trace for the given thread.
func NewExecutionTrace(threadID string) *ExecutionTrace {
	return &ExecutionTrace{
		ThreadID: threadID,
		Metadata: make(map[string]interface{}),
	}
}

// ToJSON serializes the trace to indented JSON.
func (t *ExecutionTrace) ToJSON() (string, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TraceFromJSON parses a trace from its JSON representation.
func TraceFromJSON(data []byte) (*ExecutionTrace, error) {
	var t ExecutionTrace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// NodeCount returns the number of node executions in the trace.
func (t *ExecutionTrace) NodeCount() int {
	return len(t.NodesExecuted)
}

// ErrorCount returns the number of recorded errors.
func (t *ExecutionTrace) ErrorCount() int {
	return len(t.Errors)
}

// HasErrors reports whether the execution hit any errors.
func (t *ExecutionTrace) HasErrors() bool {
	return len(t.Errors) > 0
}

// IsSuccessful reports whether the execution completed without errors.
func (t *ExecutionTrace) IsSuccessful() bool {
	return t.Completed && len(t.Errors) == 0
}

// SlowestNode returns the node execution with the longest duration, or
// nil when the trace is empty.
func (t *ExecutionTrace) SlowestNode() *NodeExecution {
	var slowest *NodeExecution
	for i := range t.NodesExecuted {
		if slowest == nil || t.NodesExecuted[i].Duration > slowest.Duration {
			slowest = &t.NodesExecuted[i]
		}
	}
	return slowest
}

// MostExpensiveNode returns the node execution that used the most tokens,
// or nil when the trace is empty.
func (t *ExecutionTrace) MostExpensiveNode() *NodeExecution {
	var expensive *NodeExecution
	for i := range t.NodesExecuted {
		if expensive == nil || t.NodesExecuted[i].TokensUsed > expensive.TokensUsed {
			expensive = &t.NodesExecuted[i]
		}
	}
	return expensive
}

// NodeExecutionFor returns the first execution of the named node, or nil.
func (t *ExecutionTrace) NodeExecutionFor(node string) *NodeExecution {
	for i := range t.NodesExecuted {
		if t.NodesExecuted[i].Node == node {
			return &t.NodesExecuted[i]
		}
	}
	return nil
}

// AllNodeExecutions returns every execution of the named node. Nodes
// revisited by loops appear once per visit.
func (t *ExecutionTrace) AllNodeExecutions(node string) []NodeExecution {
	var out []NodeExecution
	for _, n := range t.NodesExecuted {
		if n.Node == node {
			out = append(out, n)
		}
	}
	return out
}

// NodeExecutionCount returns how many times the named node ran.
func (t *ExecutionTrace) NodeExecutionCount(node string) int {
	count := 0
	for _, n := range t.NodesExecuted {
		if n.Node == node {
			count++
		}
	}
	return count
}

// TotalTimeInNode returns the summed duration of all executions of the
// named node.
func (t *ExecutionTrace) TotalTimeInNode(node string) time.Duration {
	var total time.Duration
	for _, n := range t.NodesExecuted {
		if n.Node == node {
			total += n.Duration
		}
	}
	return total
}

// TotalTokensInNode returns the summed token usage of the named node.
func (t *ExecutionTrace) TotalTokensInNode(node string) uint64 {
	var total uint64
	for _, n := range t.NodesExecuted {
		if n.Node == node {
			total += n.TokensUsed
		}
	}
	return total
}

// ErrorsForNode returns the errors recorded against the named node.
func (t *ExecutionTrace) ErrorsForNode(node string) []ErrorTrace {
	var out []ErrorTrace
	for _, e := range t.Errors {
		if e.Node == node {
			out = append(out, e)
		}
	}
	return out
}

// UniqueNodes returns the distinct node names in first-execution order.
func (t *ExecutionTrace) UniqueNodes() []string {
	seen := make(map[string]struct{}, len(t.NodesExecuted))
	var out []string
	for _, n := range t.NodesExecuted {
		if _, ok := seen[n.Node]; ok {
			continue
		}
		seen[n.Node] = struct{}{}
		out = append(out, n.Node)
	}
	return out
}

// AverageNodeDuration returns the mean node execution duration, zero for
// an empty trace.
func (t *ExecutionTrace) AverageNodeDuration() time.Duration {
	if len(t.NodesExecuted) == 0 {
		return 0
	}
	var total time.Duration
	for _, n := range t.NodesExecuted {
		total += n.Duration
	}
	return total / time.Duration(len(t.NodesExecuted))
}

// TimeBreakdown returns the percentage of total execution time spent in
// each node. Returns an empty map when the total duration is zero.
func (t *ExecutionTrace) TimeBreakdown() map[string]float64 {
	result := make(map[string]float64)
	if t.TotalDuration == 0 {
		return result
	}
	for _, n := range t.NodesExecuted {
		result[n.Node] += float64(n.Duration) / float64(t.TotalDuration) * 100.0
	}
	return result
}

// TokenBreakdown returns the percentage of total token usage attributed
// to each node. Returns an empty map when no tokens were used.
func (t *ExecutionTrace) TokenBreakdown() map[string]float64 {
	result := make(map[string]float64)
	if t.TotalTokens == 0 {
		return result
	}
	for _, n := range t.NodesExecuted {
		result[n.Node] += float64(n.TokensUsed) / float64(t.TotalTokens) * 100.0
	}
	return result
}
