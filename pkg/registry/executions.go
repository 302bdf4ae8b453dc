package registry

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle status of a graph execution.
type Status string

const (
	// StatusRunning means the execution is in progress.
	StatusRunning Status = "running"

	// StatusCompleted means the execution finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed means the execution ended with an error.
	StatusFailed Status = "failed"

	// StatusInterrupted means the execution was cancelled.
	StatusInterrupted Status = "interrupted"

	// StatusTimedOut means the execution exceeded its limits.
	StatusTimedOut Status = "timed_out"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusInterrupted, StatusTimedOut:
		return true
	}
	return false
}

// IsRunning reports whether the execution is still in progress.
func (s Status) IsRunning() bool {
	return s == StatusRunning
}

// IsSuccess reports whether the execution completed successfully.
func (s Status) IsSuccess() bool {
	return s == StatusCompleted
}

// ExecutionRecord is the record of a single graph execution.
type ExecutionRecord struct {
	// ThreadID identifies the execution.
	ThreadID string `json:"thread_id"`

	// GraphID is the graph that was executed.
	GraphID string `json:"graph_id"`

	// GraphVersion is the graph version at execution time.
	GraphVersion string `json:"graph_version"`

	// StartedAt is when the execution started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the execution reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Status is the current execution status.
	Status Status `json:"status"`

	// FinalState is the state when the execution completed.
	FinalState map[string]interface{} `json:"final_state,omitempty"`

	// NodesExecuted lists executed nodes in order, repeats included.
	NodesExecuted []string `json:"nodes_executed"`

	// TotalTokens is the total token usage.
	TotalTokens uint64 `json:"total_tokens"`

	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`

	// Custom holds caller-supplied metadata.
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Duration returns the execution duration once terminal.
func (r *ExecutionRecord) Duration() (time.Duration, bool) {
	if r.CompletedAt == nil {
		return 0, false
	}
	d := r.CompletedAt.Sub(r.StartedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Elapsed returns the time since start, using the completion time for
// terminal records.
func (r *ExecutionRecord) Elapsed() time.Duration {
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	d := end.Sub(r.StartedAt)
	if d < 0 {
		d = 0
	}
	return d
}

// ToJSON serializes the record to indented JSON.
func (r *ExecutionRecord) ToJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *ExecutionRecord) clone() ExecutionRecord {
	out := *r
	out.NodesExecuted = append([]string(nil), r.NodesExecuted...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.Custom != nil {
		out.Custom = make(map[string]interface{}, len(r.Custom))
		for k, v := range r.Custom {
			out.Custom[k] = v
		}
	}
	return out
}

// ExecutionRegistry tracks execution history keyed by thread id.
//
// Terminal statuses are absorbing: once a record is completed, failed,
// interrupted, or timed out, further transitions are ignored.
type ExecutionRegistry struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord

	// maxRecords caps the registry size; 0 means unlimited. When the
	// cap is exceeded the oldest terminal record is evicted.
	maxRecords int
}

// NewExecutionRegistry creates an unbounded execution registry.
func NewExecutionRegistry() *ExecutionRegistry {
	return &ExecutionRegistry{records: make(map[string]*ExecutionRecord)}
}

// NewExecutionRegistryWithLimit creates a registry that keeps at most
// maxRecords records.
func NewExecutionRegistryWithLimit(maxRecords int) *ExecutionRegistry {
	return &ExecutionRegistry{
		records:    make(map[string]*ExecutionRecord),
		maxRecords: maxRecords,
	}
}

// RecordStart registers the start of an execution.
func (reg *ExecutionRegistry) RecordStart(threadID, graphID, graphVersion string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.records[threadID] = &ExecutionRecord{
		ThreadID:      threadID,
		GraphID:       graphID,
		GraphVersion:  graphVersion,
		StartedAt:     time.Now(),
		Status:        StatusRunning,
		NodesExecuted: make([]string, 0),
		Custom:        make(map[string]interface{}),
	}

	if reg.maxRecords > 0 && len(reg.records) > reg.maxRecords {
		reg.pruneOldestLocked()
	}
}

// pruneOldestLocked evicts the oldest terminal record. Running records
// are never evicted.
func (reg *ExecutionRegistry) pruneOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, r := range reg.records {
		if !r.Status.IsTerminal() {
			continue
		}
		if oldestID == "" || r.StartedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = r.StartedAt
		}
	}
	if oldestID != "" {
		delete(reg.records, oldestID)
	}
}

// RecordNode appends a node to the execution's node list.
func (reg *ExecutionRegistry) RecordNode(threadID, node string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.records[threadID]; ok && !r.Status.IsTerminal() {
		r.NodesExecuted = append(r.NodesExecuted, node)
	}
}

// RecordTokens adds token usage to the execution.
func (reg *ExecutionRegistry) RecordTokens(threadID string, tokens uint64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.records[threadID]; ok && !r.Status.IsTerminal() {
		r.TotalTokens += tokens
	}
}

// RecordCompletion marks the execution as completed.
func (reg *ExecutionRegistry) RecordCompletion(threadID string, finalState map[string]interface{}) {
	reg.finish(threadID, StatusCompleted, "", finalState)
}

// RecordFailure marks the execution as failed.
func (reg *ExecutionRegistry) RecordFailure(threadID, errMsg string) {
	reg.finish(threadID, StatusFailed, errMsg, nil)
}

// RecordInterrupt marks the execution as interrupted.
func (reg *ExecutionRegistry) RecordInterrupt(threadID string) {
	reg.finish(threadID, StatusInterrupted, "", nil)
}

// RecordTimeout marks the execution as timed out.
func (reg *ExecutionRegistry) RecordTimeout(threadID string) {
	reg.finish(threadID, StatusTimedOut, "", nil)
}

func (reg *ExecutionRegistry) finish(threadID string, status Status, errMsg string, finalState map[string]interface{}) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.records[threadID]
	if !ok || r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.CompletedAt = &now
	r.Status = status
	if errMsg != "" {
		r.Error = errMsg
	}
	if finalState != nil {
		r.FinalState = finalState
	}
}

// SetCustom attaches caller-supplied metadata to an execution.
func (reg *ExecutionRegistry) SetCustom(threadID, key string, value interface{}) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.records[threadID]; ok {
		if r.Custom == nil {
			r.Custom = make(map[string]interface{})
		}
		r.Custom[key] = value
	}
}

// Get returns a copy of an execution record.
func (reg *ExecutionRegistry) Get(threadID string) (ExecutionRecord, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.records[threadID]
	if !ok {
		return ExecutionRecord{}, false
	}
	return r.clone(), true
}

// ListRunning returns all in-progress executions.
func (reg *ExecutionRegistry) ListRunning() []ExecutionRecord {
	return reg.listWhere(func(r *ExecutionRecord) bool { return r.Status.IsRunning() })
}

// ListByStatus returns executions with the given status.
func (reg *ExecutionRegistry) ListByStatus(status Status) []ExecutionRecord {
	return reg.listWhere(func(r *ExecutionRecord) bool { return r.Status == status })
}

// ListByGraph returns executions of a specific graph.
func (reg *ExecutionRegistry) ListByGraph(graphID string) []ExecutionRecord {
	return reg.listWhere(func(r *ExecutionRecord) bool { return r.GraphID == graphID })
}

// ListAll returns every execution record.
func (reg *ExecutionRegistry) ListAll() []ExecutionRecord {
	return reg.listWhere(func(*ExecutionRecord) bool { return true })
}

func (reg *ExecutionRegistry) listWhere(keep func(*ExecutionRecord) bool) []ExecutionRecord {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]ExecutionRecord, 0)
	for _, r := range reg.records {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

// ListRecent returns up to limit executions, newest first.
func (reg *ExecutionRegistry) ListRecent(limit int) []ExecutionRecord {
	all := reg.ListAll()
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Count returns the total number of records.
func (reg *ExecutionRegistry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.records)
}

// CountByStatus returns the number of records with a given status.
func (reg *ExecutionRegistry) CountByStatus(status Status) int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	count := 0
	for _, r := range reg.records {
		if r.Status == status {
			count++
		}
	}
	return count
}

// SuccessRate returns the fraction of terminal executions that
// completed successfully. With no terminal executions it returns 1.0.
func (reg *ExecutionRegistry) SuccessRate() float64 {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	terminal := 0
	successful := 0
	for _, r := range reg.records {
		if r.Status.IsTerminal() {
			terminal++
			if r.Status.IsSuccess() {
				successful++
			}
		}
	}
	if terminal == 0 {
		return 1.0
	}
	return float64(successful) / float64(terminal)
}

// AverageDuration returns the mean duration of terminal executions.
func (reg *ExecutionRegistry) AverageDuration() (time.Duration, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var total time.Duration
	count := 0
	for _, r := range reg.records {
		if d, ok := r.Duration(); ok {
			total += d
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return total / time.Duration(count), true
}

// TotalTokens returns token usage summed over all executions.
func (reg *ExecutionRegistry) TotalTokens() uint64 {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var total uint64
	for _, r := range reg.records {
		total += r.TotalTokens
	}
	return total
}

// Remove deletes a record and returns it.
func (reg *ExecutionRegistry) Remove(threadID string) (ExecutionRecord, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.records[threadID]
	if !ok {
		return ExecutionRecord{}, false
	}
	delete(reg.records, threadID)
	return r.clone(), true
}

// Clear removes all records.
func (reg *ExecutionRegistry) Clear() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.records = make(map[string]*ExecutionRecord)
}
