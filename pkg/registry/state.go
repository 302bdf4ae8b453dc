package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Snapshot captures the execution state at a single point in time.
type Snapshot struct {
	// ThreadID identifies the execution the snapshot belongs to.
	ThreadID string `json:"thread_id"`

	// Node is the node that produced the state, if known.
	Node string `json:"node,omitempty"`

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time `json:"captured_at"`

	// State is the captured state.
	State map[string]interface{} `json:"state"`

	// CheckpointID links the snapshot to a persisted checkpoint.
	CheckpointID string `json:"checkpoint_id,omitempty"`

	// SizeBytes is the serialized size of the state.
	SizeBytes int `json:"size_bytes"`

	// Description is an optional caller-supplied note.
	Description string `json:"description,omitempty"`

	// Metadata holds additional caller-supplied data.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewSnapshot builds a snapshot from the given state. The size is the
// JSON-serialized length of the state.
func NewSnapshot(threadID, node string, state map[string]interface{}) Snapshot {
	size := 0
	if data, err := json.Marshal(state); err == nil {
		size = len(data)
	}
	return Snapshot{
		ThreadID:   threadID,
		Node:       node,
		CapturedAt: time.Now(),
		State:      state,
		SizeBytes:  size,
	}
}

// Field resolves a dot-separated path into the state, descending
// through nested objects.
func (s *Snapshot) Field(path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = s.State
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ToJSON serializes the snapshot to indented JSON.
func (s *Snapshot) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FieldDiff describes a single changed field between two states.
type FieldDiff struct {
	// Path is the dot-separated path to the field.
	Path string `json:"path"`

	// Before is the value in the earlier state.
	Before interface{} `json:"before"`

	// After is the value in the later state.
	After interface{} `json:"after"`
}

// StateDiff is the difference between two consecutive snapshots.
type StateDiff struct {
	// FromTime is the capture time of the earlier snapshot.
	FromTime time.Time `json:"from_time"`

	// ToTime is the capture time of the later snapshot.
	ToTime time.Time `json:"to_time"`

	// FromNode is the node of the earlier snapshot.
	FromNode string `json:"from_node,omitempty"`

	// ToNode is the node of the later snapshot.
	ToNode string `json:"to_node,omitempty"`

	// Added lists paths present only in the later state.
	Added []string `json:"added"`

	// Removed lists paths present only in the earlier state.
	Removed []string `json:"removed"`

	// Changed lists fields whose values differ.
	Changed []FieldDiff `json:"changed"`
}

// HasChanges reports whether the diff contains any difference.
func (d *StateDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Summary renders a one-line description of the diff.
func (d *StateDiff) Summary() string {
	if !d.HasChanges() {
		return "no changes"
	}
	parts := make([]string, 0, 3)
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Changed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	return strings.Join(parts, ", ")
}

// DiffStates compares two states and returns the paths that were
// added, removed, or changed between them.
func DiffStates(before, after map[string]interface{}) StateDiff {
	diff := StateDiff{
		Added:   make([]string, 0),
		Removed: make([]string, 0),
		Changed: make([]FieldDiff, 0),
	}
	diffValues("", before, after, &diff)
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].Path < diff.Changed[j].Path
	})
	return diff
}

func diffValues(prefix string, before, after interface{}, diff *StateDiff) {
	beforeObj, beforeIsObj := before.(map[string]interface{})
	afterObj, afterIsObj := after.(map[string]interface{})

	switch {
	case beforeIsObj && afterIsObj:
		for key, bv := range beforeObj {
			path := joinPath(prefix, key)
			if av, ok := afterObj[key]; ok {
				diffValues(path, bv, av, diff)
			} else {
				diff.Removed = append(diff.Removed, path)
			}
		}
		for key := range afterObj {
			if _, ok := beforeObj[key]; !ok {
				diff.Added = append(diff.Added, joinPath(prefix, key))
			}
		}
	default:
		beforeArr, beforeIsArr := before.([]interface{})
		afterArr, afterIsArr := after.([]interface{})
		if beforeIsArr && afterIsArr {
			shared := len(beforeArr)
			if len(afterArr) < shared {
				shared = len(afterArr)
			}
			for i := 0; i < shared; i++ {
				diffValues(fmt.Sprintf("%s[%d]", prefix, i), beforeArr[i], afterArr[i], diff)
			}
			for i := shared; i < len(beforeArr); i++ {
				diff.Removed = append(diff.Removed, fmt.Sprintf("%s[%d]", prefix, i))
			}
			for i := shared; i < len(afterArr); i++ {
				diff.Added = append(diff.Added, fmt.Sprintf("%s[%d]", prefix, i))
			}
			return
		}
		if !deepEqual(before, after) {
			path := prefix
			if path == "" {
				path = "(root)"
			}
			diff.Changed = append(diff.Changed, FieldDiff{Path: path, Before: before, After: after})
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// deepEqual compares two JSON-shaped values by serialized form, so
// equivalent numbers compare equal regardless of concrete type.
func deepEqual(a, b interface{}) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(aj) == string(bj)
}

// StateRegistry keeps bounded snapshot histories per thread.
type StateRegistry struct {
	mu        sync.RWMutex
	snapshots map[string][]Snapshot

	// maxPerThread caps the history per thread; oldest snapshots are
	// evicted first. Zero means unlimited.
	maxPerThread int
}

// NewStateRegistry creates a registry keeping at most maxPerThread
// snapshots per thread.
func NewStateRegistry(maxPerThread int) *StateRegistry {
	return &StateRegistry{
		snapshots:    make(map[string][]Snapshot),
		maxPerThread: maxPerThread,
	}
}

// Record appends a snapshot to the thread's history, evicting the
// oldest entry when over the cap.
func (reg *StateRegistry) Record(snapshot Snapshot) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	history := append(reg.snapshots[snapshot.ThreadID], snapshot)
	if reg.maxPerThread > 0 && len(history) > reg.maxPerThread {
		history = history[1:]
	}
	reg.snapshots[snapshot.ThreadID] = history
}

// Latest returns the most recent snapshot for a thread.
func (reg *StateRegistry) Latest(threadID string) (Snapshot, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	history := reg.snapshots[threadID]
	if len(history) == 0 {
		return Snapshot{}, false
	}
	return history[len(history)-1], true
}

// History returns the thread's snapshots, oldest first.
func (reg *StateRegistry) History(threadID string) []Snapshot {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]Snapshot(nil), reg.snapshots[threadID]...)
}

// AtTime returns the snapshot captured closest to t.
func (reg *StateRegistry) AtTime(threadID string, t time.Time) (Snapshot, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	history := reg.snapshots[threadID]
	if len(history) == 0 {
		return Snapshot{}, false
	}
	best := history[0]
	bestDelta := absDuration(best.CapturedAt.Sub(t))
	for _, s := range history[1:] {
		if delta := absDuration(s.CapturedAt.Sub(t)); delta < bestDelta {
			best = s
			bestDelta = delta
		}
	}
	return best, true
}

// AtCheckpoint returns the snapshot linked to a checkpoint id.
func (reg *StateRegistry) AtCheckpoint(threadID, checkpointID string) (Snapshot, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, s := range reg.snapshots[threadID] {
		if s.CheckpointID == checkpointID {
			return s, true
		}
	}
	return Snapshot{}, false
}

// ByNode returns the thread's snapshots produced by a node, oldest
// first.
func (reg *StateRegistry) ByNode(threadID, node string) []Snapshot {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	matched := make([]Snapshot, 0)
	for _, s := range reg.snapshots[threadID] {
		if s.Node == node {
			matched = append(matched, s)
		}
	}
	return matched
}

// Recent returns the newest snapshots across all threads, newest first.
func (reg *StateRegistry) Recent(limit int) []Snapshot {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	all := make([]Snapshot, 0)
	for _, history := range reg.snapshots {
		all = append(all, history...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CapturedAt.After(all[j].CapturedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Diffs returns the state differences between consecutive snapshots of
// a thread, oldest pair first.
func (reg *StateRegistry) Diffs(threadID string) []StateDiff {
	history := reg.History(threadID)
	diffs := make([]StateDiff, 0)
	for i := 1; i < len(history); i++ {
		prev, next := history[i-1], history[i]
		d := DiffStates(prev.State, next.State)
		d.FromTime = prev.CapturedAt
		d.ToTime = next.CapturedAt
		d.FromNode = prev.Node
		d.ToNode = next.Node
		diffs = append(diffs, d)
	}
	return diffs
}

// SnapshotCount returns the number of snapshots for a thread.
func (reg *StateRegistry) SnapshotCount(threadID string) int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.snapshots[threadID])
}

// ThreadIDs returns the ids of all threads with snapshots, sorted.
func (reg *StateRegistry) ThreadIDs() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.snapshots))
	for id := range reg.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearThread removes a thread's snapshot history.
func (reg *StateRegistry) ClearThread(threadID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.snapshots, threadID)
}

// Clear removes all snapshots.
func (reg *StateRegistry) Clear() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.snapshots = make(map[string][]Snapshot)
}
