package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/flowgraph/pkg/graph"
)

// ErrNotFound is returned when a checkpoint or thread does not exist.
var ErrNotFound = graph.NewPermanentError("checkpoint not found", nil).WithCode(graph.ErrCodeNotFound)

// Checkpoint is a durable snapshot of an execution's state after a
// node completed.
type Checkpoint struct {
	// ID uniquely identifies the checkpoint.
	ID string `json:"id"`

	// ThreadID is the execution the checkpoint belongs to.
	ThreadID string `json:"thread_id"`

	// GraphID is the graph being executed.
	GraphID string `json:"graph_id"`

	// Node is the node that completed before the checkpoint was taken.
	Node string `json:"node"`

	// State is the execution state at checkpoint time.
	State map[string]interface{} `json:"state"`

	// ParentID is the id of the preceding checkpoint, empty for the
	// first checkpoint of a thread.
	ParentID string `json:"parent_id,omitempty"`

	// CreatedAt is when the checkpoint was taken.
	CreatedAt time.Time `json:"created_at"`

	// Metadata holds caller-supplied data.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// New creates a checkpoint with a fresh id.
func New(threadID, graphID, node string, state map[string]interface{}) Checkpoint {
	return Checkpoint{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		GraphID:   graphID,
		Node:      node,
		State:     state,
		CreatedAt: time.Now().UTC(),
	}
}

// MarshalState returns the state as JSON.
func (c *Checkpoint) MarshalState() ([]byte, error) {
	return json.Marshal(c.State)
}

// ToJSON serializes the checkpoint to indented JSON.
func (c *Checkpoint) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Checkpointer persists and retrieves checkpoints.
type Checkpointer interface {
	// Put stores a checkpoint.
	Put(ctx context.Context, cp Checkpoint) error

	// Get returns a specific checkpoint of a thread.
	Get(ctx context.Context, threadID, id string) (Checkpoint, error)

	// Latest returns the most recent checkpoint of a thread.
	Latest(ctx context.Context, threadID string) (Checkpoint, error)

	// List returns a thread's checkpoints, newest first.
	List(ctx context.Context, threadID string) ([]Checkpoint, error)

	// Delete removes a single checkpoint.
	Delete(ctx context.Context, threadID, id string) error

	// DeleteThread removes all checkpoints of a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// Threads returns the ids of all threads with checkpoints.
	Threads(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
