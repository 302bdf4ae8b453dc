package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Checkpointer for tests and ephemeral
// runs. It returns copies so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]Checkpoint)}
}

// Put stores a checkpoint.
func (s *MemoryStore) Put(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[cp.ThreadID] = append(s.threads[cp.ThreadID], cloneCheckpoint(cp))
	return nil
}

// Get returns a specific checkpoint of a thread.
func (s *MemoryStore) Get(_ context.Context, threadID, id string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cp := range s.threads[threadID] {
		if cp.ID == id {
			return cloneCheckpoint(cp), nil
		}
	}
	return Checkpoint{}, ErrNotFound
}

// Latest returns the most recent checkpoint of a thread.
func (s *MemoryStore) Latest(_ context.Context, threadID string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.threads[threadID]
	if len(cps) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return cloneCheckpoint(cps[len(cps)-1]), nil
}

// List returns a thread's checkpoints, newest first.
func (s *MemoryStore) List(_ context.Context, threadID string) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.threads[threadID]
	out := make([]Checkpoint, 0, len(cps))
	for i := len(cps) - 1; i >= 0; i-- {
		out = append(out, cloneCheckpoint(cps[i]))
	}
	return out, nil
}

// Delete removes a single checkpoint.
func (s *MemoryStore) Delete(_ context.Context, threadID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := s.threads[threadID]
	for i, cp := range cps {
		if cp.ID == id {
			s.threads[threadID] = append(cps[:i:i], cps[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DeleteThread removes all checkpoints of a thread.
func (s *MemoryStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Threads returns the ids of all threads with checkpoints, sorted.
func (s *MemoryStore) Threads(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id, cps := range s.threads {
		if len(cps) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneCheckpoint(cp Checkpoint) Checkpoint {
	out := cp
	if cp.State != nil {
		out.State = make(map[string]interface{}, len(cp.State))
		for k, v := range cp.State {
			out.State[k] = v
		}
	}
	if cp.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(cp.Metadata))
		for k, v := range cp.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
