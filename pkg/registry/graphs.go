package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/flowgraph/pkg/graph"
)

// GraphRegistry holds the registered graph manifests and records a new
// version whenever a manifest's content hash changes.
type GraphRegistry struct {
	mu       sync.RWMutex
	graphs   map[string]*graph.Manifest
	versions *VersionStore
}

// NewGraphRegistry creates a graph registry backed by the given
// version store. A nil store disables version capture.
func NewGraphRegistry(versions *VersionStore) *GraphRegistry {
	return &GraphRegistry{
		graphs:   make(map[string]*graph.Manifest),
		versions: versions,
	}
}

// Register validates and stores a manifest. When the manifest's
// content hash differs from the last known version, a new version is
// recorded in the version store.
func (reg *GraphRegistry) Register(m *graph.Manifest) error {
	if m == nil {
		return graph.NewPermanentError("manifest is nil", nil).WithCode(graph.ErrCodeValidation)
	}
	if m.GraphID == "" {
		return graph.NewPermanentError("manifest has no graph id", nil).WithCode(graph.ErrCodeValidation)
	}
	if _, err := graph.Analyze(m); err != nil {
		return err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.graphs[m.GraphID] = m

	if reg.versions != nil {
		hash := graph.ContentHash(m)
		if reg.versions.HasChanged(m.GraphID, hash) {
			version := m.Version
			if version == "" {
				version = fmt.Sprintf("v%d", reg.versions.Count(m.GraphID)+1)
			}
			reg.versions.Save(NewVersion(m, version))
		}
	}
	return nil
}

// Unregister removes a manifest. Version history is retained.
func (reg *GraphRegistry) Unregister(graphID string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.graphs[graphID]; !ok {
		return false
	}
	delete(reg.graphs, graphID)
	return true
}

// Get returns a registered manifest.
func (reg *GraphRegistry) Get(graphID string) (*graph.Manifest, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	m, ok := reg.graphs[graphID]
	return m, ok
}

// List returns all registered manifests sorted by graph id.
func (reg *GraphRegistry) List() []*graph.Manifest {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*graph.Manifest, 0, len(reg.graphs))
	for _, m := range reg.graphs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GraphID < out[j].GraphID })
	return out
}

// ListByTag returns manifests carrying the given tag, sorted by id.
func (reg *GraphRegistry) ListByTag(tag string) []*graph.Manifest {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*graph.Manifest, 0)
	for _, m := range reg.graphs {
		if m.HasTag(tag) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GraphID < out[j].GraphID })
	return out
}

// GraphIDs returns the ids of all registered graphs, sorted.
func (reg *GraphRegistry) GraphIDs() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.graphs))
	for id := range reg.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered graphs.
func (reg *GraphRegistry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.graphs)
}

// Versions returns the attached version store, which may be nil.
func (reg *GraphRegistry) Versions() *VersionStore {
	return reg.versions
}
