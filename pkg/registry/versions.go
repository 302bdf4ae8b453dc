package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowgraph/flowgraph/pkg/graph"
)

// NodeVersion is the version fingerprint of a single node.
type NodeVersion struct {
	// NodeName is the name of the node.
	NodeName string `json:"node_name"`

	// Version is the node version string.
	Version string `json:"version"`

	// CodeHash is the fingerprint of the node's declared structure.
	CodeHash string `json:"code_hash"`

	// SourceFile is the source file the node handler lives in, if known.
	SourceFile string `json:"source_file,omitempty"`

	// SourceLine is the source line, if known.
	SourceLine int `json:"source_line,omitempty"`
}

// Version captures the structural fingerprint of a graph at a point in
// time, enabling change detection and version comparison.
type Version struct {
	// GraphID is the graph this version belongs to.
	GraphID string `json:"graph_id"`

	// Version is the user-provided semantic version string.
	Version string `json:"version"`

	// ContentHash is the structural hash of the graph.
	ContentHash string `json:"content_hash"`

	// SourceHash is an optional hash of the source files.
	SourceHash string `json:"source_hash,omitempty"`

	// CreatedAt is when this version was captured.
	CreatedAt time.Time `json:"created_at"`

	// NodeVersions maps node names to their version fingerprints.
	NodeVersions map[string]NodeVersion `json:"node_versions"`

	// NodeCount is the number of nodes at this version.
	NodeCount int `json:"node_count"`

	// EdgeCount is the number of edges at this version.
	EdgeCount int `json:"edge_count"`
}

// NewVersion builds a version record from a manifest.
func NewVersion(m *graph.Manifest, version string) Version {
	nodeVersions := make(map[string]NodeVersion, len(m.Nodes))
	for name, node := range m.Nodes {
		nodeVersions[name] = NodeVersion{
			NodeName: name,
			Version:  "1.0.0",
			CodeHash: graph.NodeHash(node),
		}
	}

	return Version{
		GraphID:      m.GraphID,
		Version:      version,
		ContentHash:  graph.ContentHash(m),
		CreatedAt:    time.Now(),
		NodeVersions: nodeVersions,
		NodeCount:    m.NodeCount(),
		EdgeCount:    m.EdgeCount(),
	}
}

// HasChangedSince reports whether this version differs structurally
// from another.
func (v *Version) HasChangedSince(other *Version) bool {
	return v.ContentHash != other.ContentHash
}

// Diff compares this version against an older one.
func (v *Version) Diff(other *Version) VersionDiff {
	added := make([]string, 0)
	removed := make([]string, 0)
	modified := make([]string, 0)

	for name, nv := range v.NodeVersions {
		old, ok := other.NodeVersions[name]
		switch {
		case !ok:
			added = append(added, name)
		case old.CodeHash != nv.CodeHash:
			modified = append(modified, name)
		}
	}
	for name := range other.NodeVersions {
		if _, ok := v.NodeVersions[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(modified)

	return VersionDiff{
		FromVersion:        other.Version,
		ToVersion:          v.Version,
		NodesAdded:         added,
		NodesRemoved:       removed,
		NodesModified:      modified,
		EdgesChanged:       v.EdgeCount != other.EdgeCount || v.ContentHash != other.ContentHash,
		ContentHashChanged: v.ContentHash != other.ContentHash,
	}
}

// ChangeSummary renders a one-line human-readable description of the
// changes since an older version.
func (v *Version) ChangeSummary(other *Version) string {
	diff := v.Diff(other)
	if !diff.HasChanges() {
		return "No changes"
	}

	parts := make([]string, 0, 4)
	if len(diff.NodesAdded) > 0 {
		parts = append(parts, fmt.Sprintf("added %d node(s)", len(diff.NodesAdded)))
	}
	if len(diff.NodesRemoved) > 0 {
		parts = append(parts, fmt.Sprintf("removed %d node(s)", len(diff.NodesRemoved)))
	}
	if len(diff.NodesModified) > 0 {
		parts = append(parts, fmt.Sprintf("modified %d node(s)", len(diff.NodesModified)))
	}
	if diff.EdgesChanged && len(diff.NodesAdded) == 0 && len(diff.NodesRemoved) == 0 {
		parts = append(parts, "edges changed")
	}

	return fmt.Sprintf("Version %s -> %s: %s", other.Version, v.Version, strings.Join(parts, ", "))
}

// ToJSON serializes the version to indented JSON.
func (v *Version) ToJSON() (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// VersionDiff describes the structural changes between two graph versions.
type VersionDiff struct {
	// FromVersion is the older version string.
	FromVersion string `json:"from_version"`

	// ToVersion is the newer version string.
	ToVersion string `json:"to_version"`

	// NodesAdded lists nodes present only in the newer version.
	NodesAdded []string `json:"nodes_added"`

	// NodesRemoved lists nodes present only in the older version.
	NodesRemoved []string `json:"nodes_removed"`

	// NodesModified lists nodes whose fingerprints changed.
	NodesModified []string `json:"nodes_modified"`

	// EdgesChanged reports whether the edge structure changed.
	EdgesChanged bool `json:"edges_changed"`

	// ContentHashChanged reports whether the overall hash changed.
	ContentHashChanged bool `json:"content_hash_changed"`
}

// HasChanges reports whether the diff contains any change.
func (d *VersionDiff) HasChanges() bool {
	return len(d.NodesAdded) > 0 ||
		len(d.NodesRemoved) > 0 ||
		len(d.NodesModified) > 0 ||
		d.EdgesChanged
}

// NodeChangeCount returns the total number of node changes.
func (d *VersionDiff) NodeChangeCount() int {
	return len(d.NodesAdded) + len(d.NodesRemoved) + len(d.NodesModified)
}

// DetailedReport renders a multi-line description of the diff.
func (d *VersionDiff) DetailedReport() string {
	lines := []string{
		fmt.Sprintf("Graph Diff: %s -> %s", d.FromVersion, d.ToVersion),
		"",
	}

	if len(d.NodesAdded) > 0 {
		lines = append(lines, "Nodes Added:")
		for _, node := range d.NodesAdded {
			lines = append(lines, fmt.Sprintf("  + %s", node))
		}
		lines = append(lines, "")
	}
	if len(d.NodesRemoved) > 0 {
		lines = append(lines, "Nodes Removed:")
		for _, node := range d.NodesRemoved {
			lines = append(lines, fmt.Sprintf("  - %s", node))
		}
		lines = append(lines, "")
	}
	if len(d.NodesModified) > 0 {
		lines = append(lines, "Nodes Modified:")
		for _, node := range d.NodesModified {
			lines = append(lines, fmt.Sprintf("  ~ %s", node))
		}
		lines = append(lines, "")
	}
	if d.EdgesChanged {
		lines = append(lines, "Edges: Changed")
	}

	return strings.Join(lines, "\n")
}

// ToJSON serializes the diff to indented JSON.
func (d *VersionDiff) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// VersionStore tracks graph versions over time.
//
// Clones share the underlying history, so a store can be handed to
// multiple components.
type VersionStore struct {
	mu       sync.RWMutex
	versions map[string][]Version
}

// NewVersionStore creates an empty version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{versions: make(map[string][]Version)}
}

// Save appends a version to the graph's history.
func (s *VersionStore) Save(v Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.GraphID] = append(s.versions[v.GraphID], v)
}

// Latest returns the most recent version for a graph.
func (s *VersionStore) Latest(graphID string) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[graphID]
	if len(history) == 0 {
		return Version{}, false
	}
	return history[len(history)-1], true
}

// Previous returns the second most recent version for a graph.
func (s *VersionStore) Previous(graphID string) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[graphID]
	if len(history) < 2 {
		return Version{}, false
	}
	return history[len(history)-2], true
}

// Get returns a specific version by version string.
func (s *VersionStore) Get(graphID, version string) (Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[graphID] {
		if v.Version == version {
			return v, true
		}
	}
	return Version{}, false
}

// List returns all versions for a graph, oldest first.
func (s *VersionStore) List(graphID string) []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[graphID]
	out := make([]Version, len(history))
	copy(out, history)
	return out
}

// History returns up to limit versions for a graph, newest first.
func (s *VersionStore) History(graphID string, limit int) []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[graphID]
	out := make([]Version, 0, len(history))
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out
}

// HasChanged reports whether the graph differs from its last saved
// version. A graph with no saved versions counts as changed.
func (s *VersionStore) HasChanged(graphID, contentHash string) bool {
	latest, ok := s.Latest(graphID)
	if !ok {
		return true
	}
	return latest.ContentHash != contentHash
}

// Count returns the number of versions saved for a graph.
func (s *VersionStore) Count(graphID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions[graphID])
}

// TotalCount returns the number of versions across all graphs.
func (s *VersionStore) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, history := range s.versions {
		total += len(history)
	}
	return total
}

// Clear removes all versions.
func (s *VersionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make(map[string][]Version)
}

// ClearGraph removes all versions for a graph.
func (s *VersionStore) ClearGraph(graphID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, graphID)
}
