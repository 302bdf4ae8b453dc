package graph

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeType categorizes what a node does within a workflow.
type NodeType string

const (
	// NodeTypeLLM is a node that calls a language model.
	NodeTypeLLM NodeType = "llm"

	// NodeTypeTool is a node that invokes an external tool.
	NodeTypeTool NodeType = "tool"

	// NodeTypeRouter is a node that only routes between other nodes.
	NodeTypeRouter NodeType = "router"

	// NodeTypeMemory is a node that reads or writes persistent memory.
	NodeTypeMemory NodeType = "memory"

	// NodeTypeCustom is any other node.
	NodeTypeCustom NodeType = "custom"
)

// NodeManifest describes a single node in a graph.
type NodeManifest struct {
	// Name is the unique node name within the graph.
	Name string `json:"name" yaml:"name"`

	// Type categorizes the node.
	Type NodeType `json:"type" yaml:"type"`

	// Description is a human-readable description of what the node does.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Metadata contains additional node-specific data.
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EdgeManifest describes an outgoing edge from a node.
type EdgeManifest struct {
	// To is the target node name.
	To string `json:"to" yaml:"to"`

	// Conditional marks the edge as gated by Condition.
	Conditional bool `json:"conditional,omitempty" yaml:"conditional,omitempty"`

	// Parallel marks the edge as part of a parallel fan-out.
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	// Condition is an expression evaluated against the current state.
	// Empty means unconditional. Only meaningful when Conditional is true.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Manifest is the complete declarative description of a workflow graph.
//
// A Manifest is the unit stored in the graph registry and the input to
// structural analysis, content hashing, and execution.
type Manifest struct {
	// GraphID is the unique identifier for the graph.
	GraphID string `json:"graph_id" yaml:"graph_id"`

	// Name is the human-readable graph name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Version is the user-provided semantic version string.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// EntryPoint is the node where execution starts.
	EntryPoint string `json:"entry_point" yaml:"entry_point"`

	// Nodes maps node names to their manifests.
	Nodes map[string]NodeManifest `json:"nodes" yaml:"nodes"`

	// Edges maps source node names to their outgoing edges.
	Edges map[string][]EdgeManifest `json:"edges,omitempty" yaml:"edges,omitempty"`

	// Tags are free-form labels for registry queries.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// CreatedAt is when the manifest was first created.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`

	// UpdatedAt is when the manifest was last modified.
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// NodeCount returns the number of nodes in the graph.
func (m *Manifest) NodeCount() int {
	return len(m.Nodes)
}

// EdgeCount returns the total number of edges in the graph.
func (m *Manifest) EdgeCount() int {
	count := 0
	for _, edges := range m.Edges {
		count += len(edges)
	}
	return count
}

// NodeNames returns all node names.
func (m *Manifest) NodeNames() []string {
	names := make([]string, 0, len(m.Nodes))
	for name := range m.Nodes {
		names = append(names, name)
	}
	return names
}

// OutgoingEdges returns the outgoing edges for a node.
func (m *Manifest) OutgoingEdges(node string) []EdgeManifest {
	return m.Edges[node]
}

// HasNode returns true if the graph contains the named node.
func (m *Manifest) HasNode(name string) bool {
	_, ok := m.Nodes[name]
	return ok
}

// HasTag returns true if the manifest carries the given tag.
func (m *Manifest) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ToJSON serializes the manifest to indented JSON.
func (m *Manifest) ToJSON() (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseManifestJSON parses a manifest from JSON.
func ParseManifestJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, NewPermanentError("failed to parse manifest JSON", err).
			WithCode(ErrCodeValidation)
	}
	return &m, nil
}

// ParseManifestYAML parses a manifest from YAML.
func ParseManifestYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, NewPermanentError("failed to parse manifest YAML", err).
			WithCode(ErrCodeValidation)
	}
	return &m, nil
}
