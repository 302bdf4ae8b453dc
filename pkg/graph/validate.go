package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Analysis is the result of structural validation of a manifest.
// Levels group nodes that can execute in parallel once their
// predecessors have completed. Conditional edges may form loops and are
// excluded from level assignment.
type Analysis struct {
	// Levels maps execution level to node names at that level.
	Levels [][]string `json:"levels"`

	// Roots are nodes with no unconditional predecessors.
	Roots []string `json:"roots"`

	// Depth is the number of execution levels.
	Depth int `json:"depth"`

	// ConditionalEdges is the number of conditional edges in the graph.
	ConditionalEdges int `json:"conditional_edges"`
}

// analyzer validates a manifest and computes execution levels.
type analyzer struct {
	manifest *Manifest

	// adjacency maps node names to their unconditional successors
	adjacency map[string][]string

	// inDegree tracks the number of incoming unconditional edges per node
	inDegree map[string]int

	levels [][]string
}

// Analyze validates the structure of a manifest and computes its
// execution levels. It checks node and edge referential integrity,
// requires a valid entry point, and rejects cycles formed by
// unconditional edges.
func Analyze(m *Manifest) (*Analysis, error) {
	if m == nil {
		return nil, NewPermanentError("manifest is nil", nil).WithCode(ErrCodeValidation)
	}

	a := &analyzer{
		manifest:  m,
		adjacency: make(map[string][]string),
		inDegree:  make(map[string]int),
	}

	if err := a.initialize(); err != nil {
		return nil, err
	}
	if err := a.detectCycles(); err != nil {
		return nil, err
	}
	if err := a.computeLevels(); err != nil {
		return nil, err
	}

	return a.build(), nil
}

// initialize checks referential integrity and builds adjacency structures.
func (a *analyzer) initialize() error {
	m := a.manifest

	if len(m.Nodes) == 0 {
		return NewPermanentError("manifest has no nodes", nil).
			WithCode(ErrCodeValidation).WithGraph(m.GraphID)
	}

	for name := range m.Nodes {
		if name == "" {
			return NewPermanentError("manifest has node with empty name", nil).
				WithCode(ErrCodeValidation).WithGraph(m.GraphID)
		}
		a.adjacency[name] = make([]string, 0)
		a.inDegree[name] = 0
	}

	if m.EntryPoint == "" {
		return NewPermanentError("manifest has no entry point", nil).
			WithCode(ErrCodeValidation).WithGraph(m.GraphID)
	}
	if !m.HasNode(m.EntryPoint) {
		return NewPermanentError(
			fmt.Sprintf("entry point %q is not a node", m.EntryPoint), nil).
			WithCode(ErrCodeValidation).WithGraph(m.GraphID)
	}

	for from, edges := range m.Edges {
		if !m.HasNode(from) {
			return NewPermanentError(
				fmt.Sprintf("edge source %q is not a node", from), nil).
				WithCode(ErrCodeValidation).WithGraph(m.GraphID)
		}
		for _, edge := range edges {
			if !m.HasNode(edge.To) {
				return NewPermanentError(
					fmt.Sprintf("edge %s -> %s references unknown node", from, edge.To), nil).
					WithCode(ErrCodeValidation).WithGraph(m.GraphID).WithNode(from)
			}
			if edge.Conditional {
				// Conditional edges may loop back; they do not
				// participate in level assignment.
				continue
			}
			a.adjacency[from] = append(a.adjacency[from], edge.To)
			a.inDegree[edge.To]++
		}
	}

	return nil
}

// detectCycles uses depth-first search over unconditional edges.
func (a *analyzer) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	// Deterministic iteration order keeps cycle errors stable.
	names := a.manifest.NodeNames()
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if cycle := a.findCycle(name, visited, recStack, path); cycle != nil {
				return NewPermanentError(
					fmt.Sprintf("cycle detected: %s", strings.Join(cycle, " -> ")), nil).
					WithCode(ErrCodeValidation).WithGraph(a.manifest.GraphID)
			}
		}
	}

	return nil
}

func (a *analyzer) findCycle(node string, visited, recStack map[string]bool, path []string) []string {
	visited[node] = true
	recStack[node] = true
	path = append(path, node)

	for _, next := range a.adjacency[node] {
		if !visited[next] {
			if cycle := a.findCycle(next, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[next] {
			cycleStart := -1
			for i, name := range path {
				if name == next {
					cycleStart = i
					break
				}
			}
			if cycleStart >= 0 {
				return append(path[cycleStart:], next)
			}
		}
	}

	recStack[node] = false
	return nil
}

// computeLevels assigns execution levels using Kahn's algorithm.
// Nodes at the same level have no unconditional ordering between them.
func (a *analyzer) computeLevels() error {
	inDegree := make(map[string]int, len(a.inDegree))
	for name, degree := range a.inDegree {
		inDegree[name] = degree
	}

	currentLevel := make([]string, 0)
	for name, degree := range inDegree {
		if degree == 0 {
			currentLevel = append(currentLevel, name)
		}
	}
	sort.Strings(currentLevel)

	processed := 0
	for len(currentLevel) > 0 {
		a.levels = append(a.levels, currentLevel)
		processed += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, name := range currentLevel {
			for _, next := range a.adjacency[name] {
				inDegree[next]--
				if inDegree[next] == 0 {
					nextLevel = append(nextLevel, next)
				}
			}
		}
		sort.Strings(nextLevel)
		currentLevel = nextLevel
	}

	// Should never happen once cycle detection passed.
	if processed != len(a.manifest.Nodes) {
		return NewPermanentError("failed to level all nodes - possible cycle", nil).
			WithCode(ErrCodeInternal).WithGraph(a.manifest.GraphID)
	}

	return nil
}

func (a *analyzer) build() *Analysis {
	conditional := 0
	for _, edges := range a.manifest.Edges {
		for _, edge := range edges {
			if edge.Conditional {
				conditional++
			}
		}
	}

	analysis := &Analysis{
		Levels:           a.levels,
		Depth:            len(a.levels),
		ConditionalEdges: conditional,
	}
	if len(a.levels) > 0 {
		analysis.Roots = a.levels[0]
	} else {
		analysis.Roots = make([]string, 0)
	}
	return analysis
}

// Level returns the execution level of a node, or -1 if the node is unknown.
func (an *Analysis) Level(node string) int {
	for level, names := range an.Levels {
		for _, name := range names {
			if name == node {
				return level
			}
		}
	}
	return -1
}
