package graph

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes a deterministic structural fingerprint of a
// manifest. Two manifests with the same entry point, node names, and
// edge structure (including conditional/parallel flags) produce the
// same hash regardless of map iteration order.
func ContentHash(m *Manifest) string {
	d := xxhash.New()

	_, _ = d.WriteString(m.EntryPoint)
	_, _ = d.WriteString("\x00")

	names := m.NodeNames()
	sort.Strings(names)
	for _, name := range names {
		_, _ = d.WriteString(name)
		_, _ = d.WriteString("\x00")
	}

	froms := make([]string, 0, len(m.Edges))
	for from := range m.Edges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		_, _ = d.WriteString(from)
		for _, edge := range m.Edges[from] {
			_, _ = d.WriteString(edge.To)
			_, _ = d.WriteString(fmt.Sprintf("|%t|%t", edge.Conditional, edge.Parallel))
		}
		_, _ = d.WriteString("\x00")
	}

	return fmt.Sprintf("%016x", d.Sum64())
}

// NodeHash computes a fingerprint for a single node covering its name,
// description, and type. Used for per-node change detection in diffs.
func NodeHash(n NodeManifest) string {
	d := xxhash.New()
	_, _ = d.WriteString(n.Name)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(n.Description)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(n.Type))
	return fmt.Sprintf("%016x", d.Sum64())
}
