package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// ToDOT renders a manifest in Graphviz DOT format. Only attributes
// Graphviz itself defines survive gographviz validation, so node types
// travel in the "comment" attribute and edge conditions in the edge
// "label"; a round trip through ParseDOT preserves structure.
func ToDOT(m *Manifest) (string, error) {
	g := gographviz.NewGraph()
	graphName := quote(m.GraphID)
	if err := g.SetName(graphName); err != nil {
		return "", fmt.Errorf("failed to set graph name: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("failed to set graph direction: %w", err)
	}

	names := m.NodeNames()
	sort.Strings(names)
	for _, name := range names {
		node := m.Nodes[name]
		attrs := map[string]string{
			"shape":   "box",
			"comment": quote(string(node.Type)),
		}
		if node.Description != "" {
			attrs["label"] = quote(node.Description)
		}
		if name == m.EntryPoint {
			attrs["style"] = quote("bold")
		}
		if err := g.AddNode(graphName, quote(name), attrs); err != nil {
			return "", fmt.Errorf("failed to add node %s: %w", name, err)
		}
	}

	froms := make([]string, 0, len(m.Edges))
	for from := range m.Edges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		for _, edge := range m.Edges[from] {
			attrs := map[string]string{}
			if edge.Conditional {
				attrs["style"] = quote("dashed")
				attrs["label"] = quote(edge.Condition)
			}
			if edge.Parallel {
				attrs["color"] = quote("blue")
			}
			if err := g.AddEdge(quote(from), quote(edge.To), true, attrs); err != nil {
				return "", fmt.Errorf("failed to add edge %s -> %s: %w", from, edge.To, err)
			}
		}
	}

	return g.String(), nil
}

// ParseDOT parses a DOT document into a manifest. The first node in the
// document becomes the entry point unless a node carries a bold style.
func ParseDOT(dot string) (*Manifest, error) {
	ast, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, NewPermanentError("failed to parse DOT", err).
			WithCode(ErrCodeValidation)
	}

	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, NewPermanentError("failed to analyze DOT", err).
			WithCode(ErrCodeValidation)
	}

	m := &Manifest{
		GraphID: unquote(g.Name),
		Nodes:   make(map[string]NodeManifest),
		Edges:   make(map[string][]EdgeManifest),
	}

	for _, n := range g.Nodes.Nodes {
		name := unquote(n.Name)
		nodeType := NodeType(getAttr(n.Attrs, "comment"))
		if nodeType == "" {
			nodeType = NodeTypeCustom
		}
		m.Nodes[name] = NodeManifest{
			Name:        name,
			Type:        nodeType,
			Description: getAttr(n.Attrs, "label"),
		}
		if getAttr(n.Attrs, "style") == "bold" && m.EntryPoint == "" {
			m.EntryPoint = name
		}
	}

	for _, e := range g.Edges.Edges {
		from := unquote(e.Src)
		cond := getAttr(e.Attrs, "label")
		dashed := getAttr(e.Attrs, "style") == "dashed"
		if !dashed {
			// A label on a plain edge is decoration, not a condition.
			cond = ""
		}
		edge := EdgeManifest{
			To:          unquote(e.Dst),
			Conditional: dashed,
			Condition:   cond,
			Parallel:    getAttr(e.Attrs, "color") == "blue",
		}
		m.Edges[from] = append(m.Edges[from], edge)
	}

	if m.EntryPoint == "" && len(g.Nodes.Nodes) > 0 {
		m.EntryPoint = unquote(g.Nodes.Nodes[0].Name)
	}

	return m, nil
}

// getAttr reads a Graphviz attribute, stripping surrounding quotes.
func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}
	return unquote(strings.TrimSpace(val))
}

func quote(s string) string {
	return strconv.Quote(s)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
