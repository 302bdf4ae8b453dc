package graph

import (
	"strings"
	"testing"
)

func TestToDOT_ContainsNodesAndEdges(t *testing.T) {
	m := linearManifest()
	m.Edges["process"] = []EdgeManifest{
		{To: "output", Conditional: true, Condition: `done == true`},
	}

	dot, err := ToDOT(m)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, want := range []string{"digraph", "input", "process", "output", "dashed"} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected DOT output to contain %q:\n%s", want, dot)
		}
	}
}

func TestParseDOT_RoundTrip(t *testing.T) {
	m := linearManifest()
	dot, err := ToDOT(m)
	if err != nil {
		t.Fatalf("ToDOT failed: %v", err)
	}

	parsed, err := ParseDOT(dot)
	if err != nil {
		t.Fatalf("ParseDOT failed: %v", err)
	}

	if parsed.GraphID != "linear" {
		t.Errorf("Expected graph id linear, got %q", parsed.GraphID)
	}
	if parsed.NodeCount() != 3 {
		t.Errorf("Expected 3 nodes, got %d", parsed.NodeCount())
	}
	if parsed.EdgeCount() != 2 {
		t.Errorf("Expected 2 edges, got %d", parsed.EdgeCount())
	}
	if parsed.EntryPoint != "input" {
		t.Errorf("Expected entry point input, got %q", parsed.EntryPoint)
	}
}

func TestParseDOT_ConditionalEdge(t *testing.T) {
	dot := `digraph g {
		a [comment="router"];
		b [comment="llm"];
		a -> b [label="score > 5", style="dashed"];
	}`

	m, err := ParseDOT(dot)
	if err != nil {
		t.Fatalf("ParseDOT failed: %v", err)
	}

	edges := m.OutgoingEdges("a")
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge from a, got %d", len(edges))
	}
	if !edges[0].Conditional {
		t.Error("Expected edge to be conditional")
	}
	if edges[0].Condition != "score > 5" {
		t.Errorf("Expected condition preserved, got %q", edges[0].Condition)
	}
	if m.Nodes["b"].Type != NodeTypeLLM {
		t.Errorf("Expected node type llm, got %q", m.Nodes["b"].Type)
	}
}

func TestParseDOT_TypedConditionalRoundTrip(t *testing.T) {
	m := &Manifest{
		GraphID:    "routed",
		EntryPoint: "model",
		Nodes: map[string]NodeManifest{
			"model":  {Name: "model", Type: NodeTypeLLM},
			"escal":  {Name: "escal", Type: NodeTypeTool},
			"reply":  {Name: "reply", Type: NodeTypeRouter},
			"branch": {Name: "branch", Type: NodeTypeCustom},
		},
		Edges: map[string][]EdgeManifest{
			"model": {
				{To: "escal", Conditional: true, Condition: `escalate == true`},
				{To: "reply"},
				{To: "branch", Parallel: true},
			},
		},
	}

	dot, err := ToDOT(m)
	if err != nil {
		t.Fatalf("ToDOT failed: %v", err)
	}

	parsed, err := ParseDOT(dot)
	if err != nil {
		t.Fatalf("ParseDOT failed: %v", err)
	}

	if parsed.Nodes["model"].Type != NodeTypeLLM {
		t.Errorf("Expected node type llm, got %q", parsed.Nodes["model"].Type)
	}
	if parsed.Nodes["escal"].Type != NodeTypeTool {
		t.Errorf("Expected node type tool, got %q", parsed.Nodes["escal"].Type)
	}
	if parsed.EntryPoint != "model" {
		t.Errorf("Expected entry point model, got %q", parsed.EntryPoint)
	}

	edges := parsed.OutgoingEdges("model")
	if len(edges) != 3 {
		t.Fatalf("Expected 3 edges from model, got %d", len(edges))
	}
	var conditional, parallel *EdgeManifest
	for i := range edges {
		if edges[i].Conditional {
			conditional = &edges[i]
		}
		if edges[i].Parallel {
			parallel = &edges[i]
		}
	}
	if conditional == nil || conditional.Condition != `escalate == true` {
		t.Errorf("Expected conditional edge with its expression, got %+v", conditional)
	}
	if parallel == nil || parallel.To != "branch" {
		t.Errorf("Expected parallel edge to branch, got %+v", parallel)
	}
}

func TestParseDOT_Invalid(t *testing.T) {
	if _, err := ParseDOT("not a dot document {"); err == nil {
		t.Fatal("Expected error for invalid DOT")
	}
}
