package graph

import (
	"strings"
	"testing"
)

func linearManifest() *Manifest {
	return &Manifest{
		GraphID:    "linear",
		EntryPoint: "input",
		Nodes: map[string]NodeManifest{
			"input":   {Name: "input", Type: NodeTypeCustom},
			"process": {Name: "process", Type: NodeTypeLLM},
			"output":  {Name: "output", Type: NodeTypeCustom},
		},
		Edges: map[string][]EdgeManifest{
			"input":   {{To: "process"}},
			"process": {{To: "output"}},
		},
	}
}

func TestAnalyze_NilManifest(t *testing.T) {
	_, err := Analyze(nil)
	if err == nil {
		t.Fatal("Expected error for nil manifest")
	}
	if !IsPermanent(err) {
		t.Errorf("Expected permanent error, got: %v", err)
	}
}

func TestAnalyze_EmptyNodes(t *testing.T) {
	m := &Manifest{GraphID: "empty", EntryPoint: "a"}
	_, err := Analyze(m)
	if err == nil {
		t.Fatal("Expected error for manifest without nodes")
	}
}

func TestAnalyze_MissingEntryPoint(t *testing.T) {
	m := linearManifest()
	m.EntryPoint = ""
	if _, err := Analyze(m); err == nil {
		t.Fatal("Expected error for missing entry point")
	}

	m = linearManifest()
	m.EntryPoint = "nonexistent"
	if _, err := Analyze(m); err == nil {
		t.Fatal("Expected error for unknown entry point")
	}
}

func TestAnalyze_UnknownEdgeTarget(t *testing.T) {
	m := linearManifest()
	m.Edges["process"] = append(m.Edges["process"], EdgeManifest{To: "ghost"})

	_, err := Analyze(m)
	if err == nil {
		t.Fatal("Expected error for edge to unknown node")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("Expected error to name the unknown node, got: %v", err)
	}
}

func TestAnalyze_LinearLevels(t *testing.T) {
	analysis, err := Analyze(linearManifest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if analysis.Depth != 3 {
		t.Errorf("Expected depth 3, got %d", analysis.Depth)
	}
	if analysis.Level("input") != 0 {
		t.Errorf("input should be at level 0, got %d", analysis.Level("input"))
	}
	if analysis.Level("process") != 1 {
		t.Errorf("process should be at level 1, got %d", analysis.Level("process"))
	}
	if analysis.Level("output") != 2 {
		t.Errorf("output should be at level 2, got %d", analysis.Level("output"))
	}
	if len(analysis.Roots) != 1 || analysis.Roots[0] != "input" {
		t.Errorf("Expected roots [input], got %v", analysis.Roots)
	}
}

func TestAnalyze_DiamondLevels(t *testing.T) {
	m := &Manifest{
		GraphID:    "diamond",
		EntryPoint: "start",
		Nodes: map[string]NodeManifest{
			"start": {Name: "start"},
			"left":  {Name: "left"},
			"right": {Name: "right"},
			"end":   {Name: "end"},
		},
		Edges: map[string][]EdgeManifest{
			"start": {{To: "left", Parallel: true}, {To: "right", Parallel: true}},
			"left":  {{To: "end"}},
			"right": {{To: "end"}},
		},
	}

	analysis, err := Analyze(m)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if analysis.Depth != 3 {
		t.Errorf("Expected depth 3, got %d", analysis.Depth)
	}
	if len(analysis.Levels[1]) != 2 {
		t.Errorf("Expected 2 nodes at level 1, got %v", analysis.Levels[1])
	}
	if analysis.Level("end") != 2 {
		t.Errorf("end should be at level 2, got %d", analysis.Level("end"))
	}
}

func TestAnalyze_CycleDetected(t *testing.T) {
	m := linearManifest()
	m.Edges["output"] = []EdgeManifest{{To: "input"}}

	_, err := Analyze(m)
	if err == nil {
		t.Fatal("Expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle detected") {
		t.Errorf("Expected cycle error message, got: %v", err)
	}
	if !strings.Contains(err.Error(), "->") {
		t.Errorf("Expected cycle path in error, got: %v", err)
	}
}

func TestAnalyze_ConditionalLoopAllowed(t *testing.T) {
	// Agent loops through conditional edges are legal.
	m := linearManifest()
	m.Edges["output"] = []EdgeManifest{
		{To: "input", Conditional: true, Condition: "retry"},
	}

	analysis, err := Analyze(m)
	if err != nil {
		t.Fatalf("Expected conditional loop to be allowed, got: %v", err)
	}
	if analysis.ConditionalEdges != 1 {
		t.Errorf("Expected 1 conditional edge, got %d", analysis.ConditionalEdges)
	}
}

func TestAnalyze_SelfLoopRejected(t *testing.T) {
	m := linearManifest()
	m.Edges["process"] = append(m.Edges["process"], EdgeManifest{To: "process"})

	if _, err := Analyze(m); err == nil {
		t.Fatal("Expected error for unconditional self loop")
	}
}

func TestAnalysis_LevelUnknownNode(t *testing.T) {
	analysis, err := Analyze(linearManifest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if analysis.Level("nope") != -1 {
		t.Errorf("Expected -1 for unknown node, got %d", analysis.Level("nope"))
	}
}
