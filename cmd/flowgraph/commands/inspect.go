package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph/pkg/graph"
)

func newInspectCommand() *cobra.Command {
	var exportDOT bool

	cmd := &cobra.Command{
		Use:   "inspect <manifest>",
		Short: "Validate and describe a graph manifest",
		Long: `Validate a graph manifest and print its structure.

This command checks:
  - Node and edge referential integrity
  - Entry point validity
  - Cycles formed by unconditional edges

It then prints the execution levels, the content hash used for
version change detection, and the declared nodes and edges.`,
		Example: `  # Inspect a manifest
  flowgraph inspect ./graphs/chat.yaml

  # Export the graph structure as DOT
  flowgraph inspect --dot ./graphs/chat.yaml > chat.dot

  # Machine-readable output
  flowgraph inspect --json ./graphs/chat.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			log.Debug().Str("path", path).Msg("Inspecting manifest")

			manifest, err := loadManifest(path)
			if err != nil {
				return err
			}

			analysis, err := graph.Analyze(manifest)
			if err != nil {
				return fmt.Errorf("manifest %s is invalid: %w", path, err)
			}

			if exportDOT {
				dot, err := graph.ToDOT(manifest)
				if err != nil {
					return fmt.Errorf("failed to export DOT: %w", err)
				}
				fmt.Println(dot)
				return nil
			}

			if jsonOutput {
				return printInspectJSON(manifest, analysis)
			}

			printInspectReport(manifest, analysis)
			return nil
		},
	}

	cmd.Flags().BoolVar(&exportDOT, "dot", false, "export the graph in DOT format")

	return cmd
}

// loadManifest reads a manifest file, parsing JSON or YAML by extension.
func loadManifest(path string) (*graph.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if strings.HasSuffix(path, ".json") {
		return graph.ParseManifestJSON(data)
	}
	return graph.ParseManifestYAML(data)
}

func printInspectJSON(m *graph.Manifest, a *graph.Analysis) error {
	out := struct {
		Manifest    *graph.Manifest `json:"manifest"`
		Analysis    *graph.Analysis `json:"analysis"`
		ContentHash string          `json:"content_hash"`
	}{m, a, graph.ContentHash(m)}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printInspectReport(m *graph.Manifest, a *graph.Analysis) {
	fmt.Printf("Graph:        %s (%s)\n", m.GraphID, m.Name)
	fmt.Printf("Version:      %s\n", m.Version)
	fmt.Printf("Entry point:  %s\n", m.EntryPoint)
	fmt.Printf("Content hash: %s\n", graph.ContentHash(m))
	fmt.Printf("Nodes:        %d   Edges: %d (%d conditional)\n",
		m.NodeCount(), m.EdgeCount(), a.ConditionalEdges)

	fmt.Println("\nNodes:")
	names := m.NodeNames()
	sort.Strings(names)
	for _, name := range names {
		node := m.Nodes[name]
		fmt.Printf("  %-20s %s\n", name, node.Type)
	}

	fmt.Println("\nEdges:")
	for _, from := range names {
		for _, edge := range m.OutgoingEdges(from) {
			switch {
			case edge.Conditional:
				fmt.Printf("  %s -> %s  [when %s]\n", from, edge.To, edge.Condition)
			case edge.Parallel:
				fmt.Printf("  %s -> %s  [parallel]\n", from, edge.To)
			default:
				fmt.Printf("  %s -> %s\n", from, edge.To)
			}
		}
	}

	fmt.Println("\nExecution levels:")
	for i, level := range a.Levels {
		fmt.Printf("  %d: %s\n", i, strings.Join(level, ", "))
	}
}
