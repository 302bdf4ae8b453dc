package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph/pkg/platform"
)

func newPlatformCommand() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "platform",
		Short: "Describe the platform's modules and features",
		Long: `Print the platform self-knowledge registry.

The registry lists every module, its public operations with
signatures, and the platform's features with their backends. It is
the same data exposed programmatically for agent tooling.`,
		Example: `  # Human-readable overview
  flowgraph platform

  # Full registry as JSON
  flowgraph platform --json

  # Search operations and features
  flowgraph platform --search checkpoint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := platform.Discover()

			if search != "" {
				for _, hit := range reg.Search(search) {
					fmt.Println(hit)
				}
				return nil
			}

			if jsonOutput {
				out, err := reg.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to encode registry: %w", err)
				}
				fmt.Println(out)
				return nil
			}

			printPlatformReport(reg)
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "search modules, operations, and features")

	return cmd
}

func printPlatformReport(reg *platform.Registry) {
	fmt.Printf("FlowGraph %s: %d modules, %d operations, %d features\n\n",
		reg.Version, reg.Metadata.ModuleCount, reg.Metadata.APICount,
		reg.Metadata.FeatureCount)

	fmt.Println("Modules:")
	for _, m := range reg.Modules {
		fmt.Printf("  %-12s %s\n", m.Name, m.Description)
		for _, api := range m.APIs {
			fmt.Printf("    %-28s %s\n", api.Name, api.Description)
		}
	}

	fmt.Println("\nFeatures:")
	for _, f := range reg.Features {
		suffix := ""
		if len(f.Backends) > 0 {
			suffix = fmt.Sprintf("  [%s]", strings.Join(f.Backends, ", "))
		}
		fmt.Printf("  %-16s %s%s\n", f.Name, f.Summary, suffix)
	}
}
