package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/mason-build/mason/pkg/introspect"
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Prints machine-readable build information",
	Long: `Dumps the configured graph as JSON for external tooling. With one
of the section flags only that section is printed; otherwise the complete
snapshot is.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}

		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			return err
		}

		view := introspect.Snapshot(env.graph, env.options)
		if all {
			return view.WriteJSON(os.Stdout)
		}

		sections := map[string]interface{}{
			"targets":      view.Targets,
			"tests":        view.Tests,
			"benchmarks":   view.Benchmarks,
			"buildoptions": view.Options,
		}

		var requested []string
		for name := range sections {
			enabled, err := cmd.Flags().GetBool(name)
			if err != nil {
				return err
			}
			if enabled {
				requested = append(requested, name)
			}
		}

		if len(requested) == 1 {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(sections[requested[0]])
		}

		return view.WriteJSON(os.Stdout)
	},
}

func init() {
	introspectCmd.Flags().Bool("targets", false, "list the graph's targets")
	introspectCmd.Flags().Bool("tests", false, "list the registered tests")
	introspectCmd.Flags().Bool("benchmarks", false, "list the registered benchmarks")
	introspectCmd.Flags().Bool("buildoptions", false, "list the configured build options")
	introspectCmd.Flags().Bool("all", false, "print the complete snapshot")

	rootCmd.AddCommand(introspectCmd)
}
