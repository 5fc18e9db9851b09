// Package cmd implements the mason CLI. The build-directory state consumed
// here is produced by the configuring front end; every subcommand operates
// relative to the directory given with -C.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mason",
	Short: "Build-graph driver",
	Long: `Mason drives configured build directories: it plans and executes
incremental builds, runs tests and benchmarks and answers introspection
queries for external tooling.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("builddir", "C", ".", "path to the configured build directory")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
