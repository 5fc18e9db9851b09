package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mason-build/mason/pkg/dist"
)

var distCmd = &cobra.Command{
	Use:   "dist",
	Short: "Creates a source archive",
	Long:  `Packages the project's source tree into release archives with checksum files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formats, err := cmd.Flags().GetStringSlice("formats")
		if err != nil {
			return err
		}
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return err
		}

		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}

		if name == "" {
			name = filepath.Base(env.state.SourceRoot)
		}

		PrintTask("Creating source archives")
		archives, err := dist.Create(env.state.SourceRoot, env.buildDir, name, formats)
		if err != nil {
			return err
		}

		for _, archive := range archives {
			PrintSubtask(archive)
		}
		return nil
	},
}

func init() {
	distCmd.Flags().StringSlice("formats", []string{dist.DefaultFormat}, "archive formats to create (xztar, gztar, zip)")
	distCmd.Flags().String("name", "", "base name of the archives (defaults to the source directory name)")

	rootCmd.AddCommand(distCmd)
}
