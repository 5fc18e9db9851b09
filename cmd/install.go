package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mason-build/mason/pkg/scheduler"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Installs the project's installable outputs",
	Long: `Builds every installable target and copies its outputs into the
destination directory, preserving their build-directory layout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		destDir, err := cmd.Flags().GetString("destdir")
		if err != nil {
			return err
		}
		if destDir == "" {
			return eris.New("--destdir is required")
		}

		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		ctx := loggerContext(cmd.Context())

		var targets []string
		for _, node := range env.graph.Nodes() {
			if node.Installable {
				targets = append(targets, node.Name)
			}
		}
		if len(targets) == 0 {
			PrintTask("Nothing to install")
			return nil
		}

		plan, err := env.sched.Plan(targets, false)
		if err != nil {
			return err
		}
		result, err := env.sched.Execute(ctx, plan, scheduler.ExecuteOptions{})
		if err != nil {
			return err
		}
		if !result.OK() {
			return eris.Errorf("%d target(s) failed to build, not installing", result.Failed)
		}

		PrintTask("Installing")
		for _, name := range targets {
			node, _ := env.graph.Lookup(name)
			for _, out := range node.Outputs {
				dest := filepath.Join(destDir, out)
				if err := copyFile(filepath.Join(env.buildDir, out), dest); err != nil {
					return err
				}
				PrintSubtask(dest)
			}
		}

		return nil
	},
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0770); err != nil {
		return eris.Wrapf(err, "failed to create %s", filepath.Dir(dest))
	}

	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return eris.Wrapf(err, "failed to stat %s", src)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	if err != nil {
		return eris.Wrapf(err, "failed to copy %s to %s", src, dest)
	}
	return nil
}

func init() {
	installCmd.Flags().String("destdir", "", "directory to install into")

	rootCmd.AddCommand(installCmd)
}
