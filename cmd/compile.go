package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mason-build/mason/pkg/scheduler"
)

var compileCmd = &cobra.Command{
	Use:   "compile [targets...]",
	Short: "Builds the requested targets",
	Long: `Builds the given targets and everything they depend on. Without
arguments every target marked build-by-default is built; test and benchmark
executables stay out unless requested through the test-prereq or
benchmark-prereq targets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := cmd.Flags().GetInt("jobs")
		if err != nil {
			return err
		}
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		ctx := loggerContext(cmd.Context())

		plan, err := env.sched.Plan(args, force)
		if err != nil {
			return err
		}

		opts := scheduler.ExecuteOptions{Jobs: jobs, DryRun: dryRun}
		if !dryRun && !plan.Empty() {
			bar := newProgressBar(len(plan.Steps), "building")
			opts.OnStatus = func(*scheduler.NodeResult) {
				bar.Add(1)
			}
		}

		result, err := env.sched.Execute(ctx, plan, opts)
		if err != nil {
			return err
		}

		if !result.OK() {
			return eris.Errorf("%d target(s) failed, %d skipped", result.Failed, result.Skipped)
		}

		return nil
	},
}

func newProgressBar(length int, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.Default(int64(length), desc)
}

func init() {
	compileCmd.Flags().IntP("jobs", "j", 0, "number of parallel build jobs (0 = number of CPUs)")
	compileCmd.Flags().BoolP("force", "f", false, "treat all requested targets as stale")
	compileCmd.Flags().BoolP("dry-run", "n", false, "only print the commands, don't execute anything")

	rootCmd.AddCommand(compileCmd)
}
