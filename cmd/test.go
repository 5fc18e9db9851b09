package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mason-build/mason/pkg/testrunner"
)

var testCmd = &cobra.Command{
	Use:   "test [patterns...]",
	Short: "Builds and runs tests",
	Long: `Runs the project's tests. Name patterns restrict the selection;
--suite/--no-suite filter by suite tag, exclusion winning on conflict. Test
prerequisites are brought up to date first unless --no-rebuild is given, in
which case a stale build directory fails the run instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		suites, err := flags.GetStringArray("suite")
		if err != nil {
			return err
		}
		noSuites, err := flags.GetStringArray("no-suite")
		if err != nil {
			return err
		}
		jobs, err := flags.GetInt("num-processes")
		if err != nil {
			return err
		}
		maxFail, err := flags.GetInt("maxfail")
		if err != nil {
			return err
		}
		multiplier, err := flags.GetFloat64("timeout-multiplier")
		if err != nil {
			return err
		}
		noRebuild, err := flags.GetBool("no-rebuild")
		if err != nil {
			return err
		}
		benchmark, err := flags.GetBool("benchmark")
		if err != nil {
			return err
		}

		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		ctx := loggerContext(cmd.Context())

		selected, err := testrunner.Select(env.graph.Tests(), args, suites, noSuites, benchmark)
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			PrintTask("No tests matched the given filters")
			return nil
		}

		runner := testrunner.New(env.graph, env.sched, env.dirs, nil)
		report, err := runner.Run(ctx, selected, testrunner.Options{
			Jobs:              jobs,
			TimeoutMultiplier: multiplier,
			MaxFail:           maxFail,
			NoRebuild:         noRebuild,
			ScratchRoot:       filepath.Join(env.buildDir, "mason-private", "tests"),
		})
		if err != nil {
			return err
		}

		if err := writeTestLog(env.buildDir, report); err != nil {
			PrintError(err.Error())
		}

		PrintTask(fmt.Sprintf("%d passed, %d failed, %d timed out, %d skipped",
			report.Passed, report.Failed, report.Timeouts, report.Skipped))
		for _, res := range report.Results {
			if res.Outcome != testrunner.OutcomePass {
				PrintError(fmt.Sprintf("%s: %s", res.Case.Name, res.Outcome))
			}
		}

		if !report.OK() {
			return eris.New("test run failed")
		}
		return nil
	},
}

// writeTestLog stores the machine-readable result log next to the other
// build-directory logs.
func writeTestLog(buildDir string, report *testrunner.Report) error {
	logDir := filepath.Join(buildDir, "mason-logs")
	if err := os.MkdirAll(logDir, 0770); err != nil {
		return eris.Wrapf(err, "failed to create %s", logDir)
	}

	handle, err := os.Create(filepath.Join(logDir, "testlog.json"))
	if err != nil {
		return eris.Wrap(err, "failed to create test log")
	}
	defer handle.Close()

	return report.WriteJSON(handle)
}

func init() {
	testCmd.Flags().StringArray("suite", nil, "only run tests from this suite (repeatable)")
	testCmd.Flags().StringArray("no-suite", nil, "never run tests from this suite (repeatable)")
	testCmd.Flags().IntP("num-processes", "j", 0, "number of parallel test processes (0 = one per test)")
	testCmd.Flags().Int("maxfail", 0, "stop scheduling new tests after this many failures (0 = unlimited)")
	testCmd.Flags().Float64P("timeout-multiplier", "t", 1, "scale factor for test timeouts")
	testCmd.Flags().Bool("no-rebuild", false, "don't rebuild prerequisites, fail if they are stale")
	testCmd.Flags().Bool("benchmark", false, "run benchmarks instead of tests")

	rootCmd.AddCommand(testCmd)
}
