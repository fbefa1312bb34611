package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/forge/internal/report"
)

// defaultTask runs when forge run is given no task names.
const defaultTask = "default"

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run tasks and their dependencies",
	Long: `Run the named tasks. Every dependency runs first, exactly once, and
independent tasks run in parallel. When a task fails, only the tasks that
depend on it are skipped.

Without task names, runs the "default" task if the task file declares one
and lists the available tasks otherwise.

Exit status is 0 on success, 1 on failure or partial failure, and 130 when
interrupted.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("max-parallel", "j", 0, "maximum number of tasks running at once (0 = unbounded)")
	runCmd.Flags().String("timeout", "", "per-task time limit, e.g. 5m")
	bindFlag("run.max_parallel", runCmd, "max-parallel")
	bindFlag("run.task_timeout", runCmd, "timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	targets := args
	if len(targets) == 0 {
		if !s.reg.Has(defaultTask) {
			report.List(cmd.OutOrStdout(), s.reg.Tasks(), false, s.color)
			return nil
		}
		targets = []string{defaultTask}
	}

	plan, err := s.reg.Resolve(targets...)
	if err != nil {
		return err
	}

	result := s.executor().Run(cmd.Context(), plan)
	report.Render(cmd.OutOrStdout(), result, s.color)

	if code := report.ExitCode(result); code != report.ExitOK {
		return &exitError{code: code}
	}
	return nil
}
