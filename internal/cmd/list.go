package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/forge/internal/report"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tasks in the task file",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("all", "a", false, "include hidden tasks")
}

func runList(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	s, err := newSession(cmd, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	report.List(cmd.OutOrStdout(), s.reg.Tasks(), all, s.color)
	return nil
}
