package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/taskplan/qa/scenarios"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Scheduling acceptance scenarios",
}

var scenariosRunCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Run every scenario file of a directory with both slot finders",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "qa/scenarios/testdata"
		if len(args) == 1 {
			dir = args[0]
		}
		scs, err := scenarios.LoadDir(dir)
		if err != nil {
			return err
		}
		reports, err := scenarios.RunAll(scs)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range reports {
			if r.Passed() {
				fmt.Fprintf(out, "PASS  %s\n", r.Name)
				continue
			}
			failed++
			fmt.Fprintf(out, "FAIL  %s\n      %s\n", r.Name, strings.Join(r.Failures, "\n      "))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(reports))
		}
		return nil
	},
}

func init() {
	scenariosCmd.AddCommand(scenariosRunCmd)
	rootCmd.AddCommand(scenariosCmd)
}
