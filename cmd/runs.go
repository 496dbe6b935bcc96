package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/taskplan/core/runlog"
)

var (
	runsSince  time.Duration
	runsSource string
	runsTask   string
	runsLimit  int
	runsJSON   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded scheduling runs",
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.DurationVar(&runsSince, "since", 0, "only runs newer than this duration, e.g. 24h")
	f.StringVar(&runsSource, "source", "", "only runs from this source (http, mqtt, cli)")
	f.StringVar(&runsTask, "task", "", "only runs involving this task name")
	f.IntVar(&runsLimit, "limit", 20, "maximum number of runs, most recent last")
	f.BoolVar(&runsJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := runlog.NewStore(cfg.Logging)
	if err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	defer store.Close()

	q := runlog.Query{Source: runsSource, TaskName: runsTask, Limit: runsLimit}
	if runsSince > 0 {
		q.Start = time.Now().Add(-runsSince)
	}
	recs, err := store.Query(contextOf(cmd), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tID\tSOURCE\tTASKS\tSCHEDULED\tREJECTED\tBENEFIT")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%g\n",
			r.Timestamp.Format(time.RFC3339), r.ID, r.Source, r.TaskCount,
			len(r.Scheduled), len(r.Rejected), r.TotalBenefit)
	}
	return tw.Flush()
}
