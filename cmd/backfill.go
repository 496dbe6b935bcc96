package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	coremetrics "github.com/kilianp07/taskplan/core/metrics"
	"github.com/kilianp07/taskplan/core/runlog"
	_ "github.com/kilianp07/taskplan/infra/metrics" // registers sinks
	"github.com/kilianp07/taskplan/jobs/backfill"
)

var backfillSince time.Duration

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay recorded runs into the configured metrics sinks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := runlog.NewStore(cfg.Logging)
		if err != nil {
			return fmt.Errorf("run log: %w", err)
		}
		defer store.Close()
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return fmt.Errorf("metrics sink: %w", err)
		}
		if c, ok := sink.(interface{ Close() }); ok {
			defer c.Close()
		}

		var q runlog.Query
		if backfillSince > 0 {
			q.Start = time.Now().Add(-backfillSince)
		}
		n, err := backfill.Replay(contextOf(cmd), store, q, sink)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d runs\n", n)
		return nil
	},
}

func init() {
	backfillCmd.Flags().DurationVar(&backfillSince, "since", 0, "only runs newer than this duration")
	rootCmd.AddCommand(backfillCmd)
}
