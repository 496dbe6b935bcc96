// Package backfill replays recorded scheduling runs into metrics sinks, for
// example after enabling InfluxDB on a service that already has history.
package backfill

import (
	"context"
	"fmt"

	coremetrics "github.com/kilianp07/taskplan/core/metrics"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/runlog"
)

// Replay sends every record matching q to sink and returns how many were sent.
// Probes and durations are not part of the run log and are reported as zero.
func Replay(ctx context.Context, store runlog.Store, q runlog.Query, sink coremetrics.MetricsSink) (int, error) {
	recs, err := store.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("query run log: %w", err)
	}
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		res := model.Result{
			Scheduled:    rec.Scheduled,
			Rejected:     rec.Rejected,
			TotalBenefit: rec.TotalBenefit,
			Horizon:      rec.Horizon,
		}
		run := coremetrics.NewScheduleRun(rec.ID, rec.Source, rec.TaskCount, res, 0, rec.Timestamp)
		if err := sink.RecordScheduleRun(run); err != nil {
			return i, fmt.Errorf("record run %s: %w", rec.ID, err)
		}
	}
	return len(recs), nil
}
