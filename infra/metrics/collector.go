package metrics

import (
	"context"

	"github.com/kilianp07/taskplan/core/events"
	coremetrics "github.com/kilianp07/taskplan/core/metrics"
	"github.com/kilianp07/taskplan/infra/logger"
	"github.com/kilianp07/taskplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed. The returned
// channel is closed once the collector goroutine has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.RunCompleted:
					if err := sink.RecordScheduleRun(e.Run); err != nil {
						log.Warnf("record run %s: %v", e.Run.RunID, err)
					}
				case events.PlanFailed:
					if r, ok := sink.(coremetrics.PlanErrorRecorder); ok {
						if err := r.RecordPlanError(coremetrics.PlanError{Source: e.Source, Err: e.Err, Time: e.Time}); err != nil {
							log.Warnf("record plan error: %v", err)
						}
					}
				}
			}
		}
	}()
	return done
}
