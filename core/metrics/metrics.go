package metrics

import (
	"time"

	"github.com/kilianp07/taskplan/core/model"
)

// ScheduleRun summarizes one scheduling run for observability purposes.
type ScheduleRun struct {
	RunID        string
	Source       string
	Horizon      int
	Tasks        int
	Scheduled    int
	Rejected     map[model.RejectReason]int
	TotalBenefit float64
	Utilization  float64
	Probes       int
	Duration     time.Duration
	Time         time.Time
}

// RejectedTotal returns the number of rejected tasks over every reason.
func (r ScheduleRun) RejectedTotal() int {
	n := 0
	for _, c := range r.Rejected {
		n += c
	}
	return n
}

// NewScheduleRun builds the summary of a merged result.
func NewScheduleRun(runID, source string, tasks int, res model.Result, d time.Duration, at time.Time) ScheduleRun {
	return ScheduleRun{
		RunID:        runID,
		Source:       source,
		Horizon:      res.Horizon,
		Tasks:        tasks,
		Scheduled:    len(res.Scheduled),
		Rejected:     res.RejectedBy(),
		TotalBenefit: res.TotalBenefit,
		Utilization:  res.Utilization(),
		Probes:       res.Probes,
		Duration:     d,
		Time:         at,
	}
}

// MetricsSink records scheduling runs.
type MetricsSink interface {
	RecordScheduleRun(run ScheduleRun) error
}

// PlanError describes a request that could not be planned at all.
type PlanError struct {
	Source string
	Err    error
	Time   time.Time
}

// PlanErrorRecorder is implemented by sinks able to count failed requests.
type PlanErrorRecorder interface {
	RecordPlanError(ev PlanError) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordScheduleRun(ScheduleRun) error { return nil }
func (NopSink) RecordPlanError(PlanError) error     { return nil }

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScheduleRun forwards the run to all sinks, returning the first error encountered.
func (m *MultiSink) RecordScheduleRun(run ScheduleRun) error {
	for _, s := range m.Sinks {
		if err := s.RecordScheduleRun(run); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlanError forwards plan errors when supported by the sink.
func (m *MultiSink) RecordPlanError(ev PlanError) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PlanErrorRecorder); ok {
			if err := rec.RecordPlanError(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink holding resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
