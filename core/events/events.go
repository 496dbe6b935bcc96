package events

import (
	"time"

	"github.com/kilianp07/taskplan/core/metrics"
)

// Event is implemented by every event published on the planning bus.
type Event interface {
	Kind() string
}

// RunCompleted is published once a scheduling run has been recorded.
type RunCompleted struct {
	Run metrics.ScheduleRun
}

func (RunCompleted) Kind() string { return "run_completed" }

// PlanFailed is published when a request is refused, e.g. for an invalid horizon.
type PlanFailed struct {
	Source string
	Err    error
	Time   time.Time
}

func (PlanFailed) Kind() string { return "plan_failed" }
