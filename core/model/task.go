package model

import (
	"fmt"
	"math"
)

// DefaultHorizon is the number of day slots used when no horizon is configured.
// It matches one calendar month.
const DefaultHorizon = 31

// Task is a unit of work that earns Benefit when it is placed in a slot no
// later than Deadline.
type Task struct {
	Name     string  `json:"name" yaml:"name"`
	Deadline int     `json:"deadline" yaml:"deadline"` // day index in [1, horizon]
	Benefit  float64 `json:"benefit" yaml:"benefit"`
}

// ValidBenefit reports whether the benefit is strictly positive and finite.
func (t Task) ValidBenefit() bool {
	return t.Benefit > 0 && !math.IsInf(t.Benefit, 0) && !math.IsNaN(t.Benefit)
}

// WithinHorizon reports whether the deadline lies in [1, horizon].
func (t Task) WithinHorizon(horizon int) bool {
	return t.Deadline >= 1 && t.Deadline <= horizon
}

func (t Task) String() string {
	return fmt.Sprintf("%s(deadline=%d, benefit=%g)", t.Name, t.Deadline, t.Benefit)
}

// ScheduledTask binds a task to the slot it was assigned. Index is the
// position of the task in the input batch.
type ScheduledTask struct {
	Task
	Index int `json:"index"`
	Slot  int `json:"slot"`
}

// RejectReason explains why a task did not make it into the schedule.
type RejectReason string

const (
	// ReasonInvalidBenefit marks a task whose benefit is not strictly positive.
	ReasonInvalidBenefit RejectReason = "invalid_benefit"
	// ReasonDeadlineOutOfRange marks a task whose deadline is outside [1, horizon].
	ReasonDeadlineOutOfRange RejectReason = "deadline_out_of_range"
	// ReasonUnschedulable marks a valid task for which no free slot remained.
	ReasonUnschedulable RejectReason = "unschedulable"
	// ReasonInvalidName is produced by intake for blank task names.
	ReasonInvalidName RejectReason = "invalid_name"
	// ReasonInvalidDate is produced by intake for unparseable calendar dates.
	ReasonInvalidDate RejectReason = "invalid_date"
)

// Reasons lists every reject reason, in a stable order.
var Reasons = []RejectReason{
	ReasonInvalidBenefit,
	ReasonDeadlineOutOfRange,
	ReasonUnschedulable,
	ReasonInvalidName,
	ReasonInvalidDate,
}

// RejectedTask is a task left out of the schedule together with the reason.
type RejectedTask struct {
	Task
	Index  int          `json:"index"`
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

// Result is the outcome of one scheduling run.
type Result struct {
	Scheduled    []ScheduledTask `json:"scheduled"`
	Rejected     []RejectedTask  `json:"rejected"`
	TotalBenefit float64         `json:"total_benefit"`
	Horizon      int             `json:"horizon"`
	// Probes counts the timeline slots inspected while searching for free slots.
	Probes int `json:"probes"`
}

// Utilization returns the fraction of horizon slots holding a task.
func (r Result) Utilization() float64 {
	if r.Horizon <= 0 {
		return 0
	}
	return float64(len(r.Scheduled)) / float64(r.Horizon)
}

// RejectedBy groups the rejected tasks count per reason.
func (r Result) RejectedBy() map[RejectReason]int {
	out := make(map[RejectReason]int)
	for _, rt := range r.Rejected {
		out[rt.Reason]++
	}
	return out
}
