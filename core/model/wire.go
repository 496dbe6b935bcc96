package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Deadline is a task deadline as sent by clients: either a calendar date
// ("2025-06-30") or a day index (3).
type Deadline struct {
	Day  int
	Date string
}

// IsDate reports whether the deadline was given as a calendar date.
func (d Deadline) IsDate() bool { return d.Date != "" }

// MarshalJSON encodes the date as a string and the day index as a number.
func (d Deadline) MarshalJSON() ([]byte, error) {
	if d.IsDate() {
		return json.Marshal(d.Date)
	}
	return json.Marshal(d.Day)
}

// UnmarshalJSON accepts a JSON string or an integral JSON number.
func (d *Deadline) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Deadline{Date: s}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("deadline must be a date string or a day index: %w", err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("deadline %v is not a whole day", f)
	}
	*d = Deadline{Day: int(f)}
	return nil
}

// UnmarshalYAML accepts a scalar holding either a day index or a date.
func (d *Deadline) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("deadline must be a scalar, line %d", node.Line)
	}
	if n, err := strconv.Atoi(node.Value); err == nil {
		*d = Deadline{Day: n}
		return nil
	}
	*d = Deadline{Date: node.Value}
	return nil
}

// MaxNameLength bounds task names, counted in characters.
const MaxNameLength = 200

// WireTask is a task as received over HTTP, MQTT or from a task file.
// Profit is accepted as an alias of Benefit. Names are 1 to MaxNameLength
// characters once trimmed.
type WireTask struct {
	Name     string   `json:"name" yaml:"name" valid:"required,stringlength(1|200)"`
	Deadline Deadline `json:"deadline" yaml:"deadline"`
	Benefit  *float64 `json:"benefit,omitempty" yaml:"benefit,omitempty"`
	Profit   *float64 `json:"profit,omitempty" yaml:"profit,omitempty"`
}

// Value returns Benefit, falling back to Profit, or 0 when neither is set.
func (w WireTask) Value() float64 {
	switch {
	case w.Benefit != nil:
		return *w.Benefit
	case w.Profit != nil:
		return *w.Profit
	default:
		return 0
	}
}

// Request asks for one scheduling run. A zero Horizon uses the configured one.
type Request struct {
	Tasks   []WireTask `json:"tasks" yaml:"tasks"`
	Horizon int        `json:"horizon,omitempty" yaml:"horizon,omitempty"`
}

// ScheduledEntry is one row of the response schedule. Deadline carries the
// assigned slot; OriginalDeadline keeps the requested one.
type ScheduledEntry struct {
	Name             string  `json:"name"`
	Deadline         int     `json:"deadline"`
	Slot             int     `json:"slot"`
	SlotDate         string  `json:"slot_date,omitempty"`
	OriginalDeadline int     `json:"original_deadline"`
	Benefit          float64 `json:"benefit"`
}

// RejectedEntry is one rejected task in a response.
type RejectedEntry struct {
	Name     string       `json:"name"`
	Deadline int          `json:"deadline"`
	Benefit  float64      `json:"benefit"`
	Reason   RejectReason `json:"reason"`
	Detail   string       `json:"detail,omitempty"`
}

// Response is the answer to a Request.
type Response struct {
	RunID          string           `json:"run_id"`
	Horizon        int              `json:"horizon"`
	ScheduledTasks []ScheduledEntry `json:"scheduled_tasks"`
	RejectedTasks  []RejectedEntry  `json:"rejected_tasks"`
	TotalBenefit   float64          `json:"total_benefit"`
}
