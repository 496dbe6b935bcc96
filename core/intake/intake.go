// Package intake turns wire requests into scheduler input. Calendar dates are
// mapped to day indices relative to a reference day, and tasks that cannot be
// represented (blank names, bad dates) are rejected before scheduling.
package intake

import (
	"cmp"
	"slices"
	"strings"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
	"github.com/asaskevich/govalidator"

	"github.com/kilianp07/taskplan/core/model"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Converter maps wire tasks to model tasks. Now defaults to time.Now.
type Converter struct {
	Now func() time.Time
}

// NewConverter returns a Converter using the provided clock.
func NewConverter(now func() time.Time) *Converter {
	if now == nil {
		now = time.Now
	}
	return &Converter{Now: now}
}

// Batch is a converted request. Tasks[i] came from request index Origin[i].
type Batch struct {
	Tasks     []model.Task
	Origin    []int
	Rejected  []model.RejectedTask
	Reference time.Time
	UsesDates bool
}

// ValidateRequest checks the request as a whole. Per-task problems are not
// errors; they end up in Batch.Rejected.
func ValidateRequest(req model.Request) error {
	if req.Horizon < 0 {
		return goerrors.ErrValidation{
			Caller: "ValidateRequest",
			Issue: goerrors.ErrNegativeInput{
				InputName: "horizon",
			},
		}
	}
	return nil
}

// Reference returns the UTC midnight of the current day. Day index 1 is the
// reference day itself.
func (c *Converter) Reference() time.Time {
	now := c.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Convert validates every wire task and builds the scheduler input.
func (c *Converter) Convert(req model.Request) Batch {
	b := Batch{
		Reference: c.Reference(),
		Tasks:     make([]model.Task, 0, len(req.Tasks)),
		Origin:    make([]int, 0, len(req.Tasks)),
	}
	for i, wt := range req.Tasks {
		wt.Name = strings.TrimSpace(wt.Name)
		t := model.Task{Name: wt.Name, Deadline: wt.Deadline.Day, Benefit: wt.Value()}
		if _, err := govalidator.ValidateStruct(wt); err != nil {
			b.Rejected = append(b.Rejected, model.RejectedTask{
				Task:   t,
				Index:  i,
				Reason: model.ReasonInvalidName,
				Detail: nameIssue(t.Name, err),
			})
			continue
		}
		if wt.Deadline.IsDate() {
			b.UsesDates = true
			idx, err := DayIndex(wt.Deadline.Date, b.Reference)
			if err != nil {
				b.Rejected = append(b.Rejected, model.RejectedTask{
					Task:   t,
					Index:  i,
					Reason: model.ReasonInvalidDate,
					Detail: goerrors.ErrValidation{
						Caller: "Convert",
						Issue:  goerrors.ErrInvalidInput{InputName: "deadline"},
					}.Error(),
				})
				continue
			}
			t.Deadline = idx
		}
		b.Tasks = append(b.Tasks, t)
		b.Origin = append(b.Origin, i)
	}
	return b
}

func nameIssue(name string, cause error) string {
	var issue error = goerrors.ErrInvalidInput{InputName: "name", Issue: cause}
	if name == "" {
		issue = goerrors.ErrNilInput{InputName: "name"}
	}
	return goerrors.ErrValidation{Caller: "Convert", Issue: issue}.Error()
}

// DayIndex returns the 1-based day index of date relative to ref. Dates
// before ref yield indices <= 0. Full RFC 3339 timestamps are truncated to
// their UTC date.
func DayIndex(date string, ref time.Time) (int, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		ts, terr := time.Parse(time.RFC3339, date)
		if terr != nil {
			return 0, err
		}
		ts = ts.UTC()
		d = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	return int(d.Sub(ref)/day) + 1, nil
}

// SlotDate returns the calendar date of slot relative to ref.
func SlotDate(slot int, ref time.Time) string {
	return ref.Add(time.Duration(slot-1) * day).Format(DateLayout)
}

// Merge maps a scheduler result back onto request indices and folds in the
// intake rejections. Rejected tasks stay ordered by request index.
func (b Batch) Merge(res model.Result) model.Result {
	out := res
	out.Scheduled = make([]model.ScheduledTask, len(res.Scheduled))
	for i, st := range res.Scheduled {
		st.Index = b.Origin[st.Index]
		out.Scheduled[i] = st
	}
	out.Rejected = make([]model.RejectedTask, 0, len(res.Rejected)+len(b.Rejected))
	for _, rt := range res.Rejected {
		rt.Index = b.Origin[rt.Index]
		out.Rejected = append(out.Rejected, rt)
	}
	out.Rejected = append(out.Rejected, b.Rejected...)
	slices.SortFunc(out.Rejected, func(x, y model.RejectedTask) int { return cmp.Compare(x.Index, y.Index) })
	return out
}

// Response renders a merged result in wire form.
func (b Batch) Response(runID string, res model.Result) model.Response {
	resp := model.Response{
		RunID:          runID,
		Horizon:        res.Horizon,
		ScheduledTasks: make([]model.ScheduledEntry, 0, len(res.Scheduled)),
		RejectedTasks:  make([]model.RejectedEntry, 0, len(res.Rejected)),
		TotalBenefit:   res.TotalBenefit,
	}
	for _, st := range res.Scheduled {
		e := model.ScheduledEntry{
			Name:             st.Name,
			Deadline:         st.Slot,
			Slot:             st.Slot,
			OriginalDeadline: st.Deadline,
			Benefit:          st.Benefit,
		}
		if b.UsesDates {
			e.SlotDate = SlotDate(st.Slot, b.Reference)
		}
		resp.ScheduledTasks = append(resp.ScheduledTasks, e)
	}
	for _, rt := range res.Rejected {
		resp.RejectedTasks = append(resp.RejectedTasks, model.RejectedEntry{
			Name:     rt.Name,
			Deadline: rt.Deadline,
			Benefit:  rt.Benefit,
			Reason:   rt.Reason,
			Detail:   rt.Detail,
		})
	}
	return resp
}
