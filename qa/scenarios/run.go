package scenarios

import (
	"fmt"
	"math"
	"slices"

	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/scheduler"
)

// Report is the outcome of running one scenario.
type Report struct {
	Name     string
	Result   model.Result
	Failures []string
}

// Passed reports whether every expectation held.
func (r Report) Passed() bool { return len(r.Failures) == 0 }

// Run schedules the scenario tasks and compares the result with the expectations.
// The returned error is reserved for scenarios that cannot run at all.
func Run(sc *Scenario) (Report, error) {
	sched, err := scheduler.New(scheduler.Config{Horizon: sc.Horizon, SlotFinder: sc.SlotFinder}, nil)
	if err != nil {
		return Report{Name: sc.Name}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	res, err := sched.Schedule(sc.Tasks)
	if err != nil {
		return Report{Name: sc.Name}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	rep := Report{Name: sc.Name, Result: res}
	exp := sc.Expected

	if exp.TotalBenefit != nil && math.Abs(*exp.TotalBenefit-res.TotalBenefit) > 1e-9 {
		rep.fail("total benefit %g, want %g", res.TotalBenefit, *exp.TotalBenefit)
	}
	scheduled := make([]string, len(res.Scheduled))
	slots := make(map[string]int, len(res.Scheduled))
	for i, st := range res.Scheduled {
		scheduled[i] = st.Name
		slots[st.Name] = st.Slot
	}
	if exp.Scheduled != nil && !slices.Equal(scheduled, exp.Scheduled) {
		rep.fail("scheduled %v, want %v", scheduled, exp.Scheduled)
	}
	for name, want := range exp.Slots {
		if got, ok := slots[name]; !ok || got != want {
			rep.fail("task %s in slot %d, want %d", name, got, want)
		}
	}
	rejected := make([]string, len(res.Rejected))
	reasons := make(map[string]string, len(res.Rejected))
	for i, rt := range res.Rejected {
		rejected[i] = rt.Name
		reasons[rt.Name] = string(rt.Reason)
	}
	if exp.Rejected != nil && !slices.Equal(rejected, exp.Rejected) {
		rep.fail("rejected %v, want %v", rejected, exp.Rejected)
	}
	for name, want := range exp.Reasons {
		if reasons[name] != want {
			rep.fail("task %s rejected for %q, want %q", name, reasons[name], want)
		}
	}
	if exp.Probes != nil && res.Probes != *exp.Probes {
		rep.fail("probes %d, want %d", res.Probes, *exp.Probes)
	}
	return rep, nil
}

// RunAll runs every scenario, once per slot finder when the scenario does
// not pin one.
func RunAll(scs []*Scenario) ([]Report, error) {
	var out []Report
	for _, sc := range scs {
		finders := []string{sc.SlotFinder}
		if sc.SlotFinder == "" {
			finders = []string{scheduler.FinderLinear, scheduler.FinderDisjointSet}
		}
		for _, f := range finders {
			variant := *sc
			variant.SlotFinder = f
			variant.Name = sc.Name + "/" + f
			if f == scheduler.FinderDisjointSet {
				// probe counts differ between finders
				variant.Expected.Probes = nil
			}
			rep, err := Run(&variant)
			if err != nil {
				return out, err
			}
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r *Report) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}
