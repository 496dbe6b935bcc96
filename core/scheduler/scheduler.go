package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kilianp07/taskplan/core/logger"
	"github.com/kilianp07/taskplan/core/model"
)

// ErrInvalidHorizon is returned when the horizon is not a positive number of slots.
var ErrInvalidHorizon = errors.New("horizon must be positive")

// auditMaxTasks bounds the batch size for which the LP audit runs.
const auditMaxTasks = 200

// Scheduler runs the greedy slot assignment with a fixed configuration.
// It holds no per-run state and is safe for concurrent use.
type Scheduler struct {
	cfg Config
	log logger.Logger
}

// New validates cfg and returns a Scheduler. A nil logger discards output.
func New(cfg Config, log logger.Logger) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, log: logger.OrNop(log)}, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Schedule assigns tasks within the configured horizon.
func (s *Scheduler) Schedule(tasks []model.Task) (model.Result, error) {
	return s.ScheduleHorizon(tasks, s.cfg.Horizon)
}

// ScheduleHorizon assigns tasks within an explicit horizon.
func (s *Scheduler) ScheduleHorizon(tasks []model.Task, horizon int) (model.Result, error) {
	res, err := run(tasks, horizon, s.cfg.SlotFinder)
	if err != nil {
		return res, err
	}
	s.log.Debugw("schedule computed", map[string]any{
		"tasks":         len(tasks),
		"scheduled":     len(res.Scheduled),
		"rejected":      len(res.Rejected),
		"total_benefit": res.TotalBenefit,
		"probes":        res.Probes,
	})
	for _, r := range res.Rejected {
		s.log.Debugf("task %q rejected: %s", r.Name, r.Reason)
	}
	if s.cfg.Audit {
		s.audit(tasks, horizon, res)
	}
	return res, nil
}

func (s *Scheduler) audit(tasks []model.Task, horizon int, res model.Result) {
	if len(tasks) > auditMaxTasks {
		s.log.Debugf("audit skipped: %d tasks exceeds %d", len(tasks), auditMaxTasks)
		return
	}
	opt, err := OptimalBenefit(tasks, horizon)
	if err != nil {
		s.log.Warnf("audit failed: %v", err)
		return
	}
	if math.Abs(opt-res.TotalBenefit) > 1e-6 {
		s.log.Warnf("greedy total %.3f below optimum %.3f", res.TotalBenefit, opt)
	}
}

// Schedule assigns tasks to slots in [1, horizon] using the linear timeline.
func Schedule(tasks []model.Task, horizon int) (model.Result, error) {
	return run(tasks, horizon, FinderLinear)
}

type candidate struct {
	task  model.Task
	index int
}

func run(tasks []model.Task, horizon int, finder string) (model.Result, error) {
	if horizon <= 0 {
		return model.Result{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	res := model.Result{
		Horizon:   horizon,
		Scheduled: []model.ScheduledTask{},
		Rejected:  []model.RejectedTask{},
	}

	cands := make([]candidate, 0, len(tasks))
	for i, t := range tasks {
		switch {
		case !t.ValidBenefit():
			res.Rejected = append(res.Rejected, model.RejectedTask{Task: t, Index: i, Reason: model.ReasonInvalidBenefit})
		case !t.WithinHorizon(horizon):
			res.Rejected = append(res.Rejected, model.RejectedTask{Task: t, Index: i, Reason: model.ReasonDeadlineOutOfRange})
		default:
			cands = append(cands, candidate{task: t, index: i})
		}
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		return cmp.Compare(b.task.Benefit, a.task.Benefit)
	})

	slots := newSlotFinder(finder, horizon)
	for _, c := range cands {
		slot, ok := slots.take(c.task.Deadline)
		if !ok {
			res.Rejected = append(res.Rejected, model.RejectedTask{Task: c.task, Index: c.index, Reason: model.ReasonUnschedulable})
			continue
		}
		res.Scheduled = append(res.Scheduled, model.ScheduledTask{Task: c.task, Index: c.index, Slot: slot})
	}
	res.Probes = slots.probes()

	slices.SortFunc(res.Scheduled, func(a, b model.ScheduledTask) int { return cmp.Compare(a.Slot, b.Slot) })
	slices.SortFunc(res.Rejected, func(a, b model.RejectedTask) int { return cmp.Compare(a.Index, b.Index) })
	for _, st := range res.Scheduled {
		res.TotalBenefit += st.Benefit
	}
	return res, nil
}
