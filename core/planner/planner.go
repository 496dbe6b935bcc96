// Package planner turns wire requests into recorded schedules. It is the single
// entry point shared by the HTTP API, the MQTT responder and the CLI.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/taskplan/core/events"
	"github.com/kilianp07/taskplan/core/intake"
	"github.com/kilianp07/taskplan/core/logger"
	"github.com/kilianp07/taskplan/core/metrics"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/monitoring"
	"github.com/kilianp07/taskplan/core/runlog"
	"github.com/kilianp07/taskplan/core/scheduler"
	"github.com/kilianp07/taskplan/internal/eventbus"
)

// ErrInvalidRequest wraps every error caused by the request content rather
// than by the service.
var ErrInvalidRequest = errors.New("invalid request")

// Planner produces a schedule for a request.
type Planner interface {
	Plan(ctx context.Context, req model.Request) (model.Response, error)
}

type sourceKey struct{}

// WithSource tags ctx with the transport the request came from ("http", "mqtt", "cli").
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source stored by WithSource, or "unknown".
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// IsInvalidRequest reports whether err was caused by the request content.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, scheduler.ErrInvalidHorizon)
}

// LocalPlanner schedules requests in process.
type LocalPlanner struct {
	sched *scheduler.Scheduler
	conv  *intake.Converter
	store runlog.Store
	bus   *eventbus.Bus[events.Event]
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// Option customizes a LocalPlanner.
type Option func(*LocalPlanner)

// WithStore records every run in s.
func WithStore(s runlog.Store) Option { return func(p *LocalPlanner) { p.store = s } }

// WithBus publishes run events on b.
func WithBus(b *eventbus.Bus[events.Event]) Option { return func(p *LocalPlanner) { p.bus = b } }

// WithLogger sets the planner logger.
func WithLogger(l logger.Logger) Option { return func(p *LocalPlanner) { p.log = l } }

// WithClock sets the clock used for date conversion and run timestamps.
func WithClock(now func() time.Time) Option { return func(p *LocalPlanner) { p.now = now } }

// WithIDGenerator replaces the random run identifiers.
func WithIDGenerator(f func() string) Option { return func(p *LocalPlanner) { p.newID = f } }

// NewLocal returns a LocalPlanner around sched.
func NewLocal(sched *scheduler.Scheduler, opts ...Option) *LocalPlanner {
	p := &LocalPlanner{
		sched: sched,
		store: runlog.NopStore{},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	p.log = logger.OrNop(p.log)
	p.conv = intake.NewConverter(p.now)
	return p
}

// Plan converts, schedules and records req. The run log and event bus are
// best effort: failing to record a run does not fail the request.
func (p *LocalPlanner) Plan(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}
	source := SourceFrom(ctx)
	start := p.now()

	if err := intake.ValidateRequest(req); err != nil {
		return model.Response{}, p.fail(source, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}
	horizon := req.Horizon
	if horizon == 0 {
		horizon = p.sched.Config().Horizon
	}

	batch := p.conv.Convert(req)
	res, err := p.sched.ScheduleHorizon(batch.Tasks, horizon)
	if err != nil {
		return model.Response{}, p.fail(source, fmt.Errorf("schedule: %w", err))
	}
	merged := batch.Merge(res)
	id := p.newID()
	elapsed := p.now().Sub(start)

	if err := p.store.Append(ctx, runlog.NewRecord(id, source, start, len(req.Tasks), merged)); err != nil {
		p.log.Errorf("record run %s: %v", id, err)
		monitoring.CaptureException(err, map[string]string{"run_id": id, "source": source})
	}
	p.publish(events.RunCompleted{Run: metrics.NewScheduleRun(id, source, len(req.Tasks), merged, elapsed, start)})
	p.log.Infof("run %s from %s: %d/%d tasks scheduled, total benefit %g",
		id, source, len(merged.Scheduled), len(req.Tasks), merged.TotalBenefit)

	return batch.Response(id, merged), nil
}

func (p *LocalPlanner) fail(source string, err error) error {
	p.log.Warnf("plan from %s refused: %v", source, err)
	p.publish(events.PlanFailed{Source: source, Err: err, Time: p.now()})
	return err
}

func (p *LocalPlanner) publish(ev events.Event) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}
