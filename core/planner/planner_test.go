package planner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/taskplan/core/events"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/runlog"
	"github.com/kilianp07/taskplan/core/scheduler"
	"github.com/kilianp07/taskplan/internal/eventbus"
)

var fixedNow = time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

func benefit(v float64) *float64 { return &v }

func task(name string, deadline int, b float64) model.WireTask {
	return model.WireTask{Name: name, Deadline: model.Deadline{Day: deadline}, Benefit: benefit(b)}
}

func newTestPlanner(t *testing.T, opts ...Option) (*LocalPlanner, *runlog.JSONLStore, *eventbus.Bus[events.Event]) {
	t.Helper()
	sched, err := scheduler.New(scheduler.Config{}, nil)
	require.NoError(t, err)
	store, err := runlog.NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	bus := eventbus.New[events.Event]()
	t.Cleanup(bus.Close)
	base := []Option{
		WithStore(store),
		WithBus(bus),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "run-1" }),
	}
	return NewLocal(sched, append(base, opts...)...), store, bus
}

func TestLocalPlanner_ScenarioA(t *testing.T) {
	p, store, bus := newTestPlanner(t)
	sub := bus.Subscribe()

	ctx := WithSource(context.Background(), "http")
	resp, err := p.Plan(ctx, model.Request{Horizon: 3, Tasks: []model.WireTask{
		task("T1", 2, 100), task("T2", 1, 19), task("T3", 2, 27), task("T4", 1, 25), task("T5", 3, 15),
	}})
	require.NoError(t, err)

	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 3, resp.Horizon)
	assert.InDelta(t, 142.0, resp.TotalBenefit, 1e-9)
	require.Len(t, resp.ScheduledTasks, 3)
	assert.Equal(t, "T3", resp.ScheduledTasks[0].Name)
	assert.Equal(t, 1, resp.ScheduledTasks[0].Deadline)
	assert.Equal(t, 2, resp.ScheduledTasks[0].OriginalDeadline)
	assert.Empty(t, resp.ScheduledTasks[0].SlotDate, "index deadlines carry no dates")
	require.Len(t, resp.RejectedTasks, 2)
	assert.Equal(t, "T2", resp.RejectedTasks[0].Name)
	assert.Equal(t, model.ReasonUnschedulable, resp.RejectedTasks[0].Reason)

	recs, err := store.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "http", recs[0].Source)
	assert.Equal(t, 5, recs[0].TaskCount)
	assert.True(t, recs[0].HasTask("T4"))

	ev := <-sub
	done, ok := ev.(events.RunCompleted)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, 3, done.Run.Scheduled)
	assert.Equal(t, 2, done.Run.Rejected[model.ReasonUnschedulable])
}

func TestLocalPlanner_CalendarDates(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	resp, err := p.Plan(context.Background(), model.Request{Tasks: []model.WireTask{
		{Name: "report", Deadline: model.Deadline{Date: "2025-06-11"}, Profit: benefit(40)},
		{Name: "audit", Deadline: model.Deadline{Date: "2025-06-11"}, Benefit: benefit(60)},
		{Name: "late", Deadline: model.Deadline{Date: "2025-06-01"}, Benefit: benefit(10)},
		{Name: "broken", Deadline: model.Deadline{Date: "11/06/2025"}, Benefit: benefit(10)},
		{Name: "  ", Deadline: model.Deadline{Day: 3}, Benefit: benefit(10)},
	}})
	require.NoError(t, err)

	assert.Equal(t, 31, resp.Horizon)
	require.Len(t, resp.ScheduledTasks, 2)
	assert.Equal(t, "report", resp.ScheduledTasks[0].Name)
	assert.Equal(t, "2025-06-10", resp.ScheduledTasks[0].SlotDate)
	assert.Equal(t, "audit", resp.ScheduledTasks[1].Name)
	assert.Equal(t, "2025-06-11", resp.ScheduledTasks[1].SlotDate)
	assert.InDelta(t, 100.0, resp.TotalBenefit, 1e-9)

	reasons := make(map[string]model.RejectReason)
	for _, r := range resp.RejectedTasks {
		reasons[r.Name] = r.Reason
	}
	assert.Equal(t, model.ReasonDeadlineOutOfRange, reasons["late"])
	assert.Equal(t, model.ReasonInvalidDate, reasons["broken"])
	assert.Equal(t, model.ReasonInvalidName, reasons[""])
}

func TestLocalPlanner_InvalidHorizon(t *testing.T) {
	p, store, bus := newTestPlanner(t)
	sub := bus.Subscribe()

	_, err := p.Plan(WithSource(context.Background(), "mqtt"), model.Request{Horizon: -2})
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))

	ev := <-sub
	failed, ok := ev.(events.PlanFailed)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "mqtt", failed.Source)

	recs, err := store.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	assert.Empty(t, recs, "refused requests are not recorded")
}

func TestLocalPlanner_CanceledContext(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Plan(ctx, model.Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsInvalidRequest(err))
}

func TestLocalPlanner_EmptyRequest(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	resp, err := p.Plan(context.Background(), model.Request{})
	require.NoError(t, err)
	assert.NotNil(t, resp.ScheduledTasks)
	assert.NotNil(t, resp.RejectedTasks)
	assert.Zero(t, resp.TotalBenefit)
}

func TestSourceFrom(t *testing.T) {
	assert.Equal(t, "unknown", SourceFrom(context.Background()))
	assert.Equal(t, "cli", SourceFrom(WithSource(context.Background(), "cli")))
}
