package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/taskplan/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records scheduling runs in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	scheduled   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	benefit     *prometheus.HistogramVec
	duration    *prometheus.HistogramVec
	utilization *prometheus.GaugeVec
	planErrors  *prometheus.CounterVec
}

// NewPromSink registers scheduling metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused, so several sinks may share them.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskplan_runs_total",
			Help: "Total number of scheduling runs",
		}, []string{"source"}),
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskplan_tasks_scheduled_total",
			Help: "Total number of tasks placed in a slot",
		}, []string{"source"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskplan_tasks_rejected_total",
			Help: "Total number of tasks left out of a schedule",
		}, []string{"source", "reason"}),
		benefit: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskplan_run_benefit",
			Help:    "Total benefit collected per run",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}, []string{"source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskplan_run_duration_seconds",
			Help:    "Time spent planning a request",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskplan_slot_utilization_ratio",
			Help: "Fraction of horizon slots used by the last run",
		}, []string{"source"}),
		planErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskplan_plan_errors_total",
			Help: "Requests refused before scheduling",
		}, []string{"source"}),
	}

	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.scheduled, err = register(reg, s.scheduled); err != nil {
		return nil, err
	}
	if s.rejected, err = register(reg, s.rejected); err != nil {
		return nil, err
	}
	if s.benefit, err = register(reg, s.benefit); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, s.utilization); err != nil {
		return nil, err
	}
	if s.planErrors, err = register(reg, s.planErrors); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordScheduleRun updates the counters and histograms for one run.
func (s *PromSink) RecordScheduleRun(run coremetrics.ScheduleRun) error {
	src := run.Source
	s.runs.WithLabelValues(src).Inc()
	s.scheduled.WithLabelValues(src).Add(float64(run.Scheduled))
	for reason, n := range run.Rejected {
		s.rejected.WithLabelValues(src, string(reason)).Add(float64(n))
	}
	s.benefit.WithLabelValues(src).Observe(run.TotalBenefit)
	s.duration.WithLabelValues(src).Observe(run.Duration.Seconds())
	s.utilization.WithLabelValues(src).Set(run.Utilization)
	return nil
}

// RecordPlanError counts a refused request.
func (s *PromSink) RecordPlanError(ev coremetrics.PlanError) error {
	s.planErrors.WithLabelValues(ev.Source).Inc()
	return nil
}
