// Package app wires configuration into a running taskplan service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/taskplan/api/schedule"
	"github.com/kilianp07/taskplan/config"
	"github.com/kilianp07/taskplan/core/events"
	coremetrics "github.com/kilianp07/taskplan/core/metrics"
	coremon "github.com/kilianp07/taskplan/core/monitoring"
	"github.com/kilianp07/taskplan/core/planner"
	"github.com/kilianp07/taskplan/core/runlog"
	"github.com/kilianp07/taskplan/core/scheduler"
	"github.com/kilianp07/taskplan/infra/logger"
	"github.com/kilianp07/taskplan/infra/metrics"
	"github.com/kilianp07/taskplan/infra/monitoring"
	"github.com/kilianp07/taskplan/infra/mqtt"
	"github.com/kilianp07/taskplan/internal/eventbus"
)

// ErrNothingToServe is returned by Run when neither HTTP nor MQTT is enabled.
var ErrNothingToServe = errors.New("nothing to serve: enable http or mqtt")

// Service runs the planner behind the configured transports.
type Service struct {
	cfg     *config.Config
	Planner *planner.LocalPlanner
	Store   runlog.Store
	bus     *eventbus.Bus[events.Event]
	sink    coremetrics.MetricsSink
	http    *schedule.Server
	log     logger.Logger
}

// Setup applies the process-wide settings: log level and error monitor.
func Setup(cfg *config.Config) error {
	logger.SetLevel(cfg.Log.Level)
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	return nil
}

// NewPlanner builds a LocalPlanner recording runs in the configured store.
// The caller owns the returned store.
func NewPlanner(cfg *config.Config, opts ...planner.Option) (*planner.LocalPlanner, runlog.Store, error) {
	sched, err := scheduler.New(cfg.Scheduler, logger.New("scheduler"))
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: %w", err)
	}
	store, err := runlog.NewStore(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("run log: %w", err)
	}
	opts = append([]planner.Option{planner.WithStore(store), planner.WithLogger(logger.New("planner"))}, opts...)
	return planner.NewLocal(sched, opts...), store, nil
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	bus := eventbus.New[events.Event]()
	p, store, err := NewPlanner(cfg, planner.WithBus(bus))
	if err != nil {
		return nil, err
	}
	log := logger.New("service")
	return &Service{
		cfg:     cfg,
		Planner: p,
		Store:   store,
		bus:     bus,
		sink:    sink,
		http:    schedule.New(cfg.HTTP, p, store, logger.New("http")),
		log:     log,
	}, nil
}

// Handler returns the HTTP API handler.
func (s *Service) Handler() http.Handler { return s.http }

// Run starts the enabled transports and blocks until ctx is canceled or one
// of them fails.
func (s *Service) Run(ctx context.Context) error {
	if !s.cfg.HTTP.Enabled && !s.cfg.MQTT.Enabled {
		return ErrNothingToServe
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collected := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("collector"))
	errc := make(chan error, 3)
	start := func(name string, fn func() error) {
		go func() {
			defer coremon.Recover()
			if err := fn(); err != nil {
				errc <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		start("prometheus", func() error { return metrics.StartPromServer(ctx, port) })
	}
	if s.cfg.HTTP.Enabled {
		start("http", func() error { return s.http.ListenAndServe(ctx) })
	}
	if s.cfg.MQTT.Enabled {
		responder, err := mqtt.NewResponder(ctx, s.cfg.MQTT, s.Planner)
		if err != nil {
			return err
		}
		defer responder.Close()
	}
	s.log.Infof("service started (horizon %d, slot finder %s)", s.cfg.Scheduler.Horizon, s.cfg.Scheduler.SlotFinder)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		coremon.CaptureException(err, map[string]string{"module": "service"})
		cancel()
	}
	<-collected
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	return s.Store.Close()
}
