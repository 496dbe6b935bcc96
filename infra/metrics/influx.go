package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/taskplan/core/metrics"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/infra/logger"
)

// InfluxSink writes scheduling runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScheduleRun writes one "schedule_run" point, with one rejected_<reason>
// field per reject reason so that absent reasons read as zero.
func (s *InfluxSink) RecordScheduleRun(run coremetrics.ScheduleRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_run").
		AddTag("source", run.Source).
		AddTag("run_id", run.RunID).
		AddField("horizon", run.Horizon).
		AddField("tasks", run.Tasks).
		AddField("scheduled", run.Scheduled).
		AddField("total_benefit", round3(run.TotalBenefit)).
		AddField("utilization", round3(run.Utilization)).
		AddField("probes", run.Probes).
		AddField("duration_ms", round3(run.Duration.Seconds()*1000))
	for _, reason := range model.Reasons {
		p = p.AddField("rejected_"+string(reason), run.Rejected[reason])
	}
	p = p.SetTime(run.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlanError writes a "plan_error" point.
func (s *InfluxSink) RecordPlanError(ev coremetrics.PlanError) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	p := write.NewPointWithMeasurement("plan_error").
		AddTag("source", ev.Source).
		AddField("error", msg).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
