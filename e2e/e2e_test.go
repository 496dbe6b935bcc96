package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/taskplan/app"
	"github.com/kilianp07/taskplan/config"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/infra/mqtt"
)

const configTemplate = `scheduler:
  horizon: 3
http:
  enabled: true
  address: %q
mqtt:
  enabled: true
  broker: %q
  client_id: "e2e-responder"
  qos: 1
metrics:
  prometheus_port: %q
  sinks:
    - type: prometheus
    - type: influx
      conf:
        url: %q
        token: %q
        org: %q
        bucket: %q
logging:
  backend: sqlite
  path: %q
`

var scenarioA = model.Request{Tasks: []model.WireTask{
	{Name: "T1", Deadline: model.Deadline{Day: 2}, Benefit: ptr(100)},
	{Name: "T2", Deadline: model.Deadline{Day: 1}, Benefit: ptr(19)},
	{Name: "T3", Deadline: model.Deadline{Day: 2}, Benefit: ptr(27)},
	{Name: "T4", Deadline: model.Deadline{Day: 1}, Benefit: ptr(25)},
	{Name: "T5", Deadline: model.Deadline{Day: 3}, Benefit: ptr(15)},
}}

func ptr(v float64) *float64 { return &v }

// Test_E2E_ScheduleFlow runs the whole service against InfluxDB and Mosquitto
// and plans the same batch over HTTP and MQTT.
func Test_E2E_ScheduleFlow(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxURL := startInflux(ctx, t)
	broker := startMosquitto(ctx, t)
	influx := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer influx.Close()
	require.NoError(t, influx.SetupBucket(ctx))

	dir := t.TempDir()
	httpAddr, promAddr := freeAddr(t), freeAddr(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(configTemplate, httpAddr, broker, promAddr,
		influxURL, influxToken, influxOrg, influxBucket, filepath.Join(dir, "runs.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()
	require.NoError(t, waitForBody(ctx, "http://"+httpAddr+"/", "running"))

	// HTTP
	payload, err := json.Marshal(scenarioA)
	require.NoError(t, err)
	resp, err := http.Post("http://"+httpAddr+"/schedule_tasks", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	var httpResp model.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&httpResp))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 142, httpResp.TotalBenefit, 1e-9)

	// MQTT
	req, err := mqtt.NewRequester(mqtt.Config{Broker: broker, ClientID: "e2e-requester", QoS: 1})
	require.NoError(t, err)
	defer req.Close()
	time.Sleep(300 * time.Millisecond)
	mqttResp, err := req.Plan(ctx, scenarioA)
	require.NoError(t, err)
	assert.Equal(t, httpResp.TotalBenefit, mqttResp.TotalBenefit)
	assert.Equal(t, len(httpResp.ScheduledTasks), len(mqttResp.ScheduledTasks))

	// Metrics
	require.NoError(t, waitForBody(ctx, "http://"+promAddr+"/metrics", `taskplan_runs_total{source="mqtt"}`))
	require.Eventually(t, func() bool {
		n, err := influx.CountPoints(ctx, "schedule_run", "total_benefit")
		return err == nil && n >= 2
	}, 10*time.Second, 200*time.Millisecond)

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if t.Failed() {
		msg := "schedule flow failed"
		rep.Failures = 1
		rep.Cases[0].Failure = &msg
	}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
