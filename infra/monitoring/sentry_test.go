package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/taskplan/config"
	coremon "github.com/kilianp07/taskplan/core/monitoring"
)

type captureTransport struct {
	events []*sentry.Event
}

func (c *captureTransport) Configure(sentry.ClientOptions)       {}
func (c *captureTransport) SendEvent(e *sentry.Event)            { c.events = append(c.events, e) }
func (c *captureTransport) Flush(time.Duration) bool             { return true }
func (c *captureTransport) FlushWithContext(context.Context) bool { return true }
func (c *captureTransport) Close()                               {}

func TestNewSentryMonitor_NoDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitor_CaptureWithTags(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://key@o0.ingest.sentry.io/1", Transport: tr})
	require.NoError(t, err)
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}

	m.CaptureException(errors.New("store down"), map[string]string{"run_id": "r1"})
	m.CaptureException(nil, nil)
	m.ReportPanic("kaboom")

	require.Len(t, tr.events, 2)
	assert.Equal(t, "r1", tr.events[0].Tags["run_id"])
	assert.Equal(t, "taskplan", tr.events[0].Tags["service"])
}
