package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/taskplan/core/monitoring"
	"github.com/kilianp07/taskplan/infra/logger"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptions(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", LWTTopic: "taskplan/status", LWTPayload: "offline", QoS: 1})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "taskplan/status", opts.WillTopic)
	assert.Equal(t, byte(1), opts.WillQos)
	assert.False(t, opts.Order, "handlers publish and must not run on the ordered router")

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", Username: "u", AuthMethod: "certificate"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username, "certificate auth ignores credentials")
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "taskplan", c.TopicPrefix)
	assert.Equal(t, "taskplan/request/abc", c.requestTopic("abc"))
	assert.Equal(t, "taskplan/response/abc", c.responseTopic("abc"))
	assert.NoError(t, c.Validate(), "disabled config is always valid")

	c.Enabled = true
	assert.Error(t, c.Validate(), "broker required")
	c.Broker = "tcp://localhost:1883"
	assert.NoError(t, c.Validate())
	c.QoS = 3
	assert.Error(t, c.Validate())
	c.QoS = 1
	c.TopicPrefix = "plan/#"
	assert.Error(t, c.Validate())
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishRetries(t *testing.T) {
	b := newFakeBroker()
	b.failures = 1
	cli := &mockClient{broker: b}
	cfg := Config{MaxRetries: 2, BackoffMS: 1}
	require.NoError(t, publish(cli, cfg, logger.NopLogger{}, "t/1", []byte("x")))
	assert.Len(t, b.messages(), 2)
}

func TestPublishErrorCaptured(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	b := newFakeBroker()
	b.failures = 5
	cli := &mockClient{broker: b}
	err := publish(cli, Config{MaxRetries: 1, BackoffMS: 1}, logger.NopLogger{}, "t/1", []byte("x"))
	require.Error(t, err)
	assert.Len(t, b.messages(), 2)
	require.Error(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "t/1", mon.tags["topic"])
}

func TestPublishTimeoutRetried(t *testing.T) {
	b := newFakeBroker()
	b.stalls = 1
	cli := &mockClient{broker: b}
	cfg := Config{MaxRetries: 1, BackoffMS: 1, RequestTimeoutMS: 10}
	require.NoError(t, publish(cli, cfg, logger.NopLogger{}, "t/1", []byte("x")))
	assert.Len(t, b.messages(), 2)

	b.stalls = 2
	err := publish(cli, cfg, logger.NopLogger{}, "t/1", []byte("x"))
	assert.ErrorIs(t, err, ErrPublishTimeout)
}
