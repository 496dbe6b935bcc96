package mqtt

import (
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeBroker routes published messages to matching subscriptions in process.
type fakeBroker struct {
	mu   sync.Mutex
	subs map[string]paho.MessageHandler
	sent []sentMessage
	// failures makes the next n publishes fail.
	failures int
	// stalls makes the next n publishes never get acknowledged.
	stalls int
}

type sentMessage struct {
	topic   string
	qos     byte
	payload []byte
}

func newFakeBroker() *fakeBroker { return &fakeBroker{subs: make(map[string]paho.MessageHandler)} }

// install makes newMQTTClient return clients attached to b until the test ends.
func (b *fakeBroker) install(t *testing.T) {
	t.Helper()
	prev := newMQTTClient
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { return &mockClient{broker: b, opts: o} }
	t.Cleanup(func() { newMQTTClient = prev })
}

func (b *fakeBroker) messages() []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentMessage(nil), b.sent...)
}

func (b *fakeBroker) deliver(c paho.Client, topic string, payload []byte) {
	b.mu.Lock()
	var handlers []paho.MessageHandler
	for filter, h := range b.subs {
		if topicMatches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(c, mockMessage{topic: topic, p: payload})
	}
}

func topicMatches(filter, topic string) bool {
	fs, ts := strings.Split(filter, "/"), strings.Split(topic, "/")
	if len(fs) != len(ts) {
		return false
	}
	for i := range fs {
		if fs[i] != "+" && fs[i] != ts[i] {
			return false
		}
	}
	return true
}

// mockClient implements pahoClient and paho.Client for tests.
type mockClient struct {
	broker *fakeBroker
	opts   *paho.ClientOptions
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	b := m.broker
	b.mu.Lock()
	data, _ := payload.([]byte)
	b.sent = append(b.sent, sentMessage{topic: topic, qos: qos, payload: data})
	if b.failures > 0 {
		b.failures--
		b.mu.Unlock()
		return &dummyToken{err: errPublish}
	}
	if b.stalls > 0 {
		b.stalls--
		b.mu.Unlock()
		return &dummyToken{stalled: true}
	}
	b.mu.Unlock()
	b.deliver(m, topic, data)
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, _ byte, h paho.MessageHandler) paho.Token {
	m.broker.mu.Lock()
	m.broker.subs[topic] = h
	m.broker.mu.Unlock()
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type publishError struct{}

func (publishError) Error() string { return "net fail" }

var errPublish = publishError{}

type dummyToken struct {
	err     error
	stalled bool
}

func (d dummyToken) Wait() bool                     { return !d.stalled }
func (d dummyToken) WaitTimeout(time.Duration) bool { return !d.stalled }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
