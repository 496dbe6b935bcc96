package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/infra/logger"
)

// ErrReplyTimeout is returned when no reply arrives within the request timeout.
var ErrReplyTimeout = errors.New("mqtt reply timeout")

// Requester plans requests through a remote Responder. It implements
// planner.Planner.
type Requester struct {
	cfg Config
	cli pahoClient
	log logger.Logger

	mu      sync.Mutex
	pending map[string]chan Reply
}

// NewRequester connects to the broker and listens for replies.
func NewRequester(cfg Config) (*Requester, error) {
	cfg.SetDefaults()
	r := &Requester{cfg: cfg, log: logger.New("mqtt_requester"), pending: make(map[string]chan Reply)}
	cli, err := connect(cfg, r.log, cfg.responseTopic("+"), r.onReply)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	r.cli = cli
	return r, nil
}

func (r *Requester) onReply(_ paho.Client, msg paho.Message) {
	id := lastSegment(msg.Topic())
	var reply Reply
	if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
		r.log.Errorf("failed to decode reply %s: %v", id, err)
		return
	}
	r.mu.Lock()
	ch, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- reply:
	default:
	}
}

// Plan publishes req and waits for the matching reply.
func (r *Requester) Plan(ctx context.Context, req model.Request) (model.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return model.Response{}, err
	}
	id := uuid.NewString()
	ch := make(chan Reply, 1)
	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if err := publish(r.cli, r.cfg, r.log, r.cfg.requestTopic(id), payload); err != nil {
		return model.Response{}, err
	}

	timer := time.NewTimer(time.Duration(r.cfg.RequestTimeoutMS) * time.Millisecond)
	defer timer.Stop()
	select {
	case reply := <-ch:
		if reply.Error != "" {
			return model.Response{}, &RemoteError{Code: reply.Code, Message: reply.Error}
		}
		return reply.Response, nil
	case <-timer.C:
		return model.Response{}, fmt.Errorf("request %s: %w", id, ErrReplyTimeout)
	case <-ctx.Done():
		return model.Response{}, ctx.Err()
	}
}

// Close disconnects from the broker.
func (r *Requester) Close() {
	if r.cli != nil && r.cli.IsConnected() {
		r.cli.Disconnect(250)
	}
}
