package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/planner"
	"github.com/kilianp07/taskplan/infra/logger"
)

// Error codes carried by a Reply.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

// Reply is the payload published on a response topic. Error and Code are set
// instead of the schedule when the request could not be planned.
type Reply struct {
	model.Response
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// RemoteError is a failed Reply seen from the requesting side.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return "remote planner: " + e.Message }

// Unwrap maps invalid_request replies to planner.ErrInvalidRequest.
func (e *RemoteError) Unwrap() error {
	if e.Code == CodeInvalidRequest {
		return planner.ErrInvalidRequest
	}
	return nil
}

// Responder answers scheduling requests received on <prefix>/request/<id>
// with a Reply on <prefix>/response/<id>.
type Responder struct {
	ctx     context.Context
	cfg     Config
	planner planner.Planner
	cli     pahoClient
	log     logger.Logger
}

// NewResponder connects to the broker and starts serving requests. Requests
// are planned with ctx; Close disconnects.
func NewResponder(ctx context.Context, cfg Config, p planner.Planner) (*Responder, error) {
	cfg.SetDefaults()
	r := &Responder{ctx: ctx, cfg: cfg, planner: p, log: logger.New("mqtt_responder")}
	cli, err := connect(cfg, r.log, cfg.requestTopic("+"), r.onRequest)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	r.cli = cli
	return r, nil
}

func (r *Responder) onRequest(_ paho.Client, msg paho.Message) {
	id := lastSegment(msg.Topic())
	if id == "" {
		r.log.Warnf("ignoring request on %s: missing id", msg.Topic())
		return
	}
	reply := r.handle(msg.Payload())
	payload, err := json.Marshal(reply)
	if err != nil {
		r.log.Errorf("encode reply %s: %v", id, err)
		return
	}
	if err := publish(r.cli, r.cfg, r.log, r.cfg.responseTopic(id), payload); err != nil {
		r.log.Errorf("reply %s not delivered: %v", id, err)
	}
}

func (r *Responder) handle(payload []byte) Reply {
	var req model.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Reply{Error: "invalid request body: " + err.Error(), Code: CodeInvalidRequest}
	}
	resp, err := r.planner.Plan(planner.WithSource(r.ctx, "mqtt"), req)
	if err != nil {
		code := CodeInternal
		if planner.IsInvalidRequest(err) {
			code = CodeInvalidRequest
		}
		return Reply{Error: err.Error(), Code: code}
	}
	return Reply{Response: resp}
}

// Close disconnects from the broker.
func (r *Responder) Close() {
	if r.cli != nil && r.cli.IsConnected() {
		r.cli.Disconnect(250)
	}
}
