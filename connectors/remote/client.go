// Package remote calls a taskplan service (or any service speaking the same
// /schedule_tasks contract) over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/taskplan/auth"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/planner"
)

// Config defines the remote planner endpoint.
type Config struct {
	URL            string    `json:"url"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Auth           auth.Conf `json:"auth"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks the URL when one is set.
func (c Config) Validate() error {
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote.url must be an absolute http(s) URL, got %q", c.URL)
	}
	return nil
}

// StatusError is returned for non-200 answers.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Message)
}

// Unwrap maps 400 answers to planner.ErrInvalidRequest.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusBadRequest {
		return planner.ErrInvalidRequest
	}
	return nil
}

// Client implements planner.Planner against a remote service.
type Client struct {
	base string
	http *http.Client
	auth *auth.ClientCred
}

// New returns a Client for cfg.URL. OAuth2 client credentials are used when
// cfg.Auth has a token endpoint.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if cfg.URL == "" {
		return nil, errors.New("remote.url required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		base: strings.TrimSuffix(cfg.URL, "/"),
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
	if cfg.Auth.Enabled() {
		c.auth = auth.NewClientCred(cfg.Auth)
	}
	return c, nil
}

// Plan posts req to /schedule_tasks.
func (c *Client) Plan(ctx context.Context, req model.Request) (model.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.Response{}, fmt.Errorf("failed to encode request: %w", err)
	}
	var out model.Response
	if err := c.do(ctx, http.MethodPost, "/schedule_tasks", bytes.NewReader(body), &out); err != nil {
		return model.Response{}, err
	}
	return out, nil
}

// Health checks that the remote service answers on /.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return fmt.Errorf("failed to set auth header: %w", err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
