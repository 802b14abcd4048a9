// Package aitest provides an in-memory ai.Client for tests.
package aitest

import (
	"context"
	"sync"

	"github.com/spigell/hh-artifacts/internal/ai"
)

// Client replays canned responses and records every request.
type Client struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []ai.Request

	// Hook, when set, is called instead of replaying responses.
	Hook func(ctx context.Context, req ai.Request) (string, error)
}

var _ ai.Client = (*Client)(nil)

// New returns a client answering with responses in order; the last one repeats.
func New(responses ...string) *Client {
	return &Client{responses: responses}
}

// Failing returns a client whose every call fails with err.
func Failing(err error) *Client {
	return &Client{err: err}
}

func (c *Client) GenerateJSON(ctx context.Context, req ai.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	hook := c.Hook
	c.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", ai.ErrEmptyResponse
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func (c *Client) Provider() string { return "fake" }

// Requests returns a copy of the recorded requests.
func (c *Client) Requests() []ai.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ai.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// LastRequest returns the most recent request, or the zero value.
func (c *Client) LastRequest() ai.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.requests) == 0 {
		return ai.Request{}
	}
	return c.requests[len(c.requests)-1]
}
