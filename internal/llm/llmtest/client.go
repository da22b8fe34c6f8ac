// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/pysugar/loanpilot/internal/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Response *llm.MessageResponse
	Err      error
}

// Client returns scripted replies keyed by model. Models without a
// scripted reply fall back to Default, or an error when Default is nil.
type Client struct {
	mu       sync.Mutex
	byModel  map[string][]Reply
	Default  *Reply
	requests []llm.MessageRequest
}

// New creates an empty scripted client.
func New() *Client {
	return &Client{byModel: make(map[string][]Reply)}
}

// On queues replies for model. The last reply repeats once the queue drains.
func (c *Client) On(model string, replies ...Reply) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byModel[model] = append(c.byModel[model], replies...)
	return c
}

// CreateMessage implements llm.Client.
func (c *Client) CreateMessage(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queue := c.byModel[req.Model]
	var reply Reply
	switch {
	case len(queue) > 1:
		reply = queue[0]
		c.byModel[req.Model] = queue[1:]
	case len(queue) == 1:
		reply = queue[0]
	case c.Default != nil:
		reply = *c.Default
	default:
		return nil, errors.New("llmtest: no reply scripted for " + req.Model)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return reply.Response, nil
}

// Requests returns a copy of every request received.
func (c *Client) Requests() []llm.MessageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.MessageRequest(nil), c.requests...)
}

// Models returns the model of every request received, in order.
func (c *Client) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	models := make([]string, 0, len(c.requests))
	for _, req := range c.requests {
		models = append(models, req.Model)
	}
	return models
}

// Text builds a reply with a single text block.
func Text(text string) Reply {
	return Reply{Response: &llm.MessageResponse{
		Role:    llm.RoleAssistant,
		Content: []llm.ContentBlock{{Type: llm.BlockText, Text: text}},
	}}
}

// ToolUse builds a reply with a single tool invocation.
func ToolUse(name string, input map[string]any) Reply {
	raw, err := json.Marshal(input)
	if err != nil {
		panic(err)
	}
	return Reply{Response: &llm.MessageResponse{
		Role:       llm.RoleAssistant,
		StopReason: "tool_use",
		Content: []llm.ContentBlock{{
			Type:  llm.BlockToolUse,
			ID:    "toolu_test",
			Name:  name,
			Input: raw,
		}},
	}}
}

// Empty builds a reply with no content blocks.
func Empty() Reply {
	return Reply{Response: &llm.MessageResponse{Role: llm.RoleAssistant}}
}

// Fail builds an error reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}
