package llm

import (
	"encoding/json"
	"strings"
)

// Roles and content block types of the Messages API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	BlockText    = "text"
	BlockToolUse = "tool_use"
)

// Message is one conversation turn. Only plain text content is sent.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool describes a named operation the model may invoke.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// MessageRequest carries the fields the router and selector need.
// Model is filled in by the selector for every attempt.
type MessageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ContentBlock is either plain text or a tool invocation.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Usage reports token accounting for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessageResponse is the decoded reply of a Messages API call.
type MessageResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// FirstToolUse returns the first tool invocation block, if any.
func (r *MessageResponse) FirstToolUse() (ContentBlock, bool) {
	if r == nil {
		return ContentBlock{}, false
	}
	for _, block := range r.Content {
		if block.Type == BlockToolUse {
			return block, true
		}
	}
	return ContentBlock{}, false
}

// Text joins all text blocks of the response.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == BlockText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 {
	return &v
}
