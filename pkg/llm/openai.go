// Package llm wraps an OpenAI-compatible chat completion API behind a small
// client interface so callers can inject fakes in tests.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Tool declares a function tool the model may call. Parameters is the
// function's JSON schema.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is one function invocation returned by the model. Arguments is
// the raw JSON argument object.
type ToolCall struct {
	Name      string
	Arguments string
}

// Request is a single chat completion call.
type Request struct {
	Messages    []Message
	Tools       []Tool
	ForceTool   string // when set, the model must call this tool
	Temperature float32
	MaxTokens   int
}

// Response is the model's reply: assistant text and any tool calls.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatClient is the completion surface used by the engine.
type ChatClient interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Config holds connection settings for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string        // empty means api.openai.com
	Model   string
	Timeout time.Duration // per-call HTTP timeout, default 30s
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	model  string
	client *openai.Client
}

// New creates a chat completion client.
func New(cfg Config) *Client {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{model: cfg.Model, client: openai.NewClientWithConfig(cc)}
}

// Complete implements ChatClient.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	oreq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		oreq.Tools = tools
		oreq.ToolChoice = "auto"
		if req.ForceTool != "" {
			oreq.ToolChoice = openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: req.ForceTool},
			}
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices")
	}

	choice := resp.Choices[0]
	out := &Response{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}
