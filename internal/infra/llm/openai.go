// Package llm holds the model adapters: an OpenAI-compatible chat-completions
// client (tools + plain completions) and a Gemini completer.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/resilience"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("infra/llm")

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	ChatModel     string // model used by the workflow chat step
	DecisionModel string // model used by classify/escalate/reply
}

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
// It implements port.ChatModel and port.Completer.
type OpenAIClient struct {
	httpClient *http.Client
	conf       OpenAIConfig
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	limiter    *rate.Limiter
	bulkhead   *resilience.Bulkhead
}

// NewOpenAIClient creates the client. A nil limiter disables pacing.
func NewOpenAIClient(httpClient *http.Client, conf OpenAIConfig, cb *gobreaker.CircuitBreaker, cfg resilience.Config, limiter *rate.Limiter) *OpenAIClient {
	if conf.BaseURL == "" {
		conf.BaseURL = "https://api.openai.com/v1"
	}
	if conf.ChatModel == "" {
		conf.ChatModel = "gpt-4o"
	}
	if conf.DecisionModel == "" {
		conf.DecisionModel = conf.ChatModel
	}
	return &OpenAIClient{
		httpClient: httpClient,
		conf:       conf,
		cb:         cb,
		cfg:        cfg,
		limiter:    limiter,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function toolDefFunc `json:"function"`
}

type toolDefFunc struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []toolDef     `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat runs the workflow chat step with tools bound.
func (c *OpenAIClient) Chat(ctx context.Context, system string, history []domain.Message, tools []port.ToolSpec) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.history", len(history)), attribute.Int("llm.tools", len(tools)))

	req := chatRequest{
		Model:    c.conf.ChatModel,
		Messages: append([]chatMessage{{Role: "system", Content: system}}, toChatMessages(history)...),
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, toolDef{
			Type:     "function",
			Function: toolDefFunc{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	msg, err := c.complete(ctx, &req)
	if err != nil {
		return nil, err
	}
	return fromChatMessage(msg)
}

// Invoke sends a plain prompt and returns the raw text answer.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt []port.PromptMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Invoke")
	defer span.End()

	req := chatRequest{Model: c.conf.DecisionModel}
	for _, p := range prompt {
		req.Messages = append(req.Messages, chatMessage{Role: p.Role, Content: p.Text})
	}
	msg, err := c.complete(ctx, &req)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req *chatRequest) (*chatMessage, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrExternalService{Service: "llm", Err: err}
	}
	defer c.bulkhead.Release()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.ErrExternalService{Service: "llm", Err: err}
		}
	}

	var out chatResponse
	_, err := resilience.Execute(c.cb, "llm", func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(req)
			if err != nil {
				return fmt.Errorf("marshal chat request: %w", err)
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.BaseURL+"/chat/completions", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create http request: %w", err)
			}
			httpReq.Header.Set("Content-Type", "application/json")
			if c.conf.APIKey != "" {
				httpReq.Header.Set("Authorization", "Bearer "+c.conf.APIKey)
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return fmt.Errorf("http call to llm: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("llm /chat/completions returned status %d", resp.StatusCode)
				if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return resilience.Permanent(err)
				}
				return err
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode llm response: %w", err))
			}
			return nil
		})
		return nil, innerErr
	})
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, &domain.ErrExternalService{Service: "llm", Err: fmt.Errorf("response has no choices")}
	}
	return &out.Choices[0].Message, nil
}

func toChatMessages(history []domain.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case domain.RoleHuman:
			out = append(out, chatMessage{Role: "user", Content: m.Content})
		case domain.RoleAI:
			cm := chatMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				cm.ToolCalls = append(cm.ToolCalls, toolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: toolFunction{Name: tc.Name, Arguments: string(args)},
				})
			}
			out = append(out, cm)
		case domain.RoleTool:
			out = append(out, chatMessage{Role: "tool", Content: m.Content, Name: m.ToolName, ToolCallID: m.ToolCallID})
		}
	}
	return out
}

func fromChatMessage(cm *chatMessage) (*domain.Message, error) {
	msg := &domain.Message{Role: domain.RoleAI, Content: cm.Content}
	for _, tc := range cm.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, &domain.ErrParse{What: "tool call arguments for " + tc.Function.Name, Err: err}
			}
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return msg, nil
}
