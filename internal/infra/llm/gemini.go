package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/resilience"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// GeminiCompleter implements port.Completer on the Gemini API. It is used for
// the decision prompts only; the tool-calling chat step stays on OpenAIClient.
type GeminiCompleter struct {
	client *genai.Client
	model  string
	cb     *gobreaker.CircuitBreaker
}

// GeminiConfig configures the Gemini completer. BaseURL and HTTPClient are
// optional and default to the public endpoint and the SDK's client.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGeminiCompleter builds a Gemini client from conf.
func NewGeminiCompleter(ctx context.Context, conf GeminiConfig, cb *gobreaker.CircuitBreaker) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      conf.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  conf.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: conf.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := conf.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiCompleter{client: client, model: model, cb: cb}, nil
}

// Invoke sends the prompt; system entries become the system instruction.
func (g *GeminiCompleter) Invoke(ctx context.Context, prompt []port.PromptMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiCompleter.Invoke")
	defer span.End()

	var system []string
	var contents []*genai.Content
	for _, p := range prompt {
		switch p.Role {
		case "system":
			system = append(system, p.Text)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(p.Text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(p.Text, genai.RoleUser))
		}
	}

	conf := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		conf.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	result, err := resilience.Execute(g.cb, "gemini", func() (any, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, conf)
		if err != nil {
			return nil, err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", err
	}
	text, _ := result.(string)
	if text == "" {
		return "", &domain.ErrExternalService{Service: "gemini", Err: fmt.Errorf("empty response")}
	}
	return text, nil
}
