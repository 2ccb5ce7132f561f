// Package provider implements the completion backend client.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"cyanbot/internal/domain"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultModel      = "deepseek/deepseek-chat"
	defaultReferer    = "http://localhost"
	defaultTitle      = "Cyan-kun Discord Bot"

	defaultHTTPTimeout = 120 * time.Second
)

// OpenRouter implements domain.Completer against the OpenRouter API, which
// speaks the OpenAI chat-completions dialect.
type OpenRouter struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string // override for tests
	Model   string
	Referer string // HTTP-Referer attribution header
	Title   string // X-Title attribution header
	Logger  *slog.Logger
}

func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Referer == "" {
		cfg.Referer = defaultReferer
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = cfg.BaseURL
	conf.HTTPClient = &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &attributionTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	return &OpenRouter{
		client: openai.NewClientWithConfig(conf),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (o *OpenRouter) Name() string  { return "openrouter" }
func (o *OpenRouter) Model() string { return o.model }

// Complete sends the assembled turn sequence and returns the reply text.
func (o *OpenRouter) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Healthy probes the backend's model listing.
func (o *OpenRouter) Healthy(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openrouter not reachable: %w", err)
	}
	return nil
}

// attributionTransport sets the OpenRouter attribution headers on every
// request.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("HTTP-Referer", t.referer)
	req.Header.Set("X-Title", t.title)
	return t.base.RoundTrip(req)
}
