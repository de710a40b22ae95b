package ai

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"deepsite_server/internal/ai/prompts"
	"deepsite_server/internal/metrics"

	openai "github.com/sashabaranov/go-openai"
)

// MsgMissingAPIKey is reported when a generation is attempted without a key.
const MsgMissingAPIKey = "API key is required for AI generation."

var ErrMissingAPIKey = errors.New(MsgMissingAPIKey)

// MsgInterrupted is reported when a stream stops before its terminal event.
const MsgInterrupted = "Generation interrupted."

// Reporter receives the human-readable text of a failed generation.
type Reporter interface {
	ReportError(msg string)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(msg string)

func (f ReporterFunc) ReportError(msg string) { f(msg) }

// Generator talks to an OpenAI-compatible chat-completions endpoint.
// The API key is supplied per call since it belongs to the editing session.
type Generator struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Generator)

// WithHTTPClient overrides the HTTP client. No timeout is set by default;
// callers bound a request through its context.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(baseURL string, opts ...Option) *Generator {
	g := &Generator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) client(apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = g.baseURL
	config.HTTPClient = g.httpClient
	return openai.NewClientWithConfig(config)
}

func (g *Generator) chatRequest(userPrompt string, stream bool) openai.ChatCompletionRequest {
	system := prompts.SystemPersona
	if stream {
		system = prompts.StreamSystemPersona
	}
	return openai.ChatCompletionRequest{
		Model: prompts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompts.GetSiteGenerationPrompt(userPrompt)},
		},
		Temperature: prompts.Temperature,
		MaxTokens:   prompts.MaxTokens,
		Stream:      stream,
	}
}

// fail logs msg, hands it to the reporter and counts the failure.
func (g *Generator) fail(report Reporter, mode, msg string) {
	g.logger.Warn("generation failed", slog.String("mode", mode), slog.String("error", msg))
	metrics.GenerationsTotal.WithLabelValues(mode, metrics.Status(false)).Inc()
	if report != nil {
		report.ReportError(msg)
	}
}
