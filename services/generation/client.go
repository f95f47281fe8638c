// Package generation produces grounded answers through an OpenAI-compatible
// chat completions endpoint (Groq by default).
package generation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://api.groq.com/openai/v1"
	defaultModel     = "llama-3.1-8b-instant"
	defaultMaxTokens = 512
)

// Config holds the chat endpoint settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements rag.Generator
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a chat completions client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logger,
	}
}

// Generate answers query from the evidence only
func (c *Client) Generate(ctx context.Context, query string, evidence []models.RetrievedCandidate, soft bool) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrGenerationFailed, errors.New("generation API key not configured"))
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(soft)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(query, evidence)},
		},
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrProviderTimeout, err)
		}
		return "", services.Wrap(services.ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrGenerationFailed, errors.New("completion has no choices"))
	}

	c.logger.Debug("generation completed",
		zap.String("model", resp.Model),
		zap.Bool("soft", soft),
		zap.Int("evidence", len(evidence)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.cfg.Model
}
