// Package embedding turns query text into vectors through an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/upb/rag-gatekeeper/services"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://localhost:8081/v1"
	defaultModel   = "sentence-transformers/all-mpnet-base-v2"
)

// Config holds the embeddings endpoint settings
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // expected vector length, 0 disables the check
	Timeout    time.Duration
}

// Client implements rag.Embedder
type Client struct {
	api        *openai.Client
	model      string
	dimensions int
	hasKey     bool
	logger     *zap.Logger
}

// NewClient creates an embeddings client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		hasKey:     cfg.APIKey != "",
		logger:     logger,
	}
}

// Embed returns the embedding of text. It never returns a zero vector:
// every malformed response is an error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.hasKey {
		return nil, services.Wrap(services.ErrEmbeddingFailed, errors.New("embedding API key not configured"))
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrProviderTimeout, err)
		}
		return nil, services.Wrap(services.ErrEmbeddingFailed, err)
	}

	vector, err := c.validate(resp)
	if err != nil {
		c.logger.Warn("rejected embedding response",
			zap.String("model", c.model),
			zap.Error(err))
		return nil, services.Wrap(services.ErrEmbeddingFailed, err)
	}
	return vector, nil
}

func (c *Client) validate(resp openai.EmbeddingResponse) ([]float32, error) {
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vector := resp.Data[0].Embedding
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty embedding vector")
	}
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), c.dimensions)
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("embedding value %d is not finite", i)
		}
	}
	return vector, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}
