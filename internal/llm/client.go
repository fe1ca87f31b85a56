package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/rcliao/personae/internal/embedding"
)

// Config holds the provider credentials.
type Config struct {
	APIKey string
	// BaseURL overrides the provider endpoint, e.g. for a compatible proxy.
	BaseURL string
	// HTTPClient overrides the default client with a RequestTimeout ceiling.
	HTTPClient *http.Client
}

// Client is a stateless OpenAI client safe for concurrent use.
type Client struct {
	api *openai.Client
	log *zap.Logger
}

var _ Model = (*Client)(nil)

// NewClient creates a client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: RequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: openai.NewClientWithConfig(oc), log: logger}
}

// Complete issues a chat completion with the given history and tools.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	creq := openai.ChatCompletionRequest{
		Model:    ChatModel,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	for _, t := range req.Tools {
		creq.Tools = append(creq.Tools, t.openAI())
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		c.log.Warn("chat completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: chat completion: %v", ErrTransport, err)
	}
	c.log.Debug("chat completion",
		zap.Int("messages", len(creq.Messages)),
		zap.Int("tools", len(creq.Tools)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return NewResponse(resp), nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	start := time.Now()
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: EmbeddingModel,
	})
	if err != nil {
		c.log.Warn("embedding failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: embedding: %v", ErrTransport, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response has no data", ErrDecode)
	}
	vec := resp.Data[0].Embedding
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: data[0].embedding is empty", ErrDecode)
	}
	c.log.Debug("embedding", zap.Int("dims", len(vec)), zap.Duration("elapsed", time.Since(start)))
	return vec, nil
}

// Dims returns the width of vectors produced by Embed.
func (c *Client) Dims() int {
	return EmbeddingDimensions
}
