// Package llm talks to an OpenAI-compatible provider for chat completions
// with tool calling and for text embeddings.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/rcliao/personae/internal/embedding"
)

const (
	// ChatModel is the model used for every chat completion.
	ChatModel = openai.GPT4o
	// EmbeddingModel is the model used for every embedding.
	EmbeddingModel = openai.SmallEmbedding3
	// EmbeddingDimensions is the vector width EmbeddingModel produces.
	EmbeddingDimensions = 1536
	// RequestTimeout bounds each HTTP call to the provider.
	RequestTimeout = 60 * time.Second
)

var (
	// ErrTransport covers network failures, non-2xx responses and bodies
	// that are not valid JSON.
	ErrTransport = errors.New("llm transport error")
	// ErrDecode covers well-formed responses missing an expected field or
	// carrying tool arguments that cannot be parsed.
	ErrDecode = errors.New("llm decode error")
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = openai.ChatMessageRoleSystem
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
)

// Message is one entry of a chat history.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage returns a user-role message.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// Request is a chat completion request. The model is always ChatModel.
type Request struct {
	Messages []Message
	Tools    []Tool
}

// Completer issues chat completions.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Model combines chat completion and embedding. *Client implements it.
type Model interface {
	Completer
	embedding.Embedder
}
