// Package llmtest provides an in-process stand-in for the LLM provider.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rcliao/personae/internal/embedding"
	"github.com/rcliao/personae/internal/llm"
)

// ErrNoReply is returned when a Fake runs out of scripted replies.
var ErrNoReply = errors.New("llmtest: no scripted reply left")

// Fake is a scripted llm.Model.
type Fake struct {
	// Respond computes each completion. When nil, Replies are consumed in order.
	Respond func(req llm.Request) (*llm.Response, error)
	Replies []*llm.Response
	// Dimensions is the embedding width. Zero means 3.
	Dimensions int
	// EmbedFunc overrides the default hash-based embedding.
	EmbedFunc func(text string) (embedding.Vector, error)

	mu       sync.Mutex
	requests []llm.Request
	embedded []string
}

var _ llm.Model = (*Fake)(nil)

func (f *Fake) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.Respond
	var next *llm.Response
	if respond == nil {
		if len(f.Replies) == 0 {
			f.mu.Unlock()
			return nil, ErrNoReply
		}
		next, f.Replies = f.Replies[0], f.Replies[1:]
	}
	f.mu.Unlock()

	if respond != nil {
		return respond(req)
	}
	return next, nil
}

func (f *Fake) Embed(_ context.Context, text string) (embedding.Vector, error) {
	f.mu.Lock()
	f.embedded = append(f.embedded, text)
	fn := f.EmbedFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	return HashVector(text, f.Dims()), nil
}

func (f *Fake) Dims() int {
	if f.Dimensions > 0 {
		return f.Dimensions
	}
	return 3
}

// Requests returns the completion requests seen so far.
func (f *Fake) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// Embedded returns the texts embedded so far.
func (f *Fake) Embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embedded...)
}

// HashVector derives a deterministic non-zero vector from text.
func HashVector(text string, dims int) embedding.Vector {
	vec := make(embedding.Vector, dims)
	for i := range vec {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		vec[i] = float32(h.Sum32()%1000+1) / 1000
	}
	return vec
}

// HasTools reports whether a request carries a tool catalogue.
func HasTools(req llm.Request) bool {
	return len(req.Tools) > 0
}
