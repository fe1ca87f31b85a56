// Package reaction asks the model how a person reacts to a situation and
// decodes the answer into actions.
package reaction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/personae/internal/llm"
)

const systemPrompt = `You are a person simulation framework. You are given the memories, identity
and state of mind of a person, and the situation they are in. Decide how that
person reacts by calling one or more of the available tools. Always answer with
tool calls, never with plain text.`

// Engine computes reactions.
type Engine struct {
	llm llm.Completer
	log *zap.Logger
}

// New creates an Engine. A nil logger disables logging.
func New(c llm.Completer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{llm: c, log: logger}
}

// GetReaction returns the actions the person takes, in the order the model
// produced them.
func (e *Engine) GetReaction(ctx context.Context, memories []string, identity, stateOfMind, situation string) ([]Action, error) {
	resp, err := e.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(userPrompt(memories, identity, stateOfMind, situation)),
		},
		Tools: Tools,
	})
	if err != nil {
		return nil, fmt.Errorf("get reaction: %w", err)
	}

	calls, err := resp.MaybeToolCalls()
	if err != nil {
		return nil, fmt.Errorf("get reaction: %w", err)
	}
	if len(calls) == 0 {
		return nil, ErrNoActionReturned
	}

	actions := make([]Action, 0, len(calls))
	for _, call := range calls {
		a, err := DecodeAction(call)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	e.log.Debug("reaction", zap.Int("actions", len(actions)))
	return actions, nil
}

func userPrompt(memories []string, identity, stateOfMind, situation string) string {
	var b strings.Builder
	b.WriteString("## Memories\n")
	if len(memories) == 0 {
		b.WriteString("(no relevant memories)\n")
	}
	for _, m := range memories {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	fmt.Fprintf(&b, "\n## Identity\n%s\n", identity)
	fmt.Fprintf(&b, "\n## State of mind\n%s\n", stateOfMind)
	fmt.Fprintf(&b, "\n## Situation\n%s\n", situation)
	return b.String()
}
