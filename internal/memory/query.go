package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/personae/internal/model"
)

// MessageContext describes where the message being reacted to came from.
// It is one of SceneContext, SceneByID or DirectMessageContext.
type MessageContext interface {
	messageContext()
}

// SceneContext is a fully described scene.
type SceneContext struct {
	Name         string
	Description  string
	Participants []string
}

// SceneByID is a scene resolved from the store when the prompt is built.
type SceneByID struct {
	ID model.SceneID
}

// DirectMessageContext is a message sent outside any scene.
type DirectMessageContext struct {
	Sender string
}

func (SceneContext) messageContext()         {}
func (SceneByID) messageContext()            {}
func (DirectMessageContext) messageContext() {}

// QueryContext is everything a recall query is built from.
type QueryContext struct {
	PersonName   string
	Message      MessageContext
	RecentEvents []string
	StateOfMind  string
	Situation    string
}

// BuildQueryPrompt renders q into the text whose embedding is used to recall
// memories. Equal inputs always produce the same prompt.
func (e *Engine) BuildQueryPrompt(ctx context.Context, q QueryContext) (string, error) {
	mc := q.Message
	if byID, ok := mc.(SceneByID); ok {
		resolved, err := e.resolveScene(ctx, byID.ID)
		if err != nil {
			return "", err
		}
		mc = resolved
	}

	var b strings.Builder
	fmt.Fprintf(&b, "What does %s remember that is relevant right now?\n\n", q.PersonName)

	switch c := mc.(type) {
	case SceneContext:
		fmt.Fprintf(&b, "Scene: %s\n", c.Name)
		fmt.Fprintf(&b, "Scene description: %s\n", c.Description)
		fmt.Fprintf(&b, "People present: %s\n", strings.Join(c.Participants, ", "))
	case DirectMessageContext:
		fmt.Fprintf(&b, "Direct message from: %s\n", c.Sender)
	case nil:
	default:
		return "", fmt.Errorf("build query prompt: unsupported message context %T", mc)
	}

	b.WriteString("\nRecent events:\n")
	if len(q.RecentEvents) == 0 {
		b.WriteString("(none)\n")
	}
	for _, ev := range q.RecentEvents {
		fmt.Fprintf(&b, "- %s\n", ev)
	}

	fmt.Fprintf(&b, "\nState of mind:\n%s\n", q.StateOfMind)
	fmt.Fprintf(&b, "\nSituation:\n%s\n", q.Situation)
	return b.String(), nil
}

func (e *Engine) resolveScene(ctx context.Context, id model.SceneID) (SceneContext, error) {
	scene, err := e.store.GetScene(ctx, id)
	if err != nil {
		return SceneContext{}, err
	}
	snap, err := e.store.GetLatestSnapshot(ctx, id)
	if err != nil {
		return SceneContext{}, err
	}
	parts, err := e.store.GetSceneCurrentParticipants(ctx, id)
	if err != nil {
		return SceneContext{}, err
	}

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.PersonName)
	}
	return SceneContext{Name: scene.Name, Description: snap.Description, Participants: names}, nil
}
