// Package memory turns text into embedded memories and recalls them by
// similarity.
package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/personae/internal/llm"
	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/store"
)

// Store is the persistence the engine needs.
type Store interface {
	CreateMemory(ctx context.Context, personName, content string, emb []float32) (model.MemoryID, error)
	SearchMemories(ctx context.Context, p store.SearchParams) ([]model.MemoryMatch, error)
	GetScene(ctx context.Context, id model.SceneID) (*model.Scene, error)
	GetLatestSnapshot(ctx context.Context, id model.SceneID) (*model.SceneSnapshot, error)
	GetSceneCurrentParticipants(ctx context.Context, id model.SceneID) ([]model.SceneParticipation, error)
}

// Engine creates and recalls memories.
type Engine struct {
	store Store
	llm   llm.Model
	log   *zap.Logger
}

// New creates an Engine. A nil logger disables logging.
func New(s Store, m llm.Model, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, llm: m, log: logger}
}

// CreateMemory embeds content and stores it for the named person. The two
// steps are not atomic: an embedding that fails to store is discarded.
func (e *Engine) CreateMemory(ctx context.Context, personName, content string) (model.MemoryID, error) {
	vec, err := e.llm.Embed(ctx, content)
	if err != nil {
		return model.MemoryID{}, fmt.Errorf("embed memory: %w", err)
	}
	id, err := e.store.CreateMemory(ctx, personName, content, vec)
	if err != nil {
		return model.MemoryID{}, err
	}
	e.log.Debug("memory created", zap.String("person", personName), zap.Stringer("memory_id", id))
	return id, nil
}

const extractionSystemPrompt = `You maintain the long-term memory of a simulated person.
Given a description of a situation and how the person responded, decide whether
the person should remember anything that will matter later: facts about other
people, promises, preferences, or events worth recalling.
Reply with a JSON object of the form {"memories": ["...", "..."]}.
Each memory is one short sentence written from the person's point of view.
Reply with {"memories": []} when nothing is worth remembering.`

type extraction struct {
	Memories []string `json:"memories"`
}

// MaybeCreateMemoriesFromDescription asks the model which memories, if any,
// the person should form from description, then stores each of them.
func (e *Engine) MaybeCreateMemoriesFromDescription(ctx context.Context, personName, description string) ([]model.MemoryID, error) {
	resp, err := e.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.SystemMessage(extractionSystemPrompt),
			llm.UserMessage(fmt.Sprintf("Person: %s\n\n%s", personName, description)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extract memories: %w", err)
	}
	reply, err := resp.AsMessage()
	if err != nil {
		return nil, fmt.Errorf("extract memories: %w", err)
	}
	parsed, err := llm.ParseJSON[extraction](reply)
	if err != nil {
		return nil, fmt.Errorf("extract memories: %w", err)
	}

	var ids []model.MemoryID
	for _, content := range parsed.Memories {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		id, err := e.CreateMemory(ctx, personName, content)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SearchMemories embeds prompt and returns up to limit memories, nearest
// first. A nil person searches every person's memories.
func (e *Engine) SearchMemories(ctx context.Context, prompt string, limit int, person *model.PersonID) ([]model.MemoryMatch, error) {
	if limit <= 0 {
		return nil, nil
	}
	vec, err := e.llm.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.store.SearchMemories(ctx, store.SearchParams{
		Embedding: vec,
		Limit:     limit,
		PersonID:  person,
	})
}
