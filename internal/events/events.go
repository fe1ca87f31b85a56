// Package events assembles a person's or a scene's recent history into
// timestamped sentences.
package events

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/personae/internal/model"
)

// Store is the persistence the assembler reads from.
type Store interface {
	GetPerson(ctx context.Context, id model.PersonID) (*model.Person, error)
	GetScene(ctx context.Context, id model.SceneID) (*model.Scene, error)
	GetDirectMessagesForPerson(ctx context.Context, id model.PersonID) ([]model.Message, error)
	GetMessagesInScene(ctx context.Context, id model.SceneID) ([]model.Message, error)
	GetSceneParticipationHistory(ctx context.Context, id model.SceneID) ([]model.SceneParticipation, error)
	GetPersonsCurrentScene(ctx context.Context, id model.PersonID) (*model.SceneParticipation, error)
}

// Event is one thing that happened.
type Event struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`

	// seq is the id of the row the event came from. Ids are minted in write
	// order, so it breaks ties between events at the same instant.
	seq model.ID
}

// String renders the event as "At <timestamp>, <text>".
func (e Event) String() string {
	return fmt.Sprintf("At %s, %s", e.At.UTC().Format(time.RFC3339), e.Text)
}

// Sentences renders events in order.
func Sentences(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.String()
	}
	return out
}

// Assembler builds event lists.
type Assembler struct {
	store Store
}

// New creates an Assembler.
func New(s Store) *Assembler {
	return &Assembler{store: s}
}

// GetEvents returns events sorted by time, oldest first. Events sharing a
// timestamp keep the order in which they were written.
//
// With a person and a scene it returns the person's direct messages plus the
// scene's messages and joins and leaves since the person's active join of
// that scene. With only a person it returns the person's direct messages.
// With only a scene it returns the scene's whole history. With neither it
// returns nothing.
func (a *Assembler) GetEvents(ctx context.Context, person *model.PersonID, scene *model.SceneID) ([]Event, error) {
	if person == nil && scene == nil {
		return nil, nil
	}

	names := nameCache{store: a.store, names: map[model.PersonID]string{}}
	var evs []Event

	if person != nil {
		direct, err := a.directMessages(ctx, &names, *person)
		if err != nil {
			return nil, err
		}
		evs = append(evs, direct...)
	}

	if scene != nil {
		var since time.Time
		if person != nil {
			current, err := a.store.GetPersonsCurrentScene(ctx, *person)
			if err != nil {
				return nil, err
			}
			if current == nil || current.SceneID != *scene {
				return sortEvents(evs), nil
			}
			since = current.JoinedAt
		}
		sceneEvs, err := a.sceneEvents(ctx, &names, *scene, since)
		if err != nil {
			return nil, err
		}
		evs = append(evs, sceneEvs...)
	}

	return sortEvents(evs), nil
}

func (a *Assembler) directMessages(ctx context.Context, names *nameCache, person model.PersonID) ([]Event, error) {
	msgs, err := a.store.GetDirectMessagesForPerson(ctx, person)
	if err != nil {
		return nil, err
	}
	recipient, err := names.person(ctx, person)
	if err != nil {
		return nil, err
	}

	evs := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		sender, err := names.sender(ctx, m.Sender)
		if err != nil {
			return nil, err
		}
		evs = append(evs, Event{
			At:   m.SentAt,
			Text: fmt.Sprintf("%s sent a direct message to %s: \"%s\"", sender, recipient, m.Content),
			seq:  m.ID.ID,
		})
	}
	return evs, nil
}

func (a *Assembler) sceneEvents(ctx context.Context, names *nameCache, sceneID model.SceneID, since time.Time) ([]Event, error) {
	scene, err := a.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	msgs, err := a.store.GetMessagesInScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	parts, err := a.store.GetSceneParticipationHistory(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	var evs []Event
	for _, m := range msgs {
		if m.SentAt.Before(since) {
			continue
		}
		sender, err := names.sender(ctx, m.Sender)
		if err != nil {
			return nil, err
		}
		evs = append(evs, Event{
			At:   m.SentAt,
			Text: fmt.Sprintf("%s said in %s: \"%s\"", sender, scene.Name, m.Content),
			seq:  m.ID.ID,
		})
	}
	for _, p := range parts {
		if !p.JoinedAt.Before(since) {
			evs = append(evs, Event{At: p.JoinedAt, Text: fmt.Sprintf("%s joined %s", p.PersonName, scene.Name), seq: p.ID.ID})
		}
		if p.LeftAt != nil && !p.LeftAt.Before(since) {
			evs = append(evs, Event{At: *p.LeftAt, Text: fmt.Sprintf("%s left %s", p.PersonName, scene.Name), seq: p.LeftSeq})
		}
	}
	return evs, nil
}

func sortEvents(evs []Event) []Event {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].At.Equal(evs[j].At) {
			return evs[i].At.Before(evs[j].At)
		}
		return evs[i].seq.Compare(evs[j].seq) < 0
	})
	return evs
}

type nameCache struct {
	store Store
	names map[model.PersonID]string
}

func (c *nameCache) person(ctx context.Context, id model.PersonID) (string, error) {
	if n, ok := c.names[id]; ok {
		return n, nil
	}
	p, err := c.store.GetPerson(ctx, id)
	if err != nil {
		return "", err
	}
	c.names[id] = p.Name
	return p.Name, nil
}

func (c *nameCache) sender(ctx context.Context, s model.Sender) (string, error) {
	if s.Kind == model.SenderRealWorldUser {
		return model.RealWorldUserName, nil
	}
	return c.person(ctx, s.PersonID)
}
