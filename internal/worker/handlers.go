package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/personae/internal/events"
	"github.com/rcliao/personae/internal/memory"
	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/reaction"
	"github.com/rcliao/personae/internal/store"
)

// recallLimit is how many memories a person recalls when reacting.
const recallLimit = 8

// sendMessageToScene records the broadcast, then delivers a copy to every
// current participant in seeded random order, enqueueing a ProcessMessage
// for each delivery.
func (w *Worker) sendMessageToScene(ctx context.Context, p model.SendMessageToScene) error {
	sceneID := p.SceneID
	if _, err := w.store.SendMessage(ctx, model.NewMessage{
		Sender:    p.Sender,
		Recipient: model.ToScene(sceneID),
		SceneID:   &sceneID,
		Content:   p.Content,
	}); err != nil {
		return fmt.Errorf("broadcast to scene %s: %w", sceneID, err)
	}

	parts, err := w.store.GetSceneCurrentParticipants(ctx, sceneID)
	if err != nil {
		return err
	}
	shuffleParticipants(parts, p.RandomSeed)

	for _, part := range parts {
		msgID, err := w.store.SendMessage(ctx, model.NewMessage{
			Sender:    p.Sender,
			Recipient: model.ToPerson(part.PersonID),
			SceneID:   &sceneID,
			Content:   p.Content,
		})
		if err != nil {
			return fmt.Errorf("deliver to %s: %w", part.PersonName, err)
		}
		recipient := part.PersonID
		if _, err := w.store.UnshiftJob(ctx, model.ProcessMessage{
			MessageID:         msgID,
			RecipientPersonID: &recipient,
		}); err != nil {
			return fmt.Errorf("enqueue delivery to %s: %w", part.PersonName, err)
		}
	}

	w.log.Debug("scene broadcast",
		zap.Stringer("scene_id", sceneID),
		zap.Int("recipients", len(parts)),
		zap.Uint64("random_seed", p.RandomSeed))
	return nil
}

// shuffleParticipants permutes parts deterministically for a given seed.
func shuffleParticipants(parts []model.SceneParticipation, seed uint64) {
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(parts), func(i, j int) {
		parts[i], parts[j] = parts[j], parts[i]
	})
}

// processMessage lets the message's reader react to it.
func (w *Worker) processMessage(ctx context.Context, p model.ProcessMessage) error {
	msg, err := w.store.GetMessageByID(ctx, p.MessageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, p.MessageID)
	}
	if err != nil {
		return err
	}

	var actor *model.PersonID
	switch {
	case p.RecipientPersonID != nil:
		actor = p.RecipientPersonID
	case msg.Recipient.Kind == model.RecipientPerson:
		id := msg.Recipient.PersonID
		actor = &id
	}

	if actor != nil {
		if err := w.react(ctx, msg, *actor); err != nil {
			return err
		}
	}

	return w.store.MarkMessageRead(ctx, msg.ID)
}

func (w *Worker) react(ctx context.Context, msg *model.Message, actorID model.PersonID) error {
	log := w.log.With(zap.Stringer("message_id", msg.ID), zap.Stringer("person_id", actorID))

	person, err := w.store.GetPerson(ctx, actorID)
	if err != nil {
		return err
	}
	senderName, err := w.senderName(ctx, msg.Sender)
	if err != nil {
		return err
	}

	situation, msgCtx, err := w.situation(ctx, msg, person, senderName)
	if err != nil {
		return err
	}

	evs, err := w.events.GetEvents(ctx, &person.ID, nil)
	if err != nil {
		return err
	}

	som, err := w.store.GetLatestStateOfMind(ctx, person.ID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: person %s", ErrNoStateOfMindFound, person.Name)
	}
	if err != nil {
		return err
	}
	identity, err := w.store.GetLatestIdentity(ctx, person.ID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: person %s", ErrNoPersonIdentityFound, person.Name)
	}
	if err != nil {
		return err
	}

	prompt, err := w.memories.BuildQueryPrompt(ctx, memory.QueryContext{
		PersonName:   person.Name,
		Message:      msgCtx,
		RecentEvents: events.Sentences(evs),
		StateOfMind:  som.Content,
		Situation:    situation,
	})
	if err != nil {
		return err
	}
	matches, err := w.memories.SearchMemories(ctx, prompt, recallLimit, &person.ID)
	if err != nil {
		return err
	}
	recalled := make([]string, 0, len(matches))
	for _, m := range matches {
		recalled = append(recalled, m.Content)
	}

	actions, err := w.reactor.GetReaction(ctx, recalled, identity.Identity, som.Content, situation)
	if err != nil {
		return err
	}
	log.Debug("reaction", zap.Int("actions", len(actions)), zap.Int("memories", len(recalled)))

	outcomes := make([]string, 0, len(actions))
	for _, a := range actions {
		outcome, err := w.enqueueAction(ctx, msg, person, a)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, outcome)
	}

	description := situation + "\n\n" + strings.Join(outcomes, "\n")
	ids, err := w.memories.MaybeCreateMemoriesFromDescription(ctx, person.Name, description)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		log.Debug("memories formed", zap.Int("count", len(ids)))
	}
	return nil
}

func (w *Worker) enqueueAction(ctx context.Context, msg *model.Message, person *model.Person, a reaction.Action) (string, error) {
	switch a := a.(type) {
	case reaction.SayInScene:
		current, err := w.store.GetPersonsCurrentScene(ctx, person.ID)
		if err != nil {
			return "", err
		}
		if current == nil {
			return "", fmt.Errorf("%w: person %s", ErrPersonNotInAnyScene, person.Name)
		}
		if _, err := w.store.UnshiftJob(ctx, model.SendMessageToScene{
			Sender:     model.AIPerson(person.ID),
			SceneID:    current.SceneID,
			Content:    a.Comment,
			RandomSeed: w.seed(),
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s said: \"%s\"", person.Name, a.Comment), nil
	case reaction.Wait:
		return w.enqueueWait(ctx, msg, person, a.DurationMS, fmt.Sprintf("%s waited %d ms.", person.Name, a.DurationMS))
	case reaction.Idle:
		return w.enqueueWait(ctx, msg, person, a.DurationMS(), fmt.Sprintf("%s stayed idle.", person.Name))
	}
	return "", fmt.Errorf("unhandled action %T", a)
}

func (w *Worker) enqueueWait(ctx context.Context, msg *model.Message, person *model.Person, durationMS int64, outcome string) (string, error) {
	active := w.now().Sub(msg.SentAt).Milliseconds()
	if active < 0 {
		active = 0
	}
	if _, err := w.store.UnshiftJob(ctx, model.PersonWaiting{
		PersonID:        person.ID,
		DurationMS:      durationMS,
		CurrentActiveMS: active,
	}); err != nil {
		return "", err
	}
	return outcome, nil
}

// situation describes the message from the reader's point of view and picks
// the context used for memory recall.
func (w *Worker) situation(ctx context.Context, msg *model.Message, reader *model.Person, senderName string) (string, memory.MessageContext, error) {
	if msg.SceneID == nil {
		return fmt.Sprintf("You received a direct message from %s:\n\n%s", senderName, msg.Content),
			memory.DirectMessageContext{Sender: senderName}, nil
	}

	sceneID := *msg.SceneID
	scene, err := w.store.GetScene(ctx, sceneID)
	if err != nil {
		return "", nil, err
	}
	snap, err := w.store.GetLatestSnapshot(ctx, sceneID)
	if err != nil {
		return "", nil, err
	}
	parts, err := w.store.GetSceneCurrentParticipants(ctx, sceneID)
	if err != nil {
		return "", nil, err
	}
	var others []string
	for _, p := range parts {
		if p.PersonID != reader.ID {
			others = append(others, p.PersonName)
		}
	}

	text := fmt.Sprintf("You are in the scene \"%s\". %s\n\nOther people present: %s\n\n%s said:\n\n%s",
		scene.Name, snap.Description, strings.Join(others, ", "), senderName, msg.Content)
	return text, memory.SceneByID{ID: sceneID}, nil
}

func (w *Worker) senderName(ctx context.Context, s model.Sender) (string, error) {
	if s.Kind == model.SenderRealWorldUser {
		return model.RealWorldUserName, nil
	}
	p, err := w.store.GetPerson(ctx, s.PersonID)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
