package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/personae/internal/model"
)

// SendMessage persists a message. A scene broadcast without an explicit
// SceneID is recorded under its recipient scene.
func (s *SQLiteStore) SendMessage(ctx context.Context, msg model.NewMessage) (model.MessageID, error) {
	sceneID := msg.SceneID
	if msg.Recipient.Kind == model.RecipientScene && sceneID == nil {
		sid := msg.Recipient.SceneID
		sceneID = &sid
	}
	var sceneArg any
	if sceneID != nil {
		sceneArg = nullID(sceneID.ID)
	}

	now := s.clock()
	id := model.As[model.MessageID](s.newID(now))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message (id, sender_kind, sender_person_id, recipient_kind,
		   recipient_person_id, recipient_scene_id, scene_id, content, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(),
		string(msg.Sender.Kind), nullID(msg.Sender.PersonID.ID),
		string(msg.Recipient.Kind), nullID(msg.Recipient.PersonID.ID), nullID(msg.Recipient.SceneID.ID),
		sceneArg, msg.Content, formatTime(now))
	if err != nil {
		return model.MessageID{}, wrap("send message", err)
	}
	return id, nil
}

const messageColumns = `id, sender_kind, sender_person_id, recipient_kind, recipient_person_id,
	recipient_scene_id, scene_id, content, sent_at, read_at`

// GetMessageByID returns a message.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id model.MessageID) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM message WHERE id = ?`, id.String())
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get message", fmt.Errorf("%w: message %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrap("get message", err)
	}
	return m, nil
}

// MarkMessageRead sets read_at the first time it is called for a message.
// Later calls leave the original timestamp in place.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id model.MessageID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE message SET read_at = ? WHERE id = ? AND read_at IS NULL`,
		formatTime(s.clock()), id.String())
	if err != nil {
		return wrap("mark message read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("mark message read", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM message WHERE id = ?`, id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return wrap("mark message read", fmt.Errorf("%w: message %s", ErrNotFound, id))
	}
	return wrap("mark message read", err)
}

// GetMessagesInScene returns the broadcasts sent to a scene, oldest first.
func (s *SQLiteStore) GetMessagesInScene(ctx context.Context, sceneID model.SceneID) ([]model.Message, error) {
	msgs, err := s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM message
		 WHERE recipient_kind = 'scene' AND scene_id = ?
		 ORDER BY sent_at, id`, sceneID.String())
	return msgs, wrap("get messages in scene", err)
}

// GetDirectMessagesForPerson returns messages addressed to a person outside
// any scene, oldest first.
func (s *SQLiteStore) GetDirectMessagesForPerson(ctx context.Context, personID model.PersonID) ([]model.Message, error) {
	msgs, err := s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM message
		 WHERE recipient_kind = 'person' AND recipient_person_id = ? AND scene_id IS NULL
		 ORDER BY sent_at, id`, personID.String())
	return msgs, wrap("get direct messages", err)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func scanMessage(row scanner) (*model.Message, error) {
	var m model.Message
	var id, senderKind, recipientKind, sentAt string
	var senderPerson, recipientPerson, recipientScene, sceneID, readAt sql.NullString
	if err := row.Scan(&id, &senderKind, &senderPerson, &recipientKind, &recipientPerson,
		&recipientScene, &sceneID, &m.Content, &sentAt, &readAt); err != nil {
		return nil, err
	}

	var err error
	if m.ID, err = model.Parse[model.MessageID](id); err != nil {
		return nil, err
	}

	m.Sender.Kind = model.SenderKind(senderKind)
	if pid, err := parseOptID[model.PersonID](senderPerson); err != nil {
		return nil, err
	} else if pid != nil {
		m.Sender.PersonID = *pid
	}

	m.Recipient.Kind = model.RecipientKind(recipientKind)
	if pid, err := parseOptID[model.PersonID](recipientPerson); err != nil {
		return nil, err
	} else if pid != nil {
		m.Recipient.PersonID = *pid
	}
	if sid, err := parseOptID[model.SceneID](recipientScene); err != nil {
		return nil, err
	} else if sid != nil {
		m.Recipient.SceneID = *sid
	}

	if m.SceneID, err = parseOptID[model.SceneID](sceneID); err != nil {
		return nil, err
	}
	if m.SentAt, err = parseTime(sentAt); err != nil {
		return nil, err
	}
	if m.ReadAt, err = parseOptTime(readAt); err != nil {
		return nil, err
	}
	return &m, nil
}
