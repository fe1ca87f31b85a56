package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/personae/internal/model"
)

// CreateScene inserts a scene together with its initial snapshot.
func (s *SQLiteStore) CreateScene(ctx context.Context, name, description string) (model.SceneID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SceneID{}, wrap("create scene", err)
	}
	defer tx.Rollback()

	now := s.clock()
	id := model.As[model.SceneID](s.newID(now))
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scene (id, name, created_at) VALUES (?, ?, ?)`,
		id.String(), name, formatTime(now)); err != nil {
		return model.SceneID{}, wrap("create scene", err)
	}

	snapID := s.newID(now)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scene_snapshot (id, scene_id, description, created_at) VALUES (?, ?, ?, ?)`,
		snapID.String(), id.String(), description, formatTime(now)); err != nil {
		return model.SceneID{}, wrap("create scene", err)
	}

	if err := tx.Commit(); err != nil {
		return model.SceneID{}, wrap("create scene", err)
	}
	return id, nil
}

// CreateSceneSnapshot appends a new description for a scene.
func (s *SQLiteStore) CreateSceneSnapshot(ctx context.Context, sceneID model.SceneID, description string) (model.SnapshotID, error) {
	now := s.clock()
	id := model.As[model.SnapshotID](s.newID(now))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scene_snapshot (id, scene_id, description, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), sceneID.String(), description, formatTime(now))
	if err != nil {
		return model.SnapshotID{}, wrap("create scene snapshot", err)
	}
	return id, nil
}

// GetLatestSnapshot returns the scene's current description.
func (s *SQLiteStore) GetLatestSnapshot(ctx context.Context, sceneID model.SceneID) (*model.SceneSnapshot, error) {
	var snap model.SceneSnapshot
	var id, sid, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scene_id, description, created_at FROM scene_snapshot
		 WHERE scene_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sceneID.String()).
		Scan(&id, &sid, &snap.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get latest snapshot", fmt.Errorf("%w: snapshot for scene %s", ErrNotFound, sceneID))
	}
	if err != nil {
		return nil, wrap("get latest snapshot", err)
	}

	if snap.ID, err = model.Parse[model.SnapshotID](id); err != nil {
		return nil, wrap("get latest snapshot", err)
	}
	if snap.SceneID, err = model.Parse[model.SceneID](sid); err != nil {
		return nil, wrap("get latest snapshot", err)
	}
	if snap.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, wrap("get latest snapshot", err)
	}
	return &snap, nil
}

// GetScene returns the scene with the given id.
func (s *SQLiteStore) GetScene(ctx context.Context, id model.SceneID) (*model.Scene, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM scene WHERE id = ?`, id.String())
	sc, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get scene", fmt.Errorf("%w: scene %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrap("get scene", err)
	}
	return sc, nil
}

// GetSceneByName returns the only scene with the given name. Scene names
// need not be unique; when several scenes share the name it fails with
// ErrAmbiguous.
func (s *SQLiteStore) GetSceneByName(ctx context.Context, name string) (*model.Scene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM scene WHERE name = ? ORDER BY id LIMIT 2`, name)
	if err != nil {
		return nil, wrap("get scene by name", err)
	}
	defer rows.Close()

	var found []*model.Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, wrap("get scene by name", err)
		}
		found = append(found, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get scene by name", err)
	}

	switch len(found) {
	case 0:
		return nil, wrap("get scene by name", fmt.Errorf("%w: scene %q", ErrNotFound, name))
	case 1:
		return found[0], nil
	}
	return nil, wrap("get scene by name", fmt.Errorf("%w: more than one scene is named %q", ErrAmbiguous, name))
}

// ListScenes returns all scenes ordered by name.
func (s *SQLiteStore) ListScenes(ctx context.Context) ([]model.Scene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM scene ORDER BY name, id`)
	if err != nil {
		return nil, wrap("list scenes", err)
	}
	defer rows.Close()

	var scenes []model.Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, wrap("list scenes", err)
		}
		scenes = append(scenes, *sc)
	}
	return scenes, wrap("list scenes", rows.Err())
}

// AddPersonToScene opens a participation for the named person. An active
// participation in another scene is closed first. If the person is already
// active in this scene the existing participation id is returned.
func (s *SQLiteStore) AddPersonToScene(ctx context.Context, sceneID model.SceneID, personName string) (model.ParticipationID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ParticipationID{}, wrap("add person to scene", err)
	}
	defer tx.Rollback()

	p, err := personByName(ctx, tx, personName)
	if err != nil {
		return model.ParticipationID{}, wrap("add person to scene", err)
	}

	var activeID, activeScene string
	err = tx.QueryRowContext(ctx,
		`SELECT id, scene_id FROM scene_participant WHERE person_id = ? AND left_at IS NULL`,
		p.ID.String()).Scan(&activeID, &activeScene)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.ParticipationID{}, wrap("add person to scene", err)
	case activeScene == sceneID.String():
		existing, err := model.Parse[model.ParticipationID](activeID)
		if err != nil {
			return model.ParticipationID{}, wrap("add person to scene", err)
		}
		return existing, nil
	}

	now := s.clock()
	if activeID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE scene_participant SET left_at = ?, left_seq = ? WHERE id = ?`,
			formatTime(now), s.newID(now).String(), activeID); err != nil {
			return model.ParticipationID{}, wrap("add person to scene", err)
		}
	}

	id := model.As[model.ParticipationID](s.newID(now))
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scene_participant (id, scene_id, person_id, joined_at) VALUES (?, ?, ?, ?)`,
		id.String(), sceneID.String(), p.ID.String(), formatTime(now)); err != nil {
		return model.ParticipationID{}, wrap("add person to scene", err)
	}

	if err := tx.Commit(); err != nil {
		return model.ParticipationID{}, wrap("add person to scene", err)
	}
	return id, nil
}

// RemovePersonFromScene closes the named person's active participation in a scene.
func (s *SQLiteStore) RemovePersonFromScene(ctx context.Context, sceneID model.SceneID, personName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("remove person from scene", err)
	}
	defer tx.Rollback()

	p, err := personByName(ctx, tx, personName)
	if err != nil {
		return wrap("remove person from scene", err)
	}

	now := s.clock()
	res, err := tx.ExecContext(ctx,
		`UPDATE scene_participant SET left_at = ?, left_seq = ?
		 WHERE scene_id = ? AND person_id = ? AND left_at IS NULL`,
		formatTime(now), s.newID(now).String(), sceneID.String(), p.ID.String())
	if err != nil {
		return wrap("remove person from scene", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("remove person from scene", err)
	}
	if n == 0 {
		return wrap("remove person from scene",
			fmt.Errorf("%w: %q is not in scene %s", ErrNotFound, personName, sceneID))
	}

	return wrap("remove person from scene", tx.Commit())
}

const participationColumns = `sp.id, sp.scene_id, sp.person_id, p.name, sp.joined_at, sp.left_at, sp.left_seq`

// GetSceneCurrentParticipants returns the active participations of a scene
// in join order.
func (s *SQLiteStore) GetSceneCurrentParticipants(ctx context.Context, sceneID model.SceneID) ([]model.SceneParticipation, error) {
	parts, err := s.queryParticipations(ctx,
		`SELECT `+participationColumns+`
		 FROM scene_participant sp JOIN person p ON p.id = sp.person_id
		 WHERE sp.scene_id = ? AND sp.left_at IS NULL
		 ORDER BY sp.joined_at, sp.id`, sceneID.String())
	return parts, wrap("get scene current participants", err)
}

// GetSceneParticipationHistory returns every participation of a scene
// ordered by joined_at.
func (s *SQLiteStore) GetSceneParticipationHistory(ctx context.Context, sceneID model.SceneID) ([]model.SceneParticipation, error) {
	parts, err := s.queryParticipations(ctx,
		`SELECT `+participationColumns+`
		 FROM scene_participant sp JOIN person p ON p.id = sp.person_id
		 WHERE sp.scene_id = ?
		 ORDER BY sp.joined_at, sp.id`, sceneID.String())
	return parts, wrap("get scene participation history", err)
}

// GetPersonsCurrentScene returns the person's active participation, or nil
// when the person is not in any scene.
func (s *SQLiteStore) GetPersonsCurrentScene(ctx context.Context, personID model.PersonID) (*model.SceneParticipation, error) {
	parts, err := s.queryParticipations(ctx,
		`SELECT `+participationColumns+`
		 FROM scene_participant sp JOIN person p ON p.id = sp.person_id
		 WHERE sp.person_id = ? AND sp.left_at IS NULL`, personID.String())
	if err != nil {
		return nil, wrap("get persons current scene", err)
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return &parts[0], nil
}

func (s *SQLiteStore) queryParticipations(ctx context.Context, query string, args ...any) ([]model.SceneParticipation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []model.SceneParticipation
	for rows.Next() {
		var sp model.SceneParticipation
		var id, sceneID, personID, joinedAt string
		var leftAt, leftSeq sql.NullString
		if err := rows.Scan(&id, &sceneID, &personID, &sp.PersonName, &joinedAt, &leftAt, &leftSeq); err != nil {
			return nil, err
		}
		if sp.ID, err = model.Parse[model.ParticipationID](id); err != nil {
			return nil, err
		}
		if sp.SceneID, err = model.Parse[model.SceneID](sceneID); err != nil {
			return nil, err
		}
		if sp.PersonID, err = model.Parse[model.PersonID](personID); err != nil {
			return nil, err
		}
		if sp.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		if sp.LeftAt, err = parseOptTime(leftAt); err != nil {
			return nil, err
		}
		if leftSeq.Valid {
			if sp.LeftSeq, err = model.ParseID(leftSeq.String); err != nil {
				return nil, err
			}
		}
		parts = append(parts, sp)
	}
	return parts, rows.Err()
}

func scanScene(row scanner) (*model.Scene, error) {
	var sc model.Scene
	var id string
	if err := row.Scan(&id, &sc.Name); err != nil {
		return nil, err
	}
	sid, err := model.Parse[model.SceneID](id)
	if err != nil {
		return nil, err
	}
	sc.ID = sid
	return &sc, nil
}
