package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/personae/internal/model"
)

// CreatePerson inserts a person and returns its id.
func (s *SQLiteStore) CreatePerson(ctx context.Context, name string) (model.PersonID, error) {
	now := s.clock()
	id := model.As[model.PersonID](s.newID(now))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO person (id, name, created_at) VALUES (?, ?, ?)`,
		id.String(), name, formatTime(now))
	if err != nil {
		return model.PersonID{}, wrap("create person", err)
	}
	return id, nil
}

// GetPerson returns the person with the given id.
func (s *SQLiteStore) GetPerson(ctx context.Context, id model.PersonID) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM person WHERE id = ?`, id.String())
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get person", fmt.Errorf("%w: person %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrap("get person", err)
	}
	return p, nil
}

// GetPersonByName returns the person with the given name.
func (s *SQLiteStore) GetPersonByName(ctx context.Context, name string) (*model.Person, error) {
	p, err := personByName(ctx, s.db, name)
	if err != nil {
		return nil, wrap("get person by name", err)
	}
	return p, nil
}

// ListPersons returns all persons ordered by name.
func (s *SQLiteStore) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM person ORDER BY name`)
	if err != nil {
		return nil, wrap("list persons", err)
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, wrap("list persons", err)
		}
		persons = append(persons, *p)
	}
	return persons, wrap("list persons", rows.Err())
}

// CreateIdentity appends an identity for the named person.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, personName, identity string) (model.IdentityID, error) {
	p, err := personByName(ctx, s.db, personName)
	if err != nil {
		return model.IdentityID{}, wrap("create identity", err)
	}

	now := s.clock()
	id := model.As[model.IdentityID](s.newID(now))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO person_identity (id, person_id, identity, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), p.ID.String(), identity, formatTime(now))
	if err != nil {
		return model.IdentityID{}, wrap("create identity", err)
	}
	return id, nil
}

// GetLatestIdentity returns the person's current identity.
func (s *SQLiteStore) GetLatestIdentity(ctx context.Context, personID model.PersonID) (*model.PersonIdentity, error) {
	var ident model.PersonIdentity
	var id, pid, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, person_id, identity, created_at FROM person_identity
		 WHERE person_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, personID.String()).
		Scan(&id, &pid, &ident.Identity, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get latest identity", fmt.Errorf("%w: identity for person %s", ErrNotFound, personID))
	}
	if err != nil {
		return nil, wrap("get latest identity", err)
	}

	if ident.ID, err = model.Parse[model.IdentityID](id); err != nil {
		return nil, wrap("get latest identity", err)
	}
	if ident.PersonID, err = model.Parse[model.PersonID](pid); err != nil {
		return nil, wrap("get latest identity", err)
	}
	if ident.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, wrap("get latest identity", err)
	}
	return &ident, nil
}

// CreateStateOfMind appends a state of mind for the named person.
func (s *SQLiteStore) CreateStateOfMind(ctx context.Context, personName, content string) (model.StateOfMindID, error) {
	p, err := personByName(ctx, s.db, personName)
	if err != nil {
		return model.StateOfMindID{}, wrap("create state of mind", err)
	}

	now := s.clock()
	id := model.As[model.StateOfMindID](s.newID(now))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO state_of_mind (id, person_id, content, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), p.ID.String(), content, formatTime(now))
	if err != nil {
		return model.StateOfMindID{}, wrap("create state of mind", err)
	}
	return id, nil
}

// GetLatestStateOfMind returns the person's current state of mind.
func (s *SQLiteStore) GetLatestStateOfMind(ctx context.Context, personID model.PersonID) (*model.StateOfMind, error) {
	var som model.StateOfMind
	var id, pid, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, person_id, content, created_at FROM state_of_mind
		 WHERE person_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, personID.String()).
		Scan(&id, &pid, &som.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get latest state of mind", fmt.Errorf("%w: state of mind for person %s", ErrNotFound, personID))
	}
	if err != nil {
		return nil, wrap("get latest state of mind", err)
	}

	if som.ID, err = model.Parse[model.StateOfMindID](id); err != nil {
		return nil, wrap("get latest state of mind", err)
	}
	if som.PersonID, err = model.Parse[model.PersonID](pid); err != nil {
		return nil, wrap("get latest state of mind", err)
	}
	if som.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, wrap("get latest state of mind", err)
	}
	return &som, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func personByName(ctx context.Context, q querier, name string) (*model.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT id, name FROM person WHERE name = ?`, name)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: person %q", ErrNotFound, name)
	}
	return p, err
}

func scanPerson(row scanner) (*model.Person, error) {
	var p model.Person
	var id string
	if err := row.Scan(&id, &p.Name); err != nil {
		return nil, err
	}
	pid, err := model.Parse[model.PersonID](id)
	if err != nil {
		return nil, err
	}
	p.ID = pid
	return &p, nil
}
