// Package model defines the core domain types shared by the store, the engines and the worker.
package model

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a 128-bit time-ordered identifier. Every entity id type embeds it.
//
// Ids whose timestamp component is zero are reserved for tests (see TestID);
// the store never generates them.
type ID struct {
	u ulid.ULID
}

// NewID wraps a ULID.
func NewID(u ulid.ULID) ID {
	return ID{u: u}
}

// ParseID parses the canonical 26-character representation of an id.
func ParseID(s string) (ID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return ID{}, fmt.Errorf("parse id %q: %w", s, err)
	}
	return ID{u: u}, nil
}

// TestID returns a synthetic id in the reserved test range. Distinct n give
// distinct ids, ordered by n.
func TestID(n uint64) ID {
	var u ulid.ULID
	binary.BigEndian.PutUint64(u[8:], n)
	return ID{u: u}
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id.u == (ulid.ULID{})
}

// IsTest reports whether the id was produced by TestID.
func (id ID) IsTest() bool {
	return !id.IsZero() && id.u.Time() == 0
}

// Time returns the creation instant encoded in the id.
func (id ID) Time() time.Time {
	return ulid.Time(id.u.Time())
}

// Compare orders ids by time, then by entropy.
func (id ID) Compare(other ID) int {
	return id.u.Compare(other.u)
}

func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return id.u.String()
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Entity id types. They share the ID representation but are not interchangeable.
type (
	PersonID        struct{ ID }
	IdentityID      struct{ ID }
	StateOfMindID   struct{ ID }
	SceneID         struct{ ID }
	SnapshotID      struct{ ID }
	ParticipationID struct{ ID }
	MessageID       struct{ ID }
	MemoryID        struct{ ID }
	JobID           struct{ ID }
)

// EntityID is satisfied by every entity id type.
type EntityID interface {
	~struct{ ID }
}

// Parse parses s into the entity id type T.
func Parse[T EntityID](s string) (T, error) {
	id, err := ParseID(s)
	if err != nil {
		var zero T
		return zero, err
	}
	return T(struct{ ID }{id}), nil
}

// As converts a bare ID into the entity id type T.
func As[T EntityID](id ID) T {
	return T(struct{ ID }{id})
}
