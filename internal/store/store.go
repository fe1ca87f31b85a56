// Package store provides SQLite-backed persistence for persons, scenes,
// messages, memories and the job queue.
package store

import (
	"errors"

	"github.com/rcliao/personae/internal/model"
)

// ErrNotFound is returned (wrapped in *Error) when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous is returned (wrapped in *Error) when a lookup by name matches
// more than one row.
var ErrAmbiguous = errors.New("ambiguous")

// Error wraps a failure with the name of the store operation that produced it.
// Driver and constraint messages are kept verbatim in Err.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// SearchParams holds parameters for a memory similarity search.
type SearchParams struct {
	Embedding []float32
	Limit     int
	// PersonID restricts the search to one person's memories when set.
	PersonID *model.PersonID
}
