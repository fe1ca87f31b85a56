package worker

import "errors"

// Preconditions whose absence aborts a ProcessMessage job.
var (
	ErrNoStateOfMindFound    = errors.New("no state of mind found")
	ErrNoPersonIdentityFound = errors.New("no person identity found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrPersonNotInAnyScene   = errors.New("person not in any scene")
)
