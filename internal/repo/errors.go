package repo

import (
	"errors"

	"github.com/henondesigns/mollusk/internal/graph"
)

// Adapter sentinels are re-exported so callers can match every error kind
// against this package alone. errors.Is works through either name.
var (
	// ErrNotFound means no record exists for the requested identity.
	ErrNotFound = graph.ErrNotFound

	// ErrConflict means the backend detected a concurrent write. It is
	// propagated for the caller's conflict-resolution policy, never
	// retried here.
	ErrConflict = graph.ErrConflict

	// ErrStorageTimeout means a storage call exceeded the caller's
	// deadline. Affected relationship slots stay unresolved.
	ErrStorageTimeout = graph.ErrTimeout
)

// ErrDuplicateIdentity means a second object was registered for an identity
// already held by the session cache. This is a data-integrity bug, not a
// recoverable condition.
var ErrDuplicateIdentity = errors.New("duplicate identity in session")

// ErrResolution means relationship resolution failed transiently. The slot
// stays unresolved so the caller may retry.
var ErrResolution = errors.New("relationship resolution failed")
