// Package graph defines the storage adapter contract the repository core is
// built against. Implementations translate node and edge operations into a
// concrete graph-oriented backend; the core never depends on a backend's
// on-disk format or query language.
package graph

import (
	"context"
	"errors"

	"github.com/henondesigns/mollusk/internal/models"
)

// ErrNotFound is returned when the requested node does not exist.
var ErrNotFound = errors.New("node not found")

// ErrConflict is returned when the backend detects a concurrent write.
// It propagates to the caller for conflict resolution and is never retried
// by the core.
var ErrConflict = errors.New("concurrent write conflict")

// ErrTimeout is returned when a storage call exceeds the caller's deadline.
var ErrTimeout = errors.New("storage deadline exceeded")

// Node is one persisted entity record: its identity, variant, and the
// eagerly-loaded attribute set.
type Node struct {
	ID      string            `json:"id"`
	Variant models.Variant    `json:"variant"`
	Attrs   models.Attributes `json:"attrs"`
}

// EdgeKey addresses all edges leaving one node under one relation label.
type EdgeKey struct {
	SourceID string
	Label    string
}

// Tx is a backend transaction handle. Commit and Rollback are terminal;
// a Tx must not be reused after either.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the storage adapter interface.
//
// FetchEdges returns target identities in a stable order (insertion order
// for backends that track it). All methods honor ctx cancellation and map
// deadline expiry to ErrTimeout.
type Store interface {
	// FetchNode retrieves a node by identity.
	FetchNode(ctx context.Context, id string) (*Node, error)

	// FetchNodes retrieves several nodes in one round trip where the
	// backend allows it. Missing identities are simply absent from the
	// result; the caller decides whether absence is an error.
	FetchNodes(ctx context.Context, ids []string) (map[string]*Node, error)

	// WriteNode inserts a new node. Writing an identity that already
	// exists returns ErrConflict.
	WriteNode(ctx context.Context, node Node) error

	// UpdateNode overwrites the given attribute keys on an existing node.
	UpdateNode(ctx context.Context, id string, changes models.Attributes) error

	// DeleteNode removes a node and all edges touching it.
	DeleteNode(ctx context.Context, id string) error

	// FetchEdges returns the ordered target identities of all edges
	// (sourceID, label, *).
	FetchEdges(ctx context.Context, sourceID, label string) ([]string, error)

	// FetchEdgesForSources resolves many sources under one label in a
	// single backend query. Sources with no edges map to an empty slice.
	FetchEdgesForSources(ctx context.Context, sourceIDs []string, label string) (map[string][]string, error)

	// WriteEdge adds the directed edge (sourceID, label, targetID).
	// Writing an edge that already exists is a no-op.
	WriteEdge(ctx context.Context, sourceID, label, targetID string) error

	// DeleteEdge removes the directed edge. Deleting a missing edge is a
	// no-op.
	DeleteEdge(ctx context.Context, sourceID, label, targetID string) error

	// ListNodes returns nodes of one variant ordered by identity,
	// paginated by offset and limit.
	ListNodes(ctx context.Context, variant models.Variant, offset, limit int) ([]*Node, error)

	// CountNodes returns per-variant node counts.
	CountNodes(ctx context.Context) (map[models.Variant]int64, error)

	// BeginTx opens a backend transaction scoping subsequent writes.
	BeginTx(ctx context.Context) (Tx, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
