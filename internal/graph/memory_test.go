package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henondesigns/mollusk/internal/models"
)

func itemNode(id, title string) Node {
	return Node{ID: id, Variant: models.VariantItem, Attrs: models.Attributes{"title": title}}
}

func TestMemoryStore_NodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))

	got, err := s.FetchNode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Attrs["title"])
	assert.Equal(t, models.VariantItem, got.Variant)
}

func TestMemoryStore_FetchedNodeIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))

	got, err := s.FetchNode(ctx, "a")
	require.NoError(t, err)
	got.Attrs["title"] = "mutated"

	again, err := s.FetchNode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", again.Attrs["title"])
}

func TestMemoryStore_WriteNodeConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))
	err := s.WriteNode(ctx, itemNode("a", "again"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStore_FetchNodeNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.FetchNode(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_EdgesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteEdge(ctx, "src", "files", "t1"))
	require.NoError(t, s.WriteEdge(ctx, "src", "files", "t2"))
	require.NoError(t, s.WriteEdge(ctx, "src", "files", "t3"))
	// Duplicate writes are no-ops.
	require.NoError(t, s.WriteEdge(ctx, "src", "files", "t2"))

	targets, err := s.FetchEdges(ctx, "src", "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, targets)
}

func TestMemoryStore_DeleteEdge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteEdge(ctx, "src", "files", "t1"))
	require.NoError(t, s.WriteEdge(ctx, "src", "files", "t2"))
	require.NoError(t, s.DeleteEdge(ctx, "src", "files", "t1"))
	// Deleting a missing edge is a no-op.
	require.NoError(t, s.DeleteEdge(ctx, "src", "files", "gone"))

	targets, err := s.FetchEdges(ctx, "src", "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, targets)
}

func TestMemoryStore_DeleteNodeDropsTouchingEdges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))
	require.NoError(t, s.WriteNode(ctx, itemNode("b", "beta")))
	require.NoError(t, s.WriteEdge(ctx, "a", "files", "b"))
	require.NoError(t, s.WriteEdge(ctx, "b", "files", "a"))

	require.NoError(t, s.DeleteNode(ctx, "a"))

	out, err := s.FetchEdges(ctx, "b", "files")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryStore_FetchEdgesForSources(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteEdge(ctx, "a", "files", "f1"))
	require.NoError(t, s.WriteEdge(ctx, "a", "files", "f2"))
	require.NoError(t, s.WriteEdge(ctx, "b", "copies", "c1"))

	out, err := s.FetchEdgesForSources(ctx, []string{"a", "b"}, "files")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, out["a"])
	assert.Empty(t, out["b"])
}

func TestMemoryStore_TimeoutMapsToErrTimeout(t *testing.T) {
	s := NewMemoryStore()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := s.FetchNode(ctx, "a")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMemoryStore_FailNextIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))

	s.FailNext("FetchNode", assert.AnError)

	_, err := s.FetchNode(ctx, "a")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = s.FetchNode(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryStore_CallCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))

	_, _ = s.FetchNode(ctx, "a")
	_, _ = s.FetchNode(ctx, "a")
	assert.Equal(t, 2, s.CallCount("FetchNode"))
	assert.Equal(t, 1, s.CallCount("WriteNode"))
}

func TestMemoryStore_TxRollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteNode(ctx, itemNode("b", "beta")))
	require.NoError(t, s.WriteEdge(ctx, "a", "files", "b"))
	require.NoError(t, tx.Rollback(ctx))

	_, err = s.FetchNode(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	targets, err := s.FetchEdges(ctx, "a", "files")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestMemoryStore_ListAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteNode(ctx, itemNode("b", "beta")))
	require.NoError(t, s.WriteNode(ctx, itemNode("a", "alpha")))
	require.NoError(t, s.WriteNode(ctx, Node{ID: "f", Variant: models.VariantFile, Attrs: models.Attributes{"filename": "x", "mimetype": "text/plain"}}))

	nodes, err := s.ListNodes(ctx, models.VariantItem, 0, 10)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "b", nodes[1].ID)

	page, err := s.ListNodes(ctx, models.VariantItem, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	counts, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.VariantItem])
	assert.Equal(t, int64(1), counts[models.VariantFile])
}
