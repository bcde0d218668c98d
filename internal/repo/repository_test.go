package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henondesigns/mollusk/internal/graph"
	"github.com/henondesigns/mollusk/internal/models"
)

func newTestRepo(t *testing.T) (*Repository, *graph.MemoryStore) {
	t.Helper()
	store := graph.NewMemoryStore()
	return New(store), store
}

func mustCreate(t *testing.T, r *Repository, variant models.Variant, attrs models.Attributes) *Entity {
	t.Helper()
	e, err := r.Create(context.Background(), variant, attrs)
	require.NoError(t, err)
	return e
}

func TestRepository_GetReturnsSameObject(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})

	first, err := r.Get(ctx, models.VariantItem, item.ID())
	require.NoError(t, err)
	second, err := r.Get(ctx, models.VariantItem, item.ID())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, item, first)
}

func TestRepository_GetAcrossSessionsIsDistinct(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()

	r1 := New(store)
	item := mustCreate(t, r1, models.VariantItem, models.Attributes{"title": "Log"})

	r2 := New(store)
	other, err := r2.Get(ctx, models.VariantItem, item.ID())
	require.NoError(t, err)

	assert.NotSame(t, item, other)
	assert.True(t, item.Equal(other))
}

func TestRepository_GetNotFound(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	_, err := r.Get(ctx, models.VariantItem, "unknown-uuid")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_GetVariantMismatch(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	file := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "a.txt", "mimetype": "text/plain"})

	_, err := r.Get(ctx, models.VariantItem, file.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_CreateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()

	r1 := New(store)
	created := mustCreate(t, r1, models.VariantItem, models.Attributes{"title": "Report Collection"})

	// A fresh session hydrates from storage rather than the cache.
	r2 := New(store)
	got, err := r2.Get(ctx, models.VariantItem, created.ID())
	require.NoError(t, err)
	assert.Equal(t, "Report Collection", got.StringAttr("title"))
	assert.Equal(t, created.Attributes(), got.Attributes())
}

func TestRepository_CreateRejectsIncompleteAttributes(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	_, err := r.Create(ctx, models.VariantFile, models.Attributes{"filename": "a.txt"})
	require.Error(t, err)

	_, err = r.Create(ctx, models.Variant("bogus"), models.Attributes{})
	require.Error(t, err)
}

func TestRepository_LazyLoadQueriesOnce(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	file := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "a.txt", "mimetype": "text/plain"})
	require.NoError(t, r.AddRelation(ctx, item.ID(), models.RelationFiles, file.ID()))

	assert.False(t, item.Resolved(models.RelationFiles))
	assert.Equal(t, 0, store.CallCount("FetchEdges"))

	files, err := item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Same(t, file, files[0])
	assert.Equal(t, 1, store.CallCount("FetchEdges"))

	// Second access is served from the slot.
	again, err := item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 1, store.CallCount("FetchEdges"))
}

func TestRepository_AddRelationInvalidatesResolvedSlot(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	a := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "a.txt", "mimetype": "text/plain"})
	b := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "b.txt", "mimetype": "text/plain"})

	require.NoError(t, r.AddRelation(ctx, item.ID(), models.RelationFiles, a.ID()))

	files, err := item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Mutating the relation drops the resolved slot entirely.
	require.NoError(t, r.AddRelation(ctx, item.ID(), models.RelationFiles, b.ID()))
	assert.False(t, item.Resolved(models.RelationFiles))

	files, err = item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.True(t, files[0].Equal(a))
	assert.True(t, files[1].Equal(b))
}

func TestRepository_RemoveRelationInvalidatesResolvedSlot(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	a := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "a.txt", "mimetype": "text/plain"})
	require.NoError(t, r.AddRelation(ctx, item.ID(), models.RelationFiles, a.ID()))

	_, err := item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)

	require.NoError(t, r.RemoveRelation(ctx, item.ID(), models.RelationFiles, a.ID()))
	assert.False(t, item.Resolved(models.RelationFiles))

	files, err := item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRepository_TransientFailureLeavesSlotUnresolved(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	file := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "a.txt", "mimetype": "text/plain"})
	require.NoError(t, r.AddRelation(ctx, item.ID(), models.RelationFiles, file.ID()))

	store.FailNext("FetchEdges", errors.New("store unreachable"))

	_, err := item.Relation(ctx, models.RelationFiles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.False(t, item.Resolved(models.RelationFiles))

	// A retry succeeds and the result is then cached.
	files, err := item.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, item.Resolved(models.RelationFiles))
}

func TestRepository_TimeoutKeepsItsKind(t *testing.T) {
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := item.Relation(ctx, models.RelationFiles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageTimeout)
	assert.NotErrorIs(t, err, ErrResolution)
	assert.False(t, item.Resolved(models.RelationFiles))
}

func TestRepository_UpdateAttributesMutatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	r := New(store)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Old"})
	held := item // simulate an external holder of the reference

	require.NoError(t, r.UpdateAttributes(ctx, item.ID(), models.Attributes{"title": "New"}))
	assert.Equal(t, "New", held.StringAttr("title"))

	// Write-through: a fresh session sees the change.
	r2 := New(store)
	got, err := r2.Get(ctx, models.VariantItem, item.ID())
	require.NoError(t, err)
	assert.Equal(t, "New", got.StringAttr("title"))
}

func TestRepository_CreateAndUpdateStampTimes(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})

	created, err := time.Parse(time.RFC3339, item.StringAttr("created"))
	require.NoError(t, err)
	updated, err := time.Parse(time.RFC3339, item.StringAttr("updated"))
	require.NoError(t, err)
	assert.Equal(t, created, updated)

	changes := models.Attributes{"title": "New"}
	require.NoError(t, r.UpdateAttributes(ctx, item.ID(), changes))

	// The caller's map is left untouched.
	assert.NotContains(t, changes, "updated")

	after, err := time.Parse(time.RFC3339, item.StringAttr("updated"))
	require.NoError(t, err)
	assert.False(t, after.Before(created))
}

func TestRepository_UpdateAttributesUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	err := r.UpdateAttributes(ctx, "missing", models.Attributes{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_GetManyPreservesOrderAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRepo(t)

	a := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "a"})
	b := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "b"})

	// Evict b so exactly one identity is a cache miss.
	r.Session().Evict(b.ID())
	before := store.CallCount("FetchNodes")

	got, err := r.GetMany(ctx, models.VariantItem, []string{b.ID(), a.ID()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID(), got[0].ID())
	assert.Same(t, a, got[1])
	assert.Equal(t, before+1, store.CallCount("FetchNodes"))

	// Fully cached: no storage traffic at all.
	_, err = r.GetMany(ctx, models.VariantItem, []string{a.ID(), got[0].ID()})
	require.NoError(t, err)
	assert.Equal(t, before+1, store.CallCount("FetchNodes"))
}

func TestRepository_GetManyMissingIdentity(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	a := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "a"})

	_, err := r.GetMany(ctx, models.VariantItem, []string{a.ID(), "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_DeleteEvictsFromSession(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	require.NoError(t, r.Delete(ctx, item.ID()))

	_, ok := r.Session().Lookup(item.ID())
	assert.False(t, ok)

	_, err := r.Get(ctx, models.VariantItem, item.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_WithTransactionCommit(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	var id string
	err := r.WithTransaction(ctx, func(ctx context.Context) error {
		item, err := r.Create(ctx, models.VariantItem, models.Attributes{"title": "Log"})
		if err != nil {
			return err
		}
		id = item.ID()
		return nil
	})
	require.NoError(t, err)

	_, err = r.Get(ctx, models.VariantItem, id)
	assert.NoError(t, err)
}

func TestRepository_WithTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	r := New(store)

	boom := errors.New("boom")
	var id string
	err := r.WithTransaction(ctx, func(ctx context.Context) error {
		item, err := r.Create(ctx, models.VariantItem, models.Attributes{"title": "Log"})
		if err != nil {
			return err
		}
		id = item.ID()
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The write was rolled back in storage; a fresh session cannot see it.
	r2 := New(store)
	_, err = r2.Get(ctx, models.VariantItem, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_CloseClearsSession(t *testing.T) {
	r, _ := newTestRepo(t)

	mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	require.Equal(t, 1, r.Session().Len())

	r.Close()
	assert.Equal(t, 0, r.Session().Len())
}

func TestScenario_ItemWithFile(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	item := mustCreate(t, r, models.VariantItem, models.Attributes{"title": "Log"})
	file := mustCreate(t, r, models.VariantFile, models.Attributes{"filename": "a.txt", "mimetype": "text/plain"})
	require.NoError(t, r.AddRelation(ctx, item.ID(), models.RelationFiles, file.ID()))

	got, err := r.Get(ctx, models.VariantItem, item.ID())
	require.NoError(t, err)

	files, err := got.Relation(ctx, models.RelationFiles)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, file.ID(), files[0].ID())

	again, err := r.Get(ctx, models.VariantItem, item.ID())
	require.NoError(t, err)
	assert.Same(t, got, again)
}
