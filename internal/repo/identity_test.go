package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henondesigns/mollusk/internal/models"
)

func TestIdentityMap_RegisterAndLookup(t *testing.T) {
	m := NewIdentityMap()

	e := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "x"})
	require.NoError(t, m.Register("id-1", e))

	got, ok := m.Lookup("id-1")
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.Equal(t, 1, m.Len())
}

func TestIdentityMap_DuplicateRegistrationFails(t *testing.T) {
	m := NewIdentityMap()

	a := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "a"})
	b := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "b"})
	require.NoError(t, m.Register("id-1", a))

	err := m.Register("id-1", b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	// The original entry survives.
	got, ok := m.Lookup("id-1")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestIdentityMap_ReregisteringSameObjectIsNoop(t *testing.T) {
	m := NewIdentityMap()

	e := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "x"})
	require.NoError(t, m.Register("id-1", e))
	assert.NoError(t, m.Register("id-1", e))
	assert.Equal(t, 1, m.Len())
}

func TestIdentityMap_EvictAndClear(t *testing.T) {
	m := NewIdentityMap()

	require.NoError(t, m.Register("a", newEntity(nil, "a", models.VariantItem, models.Attributes{"title": "a"})))
	require.NoError(t, m.Register("b", newEntity(nil, "b", models.VariantItem, models.Attributes{"title": "b"})))

	m.Evict("a")
	_, ok := m.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestEntity_EqualityByIdentity(t *testing.T) {
	a := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "a"})
	b := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "b"})
	c := newEntity(nil, "id-2", models.VariantItem, models.Attributes{"title": "a"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestEntity_AttributesReturnsCopy(t *testing.T) {
	e := newEntity(nil, "id-1", models.VariantItem, models.Attributes{"title": "a"})

	attrs := e.Attributes()
	attrs["title"] = "mutated"

	assert.Equal(t, "a", e.StringAttr("title"))
}
