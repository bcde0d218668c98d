package repo

import (
	"context"
	"fmt"

	"github.com/henondesigns/mollusk/internal/models"
)

// Entity is one in-memory domain object: immutable identity, eagerly
// loaded attributes, and named relationship slots that resolve lazily.
//
// An Entity holds a non-owning back-reference to the Repository that
// hydrated it, used only to request resolution and mediated updates. The
// session owns the Entity, never the reverse. Two entities are
// interchangeable iff their identities are equal; under the identity-map
// invariant a session only ever holds one object per identity anyway.
type Entity struct {
	id      string
	variant models.Variant
	attrs   models.Attributes
	slots   map[string]*relationSlot
	repo    *Repository
}

// relationSlot is the explicit tagged state of one lazy association:
// unresolved until first access, then it caches the canonical entities.
// Resolution is monotonic; only a relation mutation through the
// Repository forces a slot back to unresolved.
type relationSlot struct {
	resolved bool
	entities []*Entity
}

func newEntity(r *Repository, id string, variant models.Variant, attrs models.Attributes) *Entity {
	return &Entity{
		id:      id,
		variant: variant,
		attrs:   attrs,
		slots:   make(map[string]*relationSlot),
		repo:    r,
	}
}

// ID returns the entity's immutable identity.
func (e *Entity) ID() string { return e.id }

// Variant returns the entity's variant.
func (e *Entity) Variant() models.Variant { return e.variant }

// Attr returns one attribute value. Attributes are always populated before
// the entity is handed to a client, so a missing key means the key is not
// part of the variant's schema.
func (e *Entity) Attr(key string) any {
	return e.attrs[key]
}

// StringAttr returns an attribute as a string, or "" when it is absent or
// not a string.
func (e *Entity) StringAttr(key string) string {
	s, _ := e.attrs[key].(string)
	return s
}

// Attributes returns a copy of the attribute set. Mutation goes through
// Repository.UpdateAttributes; the copy keeps callers from diverging the
// cached state from storage.
func (e *Entity) Attributes() models.Attributes {
	return e.attrs.Clone()
}

// Equal reports identity equality, the only equality an Entity defines.
func (e *Entity) Equal(other *Entity) bool {
	return other != nil && e.id == other.id
}

// Relation returns the entities associated under label. The first access
// resolves through the repository and caches the result on the slot;
// subsequent accesses in the same session return the cached collection
// without touching storage. On failure the slot stays unresolved so the
// call can be retried.
func (e *Entity) Relation(ctx context.Context, label string) ([]*Entity, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("relation %q on %s: entity is detached from a session", label, e.id)
	}
	if slot, ok := e.slots[label]; ok && slot.resolved {
		return append([]*Entity(nil), slot.entities...), nil
	}
	entities, err := e.repo.resolver.resolve(ctx, e.id, label)
	if err != nil {
		return nil, err
	}
	e.setResolved(label, entities)
	return append([]*Entity(nil), entities...), nil
}

// Resolved reports whether the slot for label holds a cached result.
func (e *Entity) Resolved(label string) bool {
	slot, ok := e.slots[label]
	return ok && slot.resolved
}

func (e *Entity) setResolved(label string, entities []*Entity) {
	e.slots[label] = &relationSlot{resolved: true, entities: entities}
}

// invalidate forces the slot for label back to unresolved. Called by the
// Repository after a relation mutation; the whole slot is dropped rather
// than patched to avoid staleness from partial updates.
func (e *Entity) invalidate(label string) {
	delete(e.slots, label)
}
