package repo

import "fmt"

// IdentityMap is the per-session canonical-instance cache: at most one
// in-memory Entity exists for a given identity within one session.
//
// It never touches storage and is not safe for concurrent use; a session
// assumes one logical actor (see the package doc).
type IdentityMap struct {
	entries map[string]*Entity
}

// NewIdentityMap creates an empty identity map.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{entries: make(map[string]*Entity)}
}

// Lookup returns the canonical instance for id, if one is cached.
func (m *IdentityMap) Lookup(id string) (*Entity, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Register inserts a freshly hydrated entity. Registering a *different*
// object under an identity that is already cached fails with
// ErrDuplicateIdentity: that signals a consistency bug rather than being
// silently papered over. Re-registering the same object is a no-op.
func (m *IdentityMap) Register(id string, e *Entity) error {
	if existing, ok := m.entries[id]; ok {
		if existing == e {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, id)
	}
	m.entries[id] = e
	return nil
}

// Evict drops the entry for id, if any.
func (m *IdentityMap) Evict(id string) {
	delete(m.entries, id)
}

// Clear drops every entry. Used at session boundaries.
func (m *IdentityMap) Clear() {
	m.entries = make(map[string]*Entity)
}

// Len returns the number of cached entities.
func (m *IdentityMap) Len() int {
	return len(m.entries)
}
