// Package repo implements the repository / smart-record core: a session-
// scoped façade that hydrates entities from a graph storage adapter, keeps
// one canonical in-memory object per identity, resolves relationships
// lazily, and is the sole authority for persistence and relationship
// mutation.
//
// One Repository is one session (unit of work). A session assumes a single
// logical actor; the core provides no internal locking, and cross-session
// consistency is the storage adapter's concern.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/henondesigns/mollusk/internal/graph"
	"github.com/henondesigns/mollusk/internal/metrics"
	"github.com/henondesigns/mollusk/internal/models"
)

// Repository is the façade clients interact with exclusively. Entities
// never write to storage themselves; they hold only a back-reference here.
type Repository struct {
	store    graph.Store
	session  *IdentityMap
	resolver *resolver
	log      *slog.Logger
}

// Option customizes a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for debug-level operation traces.
func WithLogger(log *slog.Logger) Option {
	return func(r *Repository) { r.log = log }
}

// New creates a Repository with a fresh session over the given adapter.
func New(store graph.Store, opts ...Option) *Repository {
	r := &Repository{
		store:   store,
		session: NewIdentityMap(),
		log:     slog.Default(),
	}
	r.resolver = &resolver{repo: r}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session exposes the identity map, mainly for tests and diagnostics.
func (r *Repository) Session() *IdentityMap { return r.session }

// materialize turns a fetched node into the canonical entity for its
// identity, registering it in the session on first sight. Hydration is
// all-or-nothing: an entity with an invalid attribute set is never
// constructed.
func (r *Repository) materialize(node *graph.Node) (*Entity, error) {
	if e, ok := r.session.Lookup(node.ID); ok {
		return e, nil
	}
	if err := models.ValidateAttributes(node.Variant, node.Attrs); err != nil {
		return nil, fmt.Errorf("hydrating %s: %w", node.ID, err)
	}
	e := newEntity(r, node.ID, node.Variant, node.Attrs)
	if err := r.session.Register(node.ID, e); err != nil {
		return nil, err
	}
	metrics.Inc(metrics.HydrationsTotal)
	r.log.Debug("hydrated entity", "variant", node.Variant, "id", node.ID)
	return e, nil
}

// Get returns the canonical entity for id, hydrating from storage on a
// session miss. Repeated calls within one session return the same object.
func (r *Repository) Get(ctx context.Context, variant models.Variant, id string) (*Entity, error) {
	if e, ok := r.session.Lookup(id); ok {
		if e.Variant() != variant {
			return nil, fmt.Errorf("get %s %s: %w: cached as variant %s", variant, id, ErrNotFound, e.Variant())
		}
		metrics.Inc(metrics.SessionHitsTotal)
		return e, nil
	}
	node, err := r.store.FetchNode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", variant, id, err)
	}
	if node.Variant != variant {
		return nil, fmt.Errorf("get %s %s: %w: stored as variant %s", variant, id, ErrNotFound, node.Variant)
	}
	return r.materialize(node)
}

// GetMany returns entities in input order, deduplicating storage fetches
// for identities the session already holds. Every identity must exist.
func (r *Repository) GetMany(ctx context.Context, variant models.Variant, ids []string) ([]*Entity, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := r.session.Lookup(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		nodes, err := r.store.FetchNodes(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("get %d %s entities: %w", len(ids), variant, err)
		}
		for _, id := range missing {
			node, ok := nodes[id]
			if !ok {
				return nil, fmt.Errorf("get %s %s: %w", variant, id, ErrNotFound)
			}
			if _, err := r.materialize(node); err != nil {
				return nil, err
			}
		}
	}
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		e, _ := r.session.Lookup(id)
		if e.Variant() != variant {
			return nil, fmt.Errorf("get %s %s: %w: stored as variant %s", variant, id, ErrNotFound, e.Variant())
		}
		out = append(out, e)
	}
	return out, nil
}

// List returns a page of entities of one variant, ordered by identity.
// Listed entities are materialized through the session like any other.
func (r *Repository) List(ctx context.Context, variant models.Variant, offset, limit int) ([]*Entity, error) {
	nodes, err := r.store.ListNodes(ctx, variant, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", variant, err)
	}
	out := make([]*Entity, 0, len(nodes))
	for _, node := range nodes {
		e, err := r.materialize(node)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Stats returns per-variant entity counts from storage.
func (r *Repository) Stats(ctx context.Context) (map[models.Variant]int64, error) {
	counts, err := r.store.CountNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return counts, nil
}

// Create assigns a new identity, stamps the creation and update times,
// persists the attributes, and registers the entity in the session.
// Relationship slots start unresolved.
func (r *Repository) Create(ctx context.Context, variant models.Variant, attrs models.Attributes) (*Entity, error) {
	if err := models.ValidateAttributes(variant, attrs); err != nil {
		return nil, fmt.Errorf("create %s: %w", variant, err)
	}
	id := uuid.NewString()
	attrs = attrs.Clone()
	now := time.Now().UTC().Format(time.RFC3339)
	attrs["created"] = now
	attrs["updated"] = now
	if err := r.store.WriteNode(ctx, graph.Node{ID: id, Variant: variant, Attrs: attrs}); err != nil {
		return nil, fmt.Errorf("create %s %s: %w", variant, id, err)
	}
	e := newEntity(r, id, variant, attrs)
	if err := r.session.Register(id, e); err != nil {
		return nil, err
	}
	r.log.Debug("created entity", "variant", variant, "id", id)
	return e, nil
}

// UpdateAttributes writes changes through to storage and mutates the
// cached entity in place, so existing references observe the update.
// The update time is restamped; the caller's map is left untouched.
func (r *Repository) UpdateAttributes(ctx context.Context, id string, changes models.Attributes) error {
	changes = changes.Clone()
	if changes == nil {
		changes = models.Attributes{}
	}
	changes["updated"] = time.Now().UTC().Format(time.RFC3339)
	if err := r.store.UpdateNode(ctx, id, changes); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if e, ok := r.session.Lookup(id); ok {
		for k, v := range changes {
			e.attrs[k] = v
		}
	}
	return nil
}

// AddRelation writes the edge (sourceID, label, targetID). A resolved slot
// for that label on the cached source is invalidated, not patched, so the
// next access re-resolves against storage.
func (r *Repository) AddRelation(ctx context.Context, sourceID, label, targetID string) error {
	if err := r.store.WriteEdge(ctx, sourceID, label, targetID); err != nil {
		return fmt.Errorf("relate %s[%s] -> %s: %w", sourceID, label, targetID, err)
	}
	metrics.Inc(metrics.EdgeWritesTotal)
	r.invalidateSlot(sourceID, label)
	return nil
}

// RemoveRelation deletes the edge, with the same invalidation rule as
// AddRelation.
func (r *Repository) RemoveRelation(ctx context.Context, sourceID, label, targetID string) error {
	if err := r.store.DeleteEdge(ctx, sourceID, label, targetID); err != nil {
		return fmt.Errorf("unrelate %s[%s] -> %s: %w", sourceID, label, targetID, err)
	}
	r.invalidateSlot(sourceID, label)
	return nil
}

func (r *Repository) invalidateSlot(sourceID, label string) {
	if e, ok := r.session.Lookup(sourceID); ok {
		if e.Resolved(label) {
			metrics.Inc(metrics.SlotInvalidations)
		}
		e.invalidate(label)
	}
}

// Delete removes the entity and all its edges from storage and evicts it
// from the session.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteNode(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	r.session.Evict(id)
	return nil
}

// ResolveRelations is the batch resolution API: results match resolving
// each ref individually, but the adapter is queried once per distinct
// label plus at most one node fetch for all cache misses.
func (r *Repository) ResolveRelations(ctx context.Context, refs []RelationRef) (map[RelationRef][]*Entity, error) {
	results, err := r.resolver.resolveMany(ctx, refs)
	if err != nil {
		return nil, err
	}
	// Cache each result on its source's slot when the source is held by
	// the session, matching what individual resolution would have done.
	for ref, entities := range results {
		if e, ok := r.session.Lookup(ref.SourceID); ok {
			e.setResolved(ref.Label, entities)
		}
	}
	return results, nil
}

// WithTransaction groups repository calls inside one adapter transaction:
// commit on normal return, rollback on error or panic. Transaction
// mechanics are entirely the adapter's.
func (r *Repository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(ctx); err != nil {
		done = true
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	done = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close ends the session, evicting every cached entity. The adapter stays
// open; it is owned by the caller.
func (r *Repository) Close() {
	r.session.Clear()
}
