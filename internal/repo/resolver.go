package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/henondesigns/mollusk/internal/graph"
	"github.com/henondesigns/mollusk/internal/metrics"
)

// RelationRef addresses one relationship slot for batch resolution.
type RelationRef struct {
	SourceID string
	Label    string
}

// resolver turns (source identity, relation label) into ordered canonical
// entities, deduplicating through the session's identity map and hydrating
// targets from storage on cache misses.
type resolver struct {
	repo *Repository
}

// tagResolution marks err as a resolution failure while keeping the
// underlying kind matchable. Timeouts keep their own kind, and an error
// already carrying the resolution kind is not tagged twice.
func tagResolution(err error) error {
	if errors.Is(err, ErrResolution) || errors.Is(err, graph.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrResolution, err)
}

// wrapResolve adds slot context on top of the resolution tag.
func wrapResolve(sourceID, label string, err error) error {
	return fmt.Errorf("resolve %s[%s]: %w", sourceID, label, tagResolution(err))
}

// resolve fetches the edge list for one slot and dereferences every target
// into its canonical instance.
func (rs *resolver) resolve(ctx context.Context, sourceID, label string) ([]*Entity, error) {
	targets, err := rs.repo.store.FetchEdges(ctx, sourceID, label)
	if err != nil {
		return nil, wrapResolve(sourceID, label, err)
	}
	entities, err := rs.materializeAll(ctx, targets)
	if err != nil {
		return nil, wrapResolve(sourceID, label, err)
	}
	metrics.Inc(metrics.ResolutionsTotal)
	return entities, nil
}

// resolveMany resolves a batch of slots, issuing one edge query per
// distinct label (not one per source) and one node fetch for all cache
// misses combined. Results are identical to calling resolve per pair.
func (rs *resolver) resolveMany(ctx context.Context, refs []RelationRef) (map[RelationRef][]*Entity, error) {
	bySources := make(map[string][]string)
	for _, ref := range refs {
		bySources[ref.Label] = append(bySources[ref.Label], ref.SourceID)
	}

	edges := make(map[RelationRef][]string, len(refs))
	var allTargets []string
	for label, sources := range bySources {
		perSource, err := rs.repo.store.FetchEdgesForSources(ctx, sources, label)
		if err != nil {
			return nil, wrapResolve(sources[0], label, err)
		}
		for src, targets := range perSource {
			edges[RelationRef{SourceID: src, Label: label}] = targets
			allTargets = append(allTargets, targets...)
		}
	}

	if err := rs.prefetch(ctx, allTargets); err != nil {
		return nil, tagResolution(err)
	}

	out := make(map[RelationRef][]*Entity, len(refs))
	for _, ref := range refs {
		entities, err := rs.materializeAll(ctx, edges[ref])
		if err != nil {
			return nil, wrapResolve(ref.SourceID, ref.Label, err)
		}
		out[ref] = entities
	}
	metrics.Inc(metrics.BatchResolutionsTotal)
	return out, nil
}

// prefetch hydrates every identity not yet in the session with a single
// node fetch, so materializeAll afterwards runs purely from the cache.
func (rs *resolver) prefetch(ctx context.Context, ids []string) error {
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := rs.repo.session.Lookup(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	nodes, err := rs.repo.store.FetchNodes(ctx, missing)
	if err != nil {
		return fmt.Errorf("prefetching %d nodes: %w", len(missing), err)
	}
	for _, id := range missing {
		node, ok := nodes[id]
		if !ok {
			return fmt.Errorf("%w: edge target %s has no node", ErrResolution, id)
		}
		if _, err := rs.repo.materialize(node); err != nil {
			return err
		}
	}
	return nil
}

// materializeAll maps target identities onto canonical entities, hydrating
// any that the session has not seen yet.
func (rs *resolver) materializeAll(ctx context.Context, ids []string) ([]*Entity, error) {
	entities := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := rs.repo.session.Lookup(id); ok {
			entities = append(entities, e)
			metrics.Inc(metrics.SessionHitsTotal)
			continue
		}
		node, err := rs.repo.store.FetchNode(ctx, id)
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				return nil, fmt.Errorf("%w: edge target %s has no node", ErrResolution, id)
			}
			return nil, err
		}
		e, err := rs.repo.materialize(node)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}
