package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/henondesigns/mollusk/internal/models"
)

// MemoryStore is an in-memory implementation of Store for testing and for
// running without a persistent backend. It counts calls per operation so
// tests can assert on lazy-load and batching behavior, and supports one-shot
// failure injection for retry scenarios.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[EdgeKey][]string

	calls    map[string]int
	failNext map[string]error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*Node),
		edges:    make(map[EdgeKey][]string),
		calls:    make(map[string]int),
		failNext: make(map[string]error),
	}
}

// CallCount returns how many times the named operation has been invoked.
func (m *MemoryStore) CallCount(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// FailNext arranges for the next invocation of the named operation to
// return err instead of executing.
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

// enter records the call and pops any injected failure. Caller must hold mu.
func (m *MemoryStore) enter(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

func copyNode(n *Node) *Node {
	out := *n
	out.Attrs = n.Attrs.Clone()
	return &out
}

// FetchNode retrieves a node by identity.
func (m *MemoryStore) FetchNode(ctx context.Context, id string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "FetchNode"); err != nil {
		return nil, err
	}
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyNode(n), nil
}

// FetchNodes retrieves several nodes at once. Missing identities are absent
// from the result.
func (m *MemoryStore) FetchNodes(ctx context.Context, ids []string) (map[string]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "FetchNodes"); err != nil {
		return nil, err
	}
	out := make(map[string]*Node, len(ids))
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			out[id] = copyNode(n)
		}
	}
	return out, nil
}

// WriteNode inserts a new node.
func (m *MemoryStore) WriteNode(ctx context.Context, node Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "WriteNode"); err != nil {
		return err
	}
	if _, ok := m.nodes[node.ID]; ok {
		return fmt.Errorf("%w: node %s already exists", ErrConflict, node.ID)
	}
	node.Attrs = node.Attrs.Clone()
	m.nodes[node.ID] = &node
	return nil
}

// UpdateNode overwrites the given attribute keys on an existing node.
func (m *MemoryStore) UpdateNode(ctx context.Context, id string, changes models.Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "UpdateNode"); err != nil {
		return err
	}
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for k, v := range changes {
		n.Attrs[k] = v
	}
	return nil
}

// DeleteNode removes a node and every edge touching it.
func (m *MemoryStore) DeleteNode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "DeleteNode"); err != nil {
		return err
	}
	if _, ok := m.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.nodes, id)
	for key, targets := range m.edges {
		if key.SourceID == id {
			delete(m.edges, key)
			continue
		}
		m.edges[key] = removeAll(targets, id)
	}
	return nil
}

// FetchEdges returns the ordered target identities for (sourceID, label).
func (m *MemoryStore) FetchEdges(ctx context.Context, sourceID, label string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "FetchEdges"); err != nil {
		return nil, err
	}
	targets := m.edges[EdgeKey{SourceID: sourceID, Label: label}]
	out := make([]string, len(targets))
	copy(out, targets)
	return out, nil
}

// FetchEdgesForSources resolves many sources under one label in one call.
func (m *MemoryStore) FetchEdgesForSources(ctx context.Context, sourceIDs []string, label string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "FetchEdgesForSources"); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(sourceIDs))
	for _, src := range sourceIDs {
		targets := m.edges[EdgeKey{SourceID: src, Label: label}]
		cp := make([]string, len(targets))
		copy(cp, targets)
		out[src] = cp
	}
	return out, nil
}

// WriteEdge adds the directed edge. Duplicate writes are no-ops.
func (m *MemoryStore) WriteEdge(ctx context.Context, sourceID, label, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "WriteEdge"); err != nil {
		return err
	}
	key := EdgeKey{SourceID: sourceID, Label: label}
	for _, t := range m.edges[key] {
		if t == targetID {
			return nil
		}
	}
	m.edges[key] = append(m.edges[key], targetID)
	return nil
}

// DeleteEdge removes the directed edge. Missing edges are no-ops.
func (m *MemoryStore) DeleteEdge(ctx context.Context, sourceID, label, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "DeleteEdge"); err != nil {
		return err
	}
	key := EdgeKey{SourceID: sourceID, Label: label}
	m.edges[key] = removeAll(m.edges[key], targetID)
	return nil
}

// ListNodes returns nodes of one variant ordered by identity.
func (m *MemoryStore) ListNodes(ctx context.Context, variant models.Variant, offset, limit int) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ListNodes"); err != nil {
		return nil, err
	}
	var ids []string
	for id, n := range m.nodes {
		if n.Variant == variant {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyNode(m.nodes[id]))
	}
	return out, nil
}

// CountNodes returns per-variant node counts.
func (m *MemoryStore) CountNodes(ctx context.Context) (map[models.Variant]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "CountNodes"); err != nil {
		return nil, err
	}
	out := make(map[models.Variant]int64)
	for _, n := range m.nodes {
		out[n.Variant]++
	}
	return out, nil
}

// memoryTx rolls back by restoring a snapshot taken at BeginTx.
type memoryTx struct {
	store *MemoryStore
	nodes map[string]*Node
	edges map[EdgeKey][]string
	done  bool
}

// BeginTx snapshots the store; Rollback restores the snapshot.
func (m *MemoryStore) BeginTx(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "BeginTx"); err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(m.nodes))
	for id, n := range m.nodes {
		nodes[id] = copyNode(n)
	}
	edges := make(map[EdgeKey][]string, len(m.edges))
	for key, targets := range m.edges {
		cp := make([]string, len(targets))
		copy(cp, targets)
		edges[key] = cp
	}
	return &memoryTx{store: m, nodes: nodes, edges: edges}, nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.nodes = t.nodes
	t.store.edges = t.edges
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close(_ context.Context) error {
	return nil
}

func removeAll(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// ctxErr maps context expiry onto the adapter error vocabulary.
func ctxErr(ctx context.Context) error {
	switch {
	case ctx.Err() == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	default:
		return ctx.Err()
	}
}
