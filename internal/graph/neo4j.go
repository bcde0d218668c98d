package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/henondesigns/mollusk/internal/models"
)

// Neo4jStore implements Store against a Neo4j server.
//
// Every entity is a (:Entity) node carrying id, variant, and the attribute
// set as flat properties. Relationship edges use a single :REL type with a
// label property, so labels stay open-ended strings rather than a fixed
// relationship-type vocabulary. Edge ordering uses a position property
// assigned at write time.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string

	mu sync.Mutex
	tx neo4j.ExplicitTransaction
	// session backing the explicit transaction, closed on Commit/Rollback.
	txSession neo4j.SessionWithContext
}

// Neo4jConfig holds connection settings for the Neo4j backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4jStore connects to the server and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

// neo4jErr maps driver errors onto the adapter error vocabulary.
func neo4jErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return err
	}
}

// run executes one Cypher statement and collects all records, routing
// through the active explicit transaction when one is open.
func (s *Neo4jStore) run(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()

	if tx != nil {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, neo4jErr(err)
		}
		records, err := result.Collect(ctx)
		return records, neo4jErr(err)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, neo4jErr(err)
	}
	records, err := result.Collect(ctx)
	return records, neo4jErr(err)
}

func recordToNode(record *neo4j.Record) (*Node, error) {
	raw, ok := record.Get("n")
	if !ok {
		return nil, errors.New("record missing node column")
	}
	dbNode, ok := raw.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected node column type %T", raw)
	}
	props := dbNode.Props
	id, _ := props["id"].(string)
	variant, _ := props["variant"].(string)
	attrs := make(models.Attributes, len(props))
	for k, v := range props {
		if k == "id" || k == "variant" {
			continue
		}
		attrs[k] = v
	}
	return &Node{ID: id, Variant: models.Variant(variant), Attrs: attrs}, nil
}

// FetchNode retrieves a node by identity.
func (s *Neo4jStore) FetchNode(ctx context.Context, id string) (*Node, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead,
		`MATCH (n:Entity {id: $id}) RETURN n`,
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return recordToNode(records[0])
}

// FetchNodes retrieves several nodes in one query.
func (s *Neo4jStore) FetchNodes(ctx context.Context, ids []string) (map[string]*Node, error) {
	out := make(map[string]*Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	records, err := s.run(ctx, neo4j.AccessModeRead,
		`MATCH (n:Entity) WHERE n.id IN $ids RETURN n`,
		map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		node, err := recordToNode(record)
		if err != nil {
			return nil, err
		}
		out[node.ID] = node
	}
	return out, nil
}

// WriteNode inserts a new node; an existing identity yields ErrConflict.
func (s *Neo4jStore) WriteNode(ctx context.Context, node Node) error {
	props := map[string]any{"id": node.ID, "variant": string(node.Variant)}
	for k, v := range node.Attrs {
		props[k] = v
	}
	records, err := s.run(ctx, neo4j.AccessModeWrite,
		`MERGE (n:Entity {id: $id})
		 ON CREATE SET n = $props, n.__created = true
		 ON MATCH SET n.__created = false
		 WITH n, n.__created AS created
		 REMOVE n.__created
		 RETURN created`,
		map[string]any{"id": node.ID, "props": props})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("writing node %s: no result", node.ID)
	}
	if created, _ := records[0].Values[0].(bool); !created {
		return fmt.Errorf("%w: node %s already exists", ErrConflict, node.ID)
	}
	return nil
}

// UpdateNode overwrites the given attribute keys on an existing node.
func (s *Neo4jStore) UpdateNode(ctx context.Context, id string, changes models.Attributes) error {
	records, err := s.run(ctx, neo4j.AccessModeWrite,
		`MATCH (n:Entity {id: $id}) SET n += $changes RETURN n.id`,
		map[string]any{"id": id, "changes": map[string]any(changes)})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteNode removes a node and every edge touching it.
func (s *Neo4jStore) DeleteNode(ctx context.Context, id string) error {
	records, err := s.run(ctx, neo4j.AccessModeWrite,
		`MATCH (n:Entity {id: $id})
		 WITH n, n.id AS deleted
		 DETACH DELETE n
		 RETURN deleted`,
		map[string]any{"id": id})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// FetchEdges returns target identities ordered by edge position.
func (s *Neo4jStore) FetchEdges(ctx context.Context, sourceID, label string) ([]string, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead,
		`MATCH (s:Entity {id: $source})-[r:REL {label: $label}]->(t:Entity)
		 RETURN t.id ORDER BY r.position`,
		map[string]any{"source": sourceID, "label": label})
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, record := range records {
		if id, ok := record.Values[0].(string); ok {
			targets = append(targets, id)
		}
	}
	return targets, nil
}

// FetchEdgesForSources resolves many sources under one label with a single
// query.
func (s *Neo4jStore) FetchEdgesForSources(ctx context.Context, sourceIDs []string, label string) (map[string][]string, error) {
	out := make(map[string][]string, len(sourceIDs))
	for _, src := range sourceIDs {
		out[src] = []string{}
	}
	if len(sourceIDs) == 0 {
		return out, nil
	}
	records, err := s.run(ctx, neo4j.AccessModeRead,
		`MATCH (s:Entity)-[r:REL {label: $label}]->(t:Entity)
		 WHERE s.id IN $sources
		 RETURN s.id, t.id ORDER BY s.id, r.position`,
		map[string]any{"sources": sourceIDs, "label": label})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		src, _ := record.Values[0].(string)
		target, _ := record.Values[1].(string)
		out[src] = append(out[src], target)
	}
	return out, nil
}

// WriteEdge adds the directed edge; duplicates are no-ops.
func (s *Neo4jStore) WriteEdge(ctx context.Context, sourceID, label, targetID string) error {
	_, err := s.run(ctx, neo4j.AccessModeWrite,
		`MATCH (s:Entity {id: $source}), (t:Entity {id: $target})
		 OPTIONAL MATCH (s)-[existing:REL {label: $label}]->(:Entity)
		 WITH s, t, COALESCE(MAX(existing.position), 0) + 1 AS next
		 MERGE (s)-[r:REL {label: $label}]->(t)
		 ON CREATE SET r.position = next`,
		map[string]any{"source": sourceID, "label": label, "target": targetID})
	return err
}

// DeleteEdge removes the directed edge; missing edges are no-ops.
func (s *Neo4jStore) DeleteEdge(ctx context.Context, sourceID, label, targetID string) error {
	_, err := s.run(ctx, neo4j.AccessModeWrite,
		`MATCH (s:Entity {id: $source})-[r:REL {label: $label}]->(t:Entity {id: $target})
		 DELETE r`,
		map[string]any{"source": sourceID, "label": label, "target": targetID})
	return err
}

// ListNodes returns nodes of one variant ordered by identity.
func (s *Neo4jStore) ListNodes(ctx context.Context, variant models.Variant, offset, limit int) ([]*Node, error) {
	if limit <= 0 {
		limit = int(^uint(0) >> 1)
	}
	records, err := s.run(ctx, neo4j.AccessModeRead,
		`MATCH (n:Entity {variant: $variant})
		 RETURN n ORDER BY n.id SKIP $offset LIMIT $limit`,
		map[string]any{"variant": string(variant), "offset": offset, "limit": limit})
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(records))
	for _, record := range records {
		node, err := recordToNode(record)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// CountNodes returns per-variant node counts.
func (s *Neo4jStore) CountNodes(ctx context.Context) (map[models.Variant]int64, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead,
		`MATCH (n:Entity) RETURN n.variant, count(*)`, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Variant]int64)
	for _, record := range records {
		v, _ := record.Values[0].(string)
		n, _ := record.Values[1].(int64)
		out[models.Variant(v)] = n
	}
	return out, nil
}

type neo4jTx struct {
	store *Neo4jStore
}

// BeginTx opens an explicit transaction and routes subsequent store calls
// through it until Commit or Rollback.
func (s *Neo4jStore) BeginTx(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil, errors.New("transaction already in progress")
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, neo4jErr(err)
	}
	s.tx = tx
	s.txSession = session
	return &neo4jTx{store: s}, nil
}

func (t *neo4jTx) finish(ctx context.Context, commit bool) error {
	t.store.mu.Lock()
	tx := t.store.tx
	session := t.store.txSession
	t.store.tx = nil
	t.store.txSession = nil
	t.store.mu.Unlock()
	if tx == nil {
		return errors.New("transaction already finished")
	}
	defer session.Close(ctx)
	if commit {
		return neo4jErr(tx.Commit(ctx))
	}
	return neo4jErr(tx.Rollback(ctx))
}

func (t *neo4jTx) Commit(ctx context.Context) error   { return t.finish(ctx, true) }
func (t *neo4jTx) Rollback(ctx context.Context) error { return t.finish(ctx, false) }

// Close shuts down the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
