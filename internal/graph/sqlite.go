package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/henondesigns/mollusk/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// sqliteSchema holds one row per node and one row per directed edge.
// Edge ordering is the insertion position, so FetchEdges is stable.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
    id      TEXT PRIMARY KEY,
    variant TEXT NOT NULL,
    attrs   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
    source_id TEXT NOT NULL,
    label     TEXT NOT NULL,
    target_id TEXT NOT NULL,
    position  INTEGER NOT NULL,
    PRIMARY KEY (source_id, label, target_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_source_label ON edges(source_id, label, position);
`

// SQLiteStore implements Store on an embedded SQLite database.
//
// A begun transaction routes all subsequent calls through it until Commit
// or Rollback. That matches the one-logical-actor-per-session model; the
// store does not support interleaved transactions.
type SQLiteStore struct {
	db *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

// querier is the common surface of *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) q() querier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// sqliteErr maps driver errors onto the adapter error vocabulary.
func sqliteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// FetchNode retrieves a node by identity.
func (s *SQLiteStore) FetchNode(ctx context.Context, id string) (*Node, error) {
	var variant, attrsJSON string
	err := s.q().QueryRowContext(ctx,
		`SELECT variant, attrs FROM nodes WHERE id = ?`, id,
	).Scan(&variant, &attrsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, sqliteErr(err)
	}
	return decodeNode(id, variant, attrsJSON)
}

// FetchNodes retrieves several nodes in one query. Missing identities are
// absent from the result.
func (s *SQLiteStore) FetchNodes(ctx context.Context, ids []string) (map[string]*Node, error) {
	out := make(map[string]*Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q().QueryContext(ctx,
		`SELECT id, variant, attrs FROM nodes WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, sqliteErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, variant, attrsJSON string
		if err := rows.Scan(&id, &variant, &attrsJSON); err != nil {
			return nil, sqliteErr(err)
		}
		node, err := decodeNode(id, variant, attrsJSON)
		if err != nil {
			return nil, err
		}
		out[id] = node
	}
	return out, sqliteErr(rows.Err())
}

// WriteNode inserts a new node. An existing identity yields ErrConflict.
func (s *SQLiteStore) WriteNode(ctx context.Context, node Node) error {
	attrsJSON, err := json.MarshalToString(node.Attrs)
	if err != nil {
		return fmt.Errorf("encoding attributes for %s: %w", node.ID, err)
	}
	_, err = s.q().ExecContext(ctx,
		`INSERT INTO nodes (id, variant, attrs) VALUES (?, ?, ?)`,
		node.ID, string(node.Variant), attrsJSON)
	return sqliteErr(err)
}

// UpdateNode overwrites the given attribute keys on an existing node.
// json_patch merges in one statement, so concurrent sessions updating
// different keys cannot lose each other's writes.
func (s *SQLiteStore) UpdateNode(ctx context.Context, id string, changes models.Attributes) error {
	patch, err := json.MarshalToString(changes)
	if err != nil {
		return fmt.Errorf("encoding attribute changes for %s: %w", id, err)
	}
	res, err := s.q().ExecContext(ctx,
		`UPDATE nodes SET attrs = json_patch(attrs, ?) WHERE id = ?`, patch, id)
	if err != nil {
		return sqliteErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sqliteErr(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteNode removes a node and every edge touching it.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id string) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return sqliteErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sqliteErr(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	_, err = s.q().ExecContext(ctx,
		`DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id)
	return sqliteErr(err)
}

// FetchEdges returns target identities ordered by insertion position.
func (s *SQLiteStore) FetchEdges(ctx context.Context, sourceID, label string) ([]string, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT target_id FROM edges WHERE source_id = ? AND label = ? ORDER BY position`,
		sourceID, label)
	if err != nil {
		return nil, sqliteErr(err)
	}
	defer rows.Close()
	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, sqliteErr(err)
		}
		targets = append(targets, t)
	}
	return targets, sqliteErr(rows.Err())
}

// FetchEdgesForSources resolves many sources under one label with a single
// query.
func (s *SQLiteStore) FetchEdgesForSources(ctx context.Context, sourceIDs []string, label string) (map[string][]string, error) {
	out := make(map[string][]string, len(sourceIDs))
	for _, src := range sourceIDs {
		out[src] = []string{}
	}
	if len(sourceIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sourceIDs)), ",")
	args := make([]any, 0, len(sourceIDs)+1)
	for _, src := range sourceIDs {
		args = append(args, src)
	}
	args = append(args, label)
	rows, err := s.q().QueryContext(ctx,
		`SELECT source_id, target_id FROM edges
		 WHERE source_id IN (`+placeholders+`) AND label = ?
		 ORDER BY source_id, position`, args...)
	if err != nil {
		return nil, sqliteErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var src, target string
		if err := rows.Scan(&src, &target); err != nil {
			return nil, sqliteErr(err)
		}
		out[src] = append(out[src], target)
	}
	return out, sqliteErr(rows.Err())
}

// WriteEdge adds the directed edge; duplicates are ignored.
func (s *SQLiteStore) WriteEdge(ctx context.Context, sourceID, label, targetID string) error {
	_, err := s.q().ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (source_id, label, target_id, position)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM edges WHERE source_id = ? AND label = ?))`,
		sourceID, label, targetID, sourceID, label)
	return sqliteErr(err)
}

// DeleteEdge removes the directed edge; missing edges are ignored.
func (s *SQLiteStore) DeleteEdge(ctx context.Context, sourceID, label, targetID string) error {
	_, err := s.q().ExecContext(ctx,
		`DELETE FROM edges WHERE source_id = ? AND label = ? AND target_id = ?`,
		sourceID, label, targetID)
	return sqliteErr(err)
}

// ListNodes returns nodes of one variant ordered by identity.
func (s *SQLiteStore) ListNodes(ctx context.Context, variant models.Variant, offset, limit int) ([]*Node, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q().QueryContext(ctx,
		`SELECT id, variant, attrs FROM nodes WHERE variant = ? ORDER BY id LIMIT ? OFFSET ?`,
		string(variant), limit, offset)
	if err != nil {
		return nil, sqliteErr(err)
	}
	defer rows.Close()
	var out []*Node
	for rows.Next() {
		var id, v, attrsJSON string
		if err := rows.Scan(&id, &v, &attrsJSON); err != nil {
			return nil, sqliteErr(err)
		}
		node, err := decodeNode(id, v, attrsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, sqliteErr(rows.Err())
}

// CountNodes returns per-variant node counts.
func (s *SQLiteStore) CountNodes(ctx context.Context) (map[models.Variant]int64, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT variant, COUNT(*) FROM nodes GROUP BY variant`)
	if err != nil {
		return nil, sqliteErr(err)
	}
	defer rows.Close()
	out := make(map[models.Variant]int64)
	for rows.Next() {
		var v string
		var n int64
		if err := rows.Scan(&v, &n); err != nil {
			return nil, sqliteErr(err)
		}
		out[models.Variant(v)] = n
	}
	return out, sqliteErr(rows.Err())
}

type sqliteTx struct {
	store *SQLiteStore
	tx    *sql.Tx
}

// BeginTx opens a database transaction and routes subsequent store calls
// through it until Commit or Rollback.
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil, errors.New("transaction already in progress")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sqliteErr(err)
	}
	s.tx = tx
	return &sqliteTx{store: s, tx: tx}, nil
}

func (t *sqliteTx) Commit(_ context.Context) error {
	t.store.mu.Lock()
	t.store.tx = nil
	t.store.mu.Unlock()
	return sqliteErr(t.tx.Commit())
}

func (t *sqliteTx) Rollback(_ context.Context) error {
	t.store.mu.Lock()
	t.store.tx = nil
	t.store.mu.Unlock()
	return sqliteErr(t.tx.Rollback())
}

// Close closes the underlying database.
func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}

func decodeNode(id, variant, attrsJSON string) (*Node, error) {
	var attrs models.Attributes
	if err := json.UnmarshalFromString(attrsJSON, &attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes for %s: %w", id, err)
	}
	return &Node{ID: id, Variant: models.Variant(variant), Attrs: attrs}, nil
}
