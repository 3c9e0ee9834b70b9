package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shruggr/geotrie/kvstore"
	"github.com/shruggr/geotrie/metadata"
)

// Store is a SQLite-backed implementation of metadata.Store
type Store struct {
	db *sql.DB
}

// Config holds configuration for SQLite
type Config struct {
	DBPath string // Path to SQLite database file, or ":memory:"
}

// New creates a new SQLite-backed trie catalog
func New(config *Config) (*Store, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("DBPath is required")
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// Every connection to ":memory:" opens its own empty database
	if config.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tries (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		hash            BLOB NOT NULL,
		entries         INTEGER NOT NULL,
		keys            INTEGER NOT NULL,
		nodes           INTEGER NOT NULL,
		size            INTEGER NOT NULL,
		edge_value_size INTEGER NOT NULL,
		value_list      TEXT NOT NULL,
		created_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tries_name ON tries(name, seq);
	CREATE INDEX IF NOT EXISTS idx_tries_hash ON tries(hash);
	`

	_, err := s.db.Exec(schema)
	return err
}

const trieColumns = `id, name, hash, entries, keys, nodes, size, edge_value_size, value_list, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrie(row rowScanner) (*metadata.TrieMeta, error) {
	var meta metadata.TrieMeta
	var id string
	var hash []byte

	err := row.Scan(&id, &meta.Name, &hash, &meta.Entries, &meta.Keys, &meta.Nodes,
		&meta.Size, &meta.EdgeValueSize, &meta.ValueList, &meta.CreatedAt)
	if err != nil {
		return nil, err
	}

	meta.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid trie id %q: %w", id, err)
	}
	if len(hash) != len(meta.Hash) {
		return nil, fmt.Errorf("invalid trie hash length %d", len(hash))
	}
	copy(meta.Hash[:], hash)

	return &meta, nil
}

// PutTrie records a finished build
func (s *Store) PutTrie(ctx context.Context, meta *metadata.TrieMeta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tries (`+trieColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID.String(), meta.Name, meta.Hash[:], meta.Entries, meta.Keys, meta.Nodes,
		meta.Size, meta.EdgeValueSize, meta.ValueList, meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trie: %w", err)
	}
	return nil
}

// GetTrie retrieves the latest build of name
func (s *Store) GetTrie(ctx context.Context, name string) (*metadata.TrieMeta, error) {
	meta, err := scanTrie(s.db.QueryRowContext(ctx,
		`SELECT `+trieColumns+` FROM tries WHERE name = ? ORDER BY seq DESC LIMIT 1`,
		name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trie: %w", err)
	}
	return meta, nil
}

// GetTrieByHash retrieves the latest build with the given digest
func (s *Store) GetTrieByHash(ctx context.Context, hash kvstore.Hash) (*metadata.TrieMeta, error) {
	meta, err := scanTrie(s.db.QueryRowContext(ctx,
		`SELECT `+trieColumns+` FROM tries WHERE hash = ? ORDER BY seq DESC LIMIT 1`,
		hash[:],
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trie by hash: %w", err)
	}
	return meta, nil
}

// ListTries returns the latest build of every name
func (s *Store) ListTries(ctx context.Context) ([]*metadata.TrieMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trieColumns+` FROM tries
		 WHERE seq IN (SELECT MAX(seq) FROM tries GROUP BY name)
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tries: %w", err)
	}
	defer rows.Close()

	return collectTries(rows)
}

// DeleteTrie removes every build of name
func (s *Store) DeleteTrie(ctx context.Context, name string) ([]*metadata.TrieMeta, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+trieColumns+` FROM tries WHERE name = ? ORDER BY seq`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tries: %w", err)
	}
	removed, err := collectTries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tries WHERE name = ?`, name); err != nil {
		return nil, fmt.Errorf("failed to delete tries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return removed, nil
}

func collectTries(rows *sql.Rows) ([]*metadata.TrieMeta, error) {
	var tries []*metadata.TrieMeta
	for rows.Next() {
		meta, err := scanTrie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trie: %w", err)
		}
		tries = append(tries, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tries: %w", err)
	}

	return tries, nil
}

// Close releases all database resources
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
