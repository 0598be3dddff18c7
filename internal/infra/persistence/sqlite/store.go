// Package sqlite persists the document to an embedded SQLite database, one
// JSON payload per collection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"incidentcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.DocumentStore = (*Store)(nil)

// Store snapshots the full document into a single `state` table keyed by
// collection name. Every Persist rewrites all buckets inside one transaction.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and ensures the state table.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "incidentcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, domain.StorageError("create dirs", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.StorageError("open sqlite", err)
	}
	// one connection: reads never race the snapshot transaction for the write lock
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, domain.StorageError("open sqlite", fmt.Errorf("execute %q: %w", pragma, err))
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, domain.StorageError("create state table", err)
	}
	return &Store{db: db, path: path}, nil
}

// Load decodes every bucket into a document. An empty table is initialised
// with an empty document.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.Document{}, domain.StorageError("sqlite load", fmt.Errorf("select state: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var doc domain.Document
	targets := make(map[string]any, len(domain.CollectionNames))
	for _, b := range doc.Buckets() {
		targets[b.Name] = b.Rows
	}
	seen := 0
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Document{}, domain.StorageError("sqlite load", fmt.Errorf("scan: %w", err))
		}
		seen++
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return domain.Document{}, domain.StorageError("sqlite load", fmt.Errorf("decode %s: %w", bucket, err))
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Document{}, domain.StorageError("sqlite load", fmt.Errorf("iterate state: %w", err))
	}
	_ = rows.Close()
	if seen == 0 {
		doc = domain.NewDocument()
		if err := s.Persist(ctx, doc); err != nil {
			return domain.Document{}, err
		}
		return doc, nil
	}
	doc.Normalize()
	return doc, nil
}

// Persist upserts every bucket of doc in a single transaction.
func (s *Store) Persist(ctx context.Context, doc domain.Document) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("sqlite persist", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range doc.Buckets() {
		data, err := json.Marshal(bucket.Rows)
		if err != nil {
			return domain.StorageError("sqlite persist", fmt.Errorf("encode %s: %w", bucket.Name, err))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket.Name, data); err != nil {
			return domain.StorageError("sqlite persist", fmt.Errorf("upsert %s: %w", bucket.Name, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.StorageError("sqlite persist", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
