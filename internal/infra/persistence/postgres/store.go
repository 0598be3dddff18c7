// Package postgres provides a Postgres-backed document store that snapshots
// each collection into a JSONB bucket.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"incidentcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DocumentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/incidentcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists the document to Postgres.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN) and ensures the state table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, domain.StorageError("open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.StorageError("ping postgres", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return domain.StorageError("ensure state table", err)
	}
	return nil
}

// Load decodes every bucket into a document, initialising an empty document
// when the table holds no buckets yet.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	doc, found, err := loadDocument(ctx, s.db)
	if err != nil {
		return domain.Document{}, err
	}
	if !found {
		doc = domain.NewDocument()
		if err := s.Persist(ctx, doc); err != nil {
			return domain.Document{}, err
		}
	}
	return doc, nil
}

func loadDocument(ctx context.Context, db *sql.DB) (domain.Document, bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.Document{}, false, domain.StorageError("postgres load", fmt.Errorf("select state: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var doc domain.Document
	targets := map[string]any{}
	for _, b := range doc.Buckets() {
		targets[b.Name] = b.Rows
	}
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.Document{}, false, domain.StorageError("postgres load", fmt.Errorf("scan state: %w", err))
		}
		found = true
		if len(payload) == 0 {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal(payload, target); err != nil {
				return domain.Document{}, false, domain.StorageError("postgres load", fmt.Errorf("decode %s: %w", bucket, err))
			}
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Document{}, false, domain.StorageError("postgres load", fmt.Errorf("iterate state: %w", err))
	}
	doc.Normalize()
	return doc, found, nil
}

// Persist upserts every bucket inside one transaction.
func (s *Store) Persist(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("postgres persist", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range doc.Buckets() {
		data, err := json.Marshal(bucket.Rows)
		if err != nil {
			return domain.StorageError("postgres persist", fmt.Errorf("encode %s: %w", bucket.Name, err))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket.Name, data); err != nil {
			return domain.StorageError("postgres persist", fmt.Errorf("upsert %s: %w", bucket.Name, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.StorageError("postgres persist", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
