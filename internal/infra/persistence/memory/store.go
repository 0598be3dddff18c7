// Package memory provides an in-memory implementation of the document store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"sync"

	"incidentcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.DocumentStore = (*Store)(nil)

// Store keeps the document in process memory. Load and Persist exchange deep
// copies so callers never share rows with the store.
type Store struct {
	mu          sync.RWMutex
	doc         domain.Document
	initialized bool
	persists    int
}

// NewStore constructs an empty in-memory store. The first Load initialises it.
func NewStore() *Store {
	return &Store{}
}

// NewStoreWithDocument constructs a store pre-populated with doc, e.g. a
// fixture with deliberately missing fragments.
func NewStoreWithDocument(doc domain.Document) *Store {
	doc.Normalize()
	return &Store{doc: doc.Clone(), initialized: true}
}

// Load returns a copy of the stored document, initialising an empty one on first use.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.StorageError("memory load", err)
	}
	s.mu.RLock()
	if s.initialized {
		doc := s.doc.Clone()
		s.mu.RUnlock()
		return doc, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		s.doc = domain.NewDocument()
		s.initialized = true
		s.persists++
	}
	return s.doc.Clone(), nil
}

// Persist replaces the stored document with a copy of doc.
func (s *Store) Persist(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError("memory persist", err)
	}
	doc.Normalize()
	cp := doc.Clone()
	s.mu.Lock()
	s.doc = cp
	s.initialized = true
	s.persists++
	s.mu.Unlock()
	return nil
}

// Persists reports how many documents have been written, including the
// initial empty one. Tests use it to assert that failed mutations never persist.
func (s *Store) Persists() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persists
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
