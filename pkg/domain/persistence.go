package domain

import "context"

// DocumentStore is the whole-document persistence abstraction implemented by
// every backend. It is owned by exactly one process.
type DocumentStore interface {
	// Load returns the entire persisted document. A store that holds no
	// document yet initialises and persists an empty one before returning it.
	Load(ctx context.Context) (Document, error)
	// Persist replaces the persisted document. It is all-or-nothing: a failed
	// call leaves the previous document observable to Load.
	Persist(ctx context.Context, doc Document) error
	// Close releases backend resources.
	Close() error
}
