// Package file persists the document as a single flat JSON file that is read
// wholesale and rewritten wholesale.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"incidentcore/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// DefaultPath is used when no path is configured.
const DefaultPath = "data.json"

// Store implements domain.DocumentStore on a local file. Writes go to a
// temporary file in the same directory which is fsynced and renamed over the
// target, so a failed write never leaves a partial document behind.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a file store at path, creating its parent directory if needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, domain.StorageError("create dirs", err)
	}
	return &Store{path: path}, nil
}

// Path returns the configured document path.
func (s *Store) Path() string { return s.path }

// Load reads and decodes the whole file. A missing file is initialised with an
// empty document.
func (s *Store) Load(ctx context.Context) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.StorageError("file load", err)
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.initialize()
	}
	if err != nil {
		return domain.Document{}, domain.StorageError("file load", err)
	}
	doc, err := domain.DecodeDocument(b)
	if err != nil {
		return domain.Document{}, domain.StorageError("file load", err)
	}
	return doc, nil
}

func (s *Store) initialize() (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// another caller may have created the file in the meantime
	if b, err := os.ReadFile(s.path); err == nil {
		doc, err := domain.DecodeDocument(b)
		if err != nil {
			return domain.Document{}, domain.StorageError("file load", err)
		}
		return doc, nil
	}
	doc := domain.NewDocument()
	if err := s.write(doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Persist atomically replaces the file contents with doc.
func (s *Store) Persist(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError("file persist", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(doc)
}

func (s *Store) write(doc domain.Document) error {
	b, err := domain.EncodeDocument(doc)
	if err != nil {
		return domain.StorageError("file persist", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-*")
	if err != nil {
		return domain.StorageError("file persist", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return domain.StorageError("file persist", fmt.Errorf("write temp: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return domain.StorageError("file persist", fmt.Errorf("sync temp: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return domain.StorageError("file persist", fmt.Errorf("close temp: %w", err))
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return domain.StorageError("file persist", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return domain.StorageError("file persist", fmt.Errorf("rename: %w", err))
	}
	return nil
}

// Close is a no-op; the file is opened per operation.
func (s *Store) Close() error { return nil }
