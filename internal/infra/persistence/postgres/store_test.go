package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"incidentcore/internal/infra/persistence/postgres/testutil"
	"incidentcore/internal/infra/persistence/storetest"
	"incidentcore/pkg/domain"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.DocumentStore {
		store, _ := newStubStore(t)
		return store
	})
}

func TestNewStoreCreatesStateTable(t *testing.T) {
	store, conn := newStubStore(t)
	if store.DB() == nil {
		t.Fatalf("expected db handle")
	}
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
}

func TestPersistUpsertsEveryBucket(t *testing.T) {
	store, conn := newStubStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.Persist(ctx, storetest.Fixture()); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
	if rows := conn.Rows("state"); len(rows) != len(domain.CollectionNames) {
		t.Fatalf("expected %d buckets, got %d", len(domain.CollectionNames), len(rows))
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://bad"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestPersistFailuresRollBack(t *testing.T) {
	store, conn := newStubStore(t)
	ctx := context.Background()
	if err := store.Persist(ctx, storetest.Fixture()); err != nil {
		t.Fatalf("persist: %v", err)
	}

	conn.FailTables = map[string]bool{"state": true}
	if err := store.Persist(ctx, domain.NewDocument()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on exec failure, got %v", err)
	}
	conn.FailTables = nil

	conn.FailCommit = true
	if err := store.Persist(ctx, domain.NewDocument()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on commit failure, got %v", err)
	}
	conn.FailCommit = false

	conn.FailBegin = true
	if err := store.Persist(ctx, domain.NewDocument()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on begin failure, got %v", err)
	}
	conn.FailBegin = false

	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.IncidentTypes) != 2 {
		t.Fatalf("expected previous document after failed persists, got %d incidents", len(doc.IncidentTypes))
	}
}

func TestLoadFailures(t *testing.T) {
	store, conn := newStubStore(t)
	ctx := context.Background()
	if err := store.Persist(ctx, storetest.Fixture()); err != nil {
		t.Fatalf("persist: %v", err)
	}
	conn.RowsErr = errors.New("iterate")
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on rows error, got %v", err)
	}
	conn.RowsErr = nil
	conn.FailTables = map[string]bool{"state": true}
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable on query error, got %v", err)
	}
}
