package s3

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"incidentcore/internal/infra/persistence/storetest"
	"incidentcore/pkg/domain"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) domain.DocumentStore { return NewMockForTests() })
}

func TestPersistWritesCanonicalObject(t *testing.T) {
	store, rt := newMock()
	ctx := context.Background()
	if store.Key() != DefaultKey {
		t.Fatalf("unexpected key %q", store.Key())
	}
	if err := store.Persist(ctx, storetest.Fixture()); err != nil {
		t.Fatalf("persist: %v", err)
	}
	body, ok := rt.object(DefaultKey)
	if !ok {
		t.Fatalf("expected object at %s", DefaultKey)
	}
	want, _ := domain.EncodeDocument(storetest.Fixture())
	if !bytes.Equal(body, want) {
		t.Fatalf("object body differs from canonical encoding:\n%s", body)
	}
}

func TestFailedPutKeepsPreviousObject(t *testing.T) {
	store, rt := newMock()
	ctx := context.Background()
	if err := store.Persist(ctx, storetest.Fixture()); err != nil {
		t.Fatalf("persist: %v", err)
	}
	rt.mu.Lock()
	rt.failPut = true
	rt.mu.Unlock()
	if err := store.Persist(ctx, domain.NewDocument()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.IncidentTypes) != 2 {
		t.Fatalf("expected previous document, got %d incidents", len(doc.IncidentTypes))
	}
}

func TestLoadMissingObjectInitialises(t *testing.T) {
	store, rt := newMock()
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	rt.mu.Lock()
	puts := rt.puts
	rt.mu.Unlock()
	if puts != 1 {
		t.Fatalf("expected the empty document to be written once, got %d puts", puts)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "incidents",
		Key:             "prod/data.json",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Key() != "prod/data.json" || store.bucket != "incidents" {
		t.Fatalf("unexpected store %+v", store)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDecodeChunked(t *testing.T) {
	got, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n\r\n"))
	if !ok || string(got) != "hello" {
		t.Fatalf("unexpected decode %q %v", got, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("expected plain body to be left alone")
	}
	if _, err := parseHex("zz"); err == nil {
		t.Fatalf("expected invalid hex")
	}
}
