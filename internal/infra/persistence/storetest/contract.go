// Package storetest holds the behaviour shared by every document store
// backend, run from each backend's own tests.
package storetest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"incidentcore/pkg/domain"
)

// Fixture returns a document holding one complete user and one complete
// incident with a notification, plus an incident without description.
func Fixture() domain.Document {
	desc := "broken streetlight"
	name := "Ada"
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := domain.NewDocument()
	doc.UserEmails = append(doc.UserEmails, domain.EmailRow{ID: "u1", Email: "ada@example.com"})
	doc.UserPasswordHashes = append(doc.UserPasswordHashes, domain.PasswordHashRow{ID: "u1", PasswordHash: "$2a$10$hash"})
	doc.UserNames = append(doc.UserNames, domain.NameRow{ID: "u1", Name: &name})
	doc.UserCreatedAt = append(doc.UserCreatedAt, domain.CreatedAtRow{ID: "u1", CreatedAt: at})
	for _, id := range []string{"i1", "i2"} {
		doc.IncidentTypes = append(doc.IncidentTypes, domain.TypeRow{ID: id, Type: "lighting"})
		doc.IncidentLocations = append(doc.IncidentLocations, domain.LocationRow{ID: id, Lat: 52.52, Lng: 13.405})
		doc.IncidentSeverities = append(doc.IncidentSeverities, domain.SeverityRow{ID: id, Severity: 2})
		doc.IncidentStatuses = append(doc.IncidentStatuses, domain.StatusRow{ID: id})
		doc.IncidentCreatedAt = append(doc.IncidentCreatedAt, domain.CreatedAtRow{ID: id, CreatedAt: at})
	}
	doc.IncidentDescriptions = append(doc.IncidentDescriptions,
		domain.DescriptionRow{ID: "i1", Description: &desc},
		domain.DescriptionRow{ID: "i2"},
	)
	doc.IncidentAuthors = append(doc.IncidentAuthors, domain.AuthorRow{ID: "i1", UserID: "u1"})
	doc.Notifications = append(doc.Notifications, domain.NotificationRow{
		ID: "n1", UserID: "u1", IncidentID: "i1", Kind: domain.NotificationVerified,
		Message: "Your report was verified", CreatedAt: at,
	})
	return doc
}

// Run exercises the DocumentStore contract. open must return a fresh, empty
// store for every call.
func Run(t *testing.T, open func(t *testing.T) domain.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("load initialises empty document", func(t *testing.T) {
		store := open(t)
		doc, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		assertEncodedEqual(t, domain.NewDocument(), doc)
		again, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("second load: %v", err)
		}
		assertEncodedEqual(t, domain.NewDocument(), again)
	})

	t.Run("persist round trip", func(t *testing.T) {
		store := open(t)
		want := Fixture()
		if err := store.Persist(ctx, want); err != nil {
			t.Fatalf("persist: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		assertEncodedEqual(t, want, got)
		if got.IncidentDescriptions[1].Description != nil {
			t.Fatalf("expected stored null description to load as nil")
		}
	})

	t.Run("persist replaces whole document", func(t *testing.T) {
		store := open(t)
		if err := store.Persist(ctx, Fixture()); err != nil {
			t.Fatalf("persist fixture: %v", err)
		}
		smaller := domain.NewDocument()
		smaller.IncidentTypes = append(smaller.IncidentTypes, domain.TypeRow{ID: "only", Type: "fire"})
		if err := store.Persist(ctx, smaller); err != nil {
			t.Fatalf("persist smaller: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		assertEncodedEqual(t, smaller, got)
	})

	t.Run("load persist load is byte stable", func(t *testing.T) {
		store := open(t)
		if err := store.Persist(ctx, Fixture()); err != nil {
			t.Fatalf("persist: %v", err)
		}
		first, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if err := store.Persist(ctx, first); err != nil {
			t.Fatalf("re-persist: %v", err)
		}
		second, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		assertEncodedEqual(t, first, second)
	})
}

func assertEncodedEqual(t *testing.T, want, got domain.Document) {
	t.Helper()
	wb, err := domain.EncodeDocument(want)
	if err != nil {
		t.Fatalf("encode want: %v", err)
	}
	gb, err := domain.EncodeDocument(got)
	if err != nil {
		t.Fatalf("encode got: %v", err)
	}
	if !bytes.Equal(wb, gb) {
		t.Fatalf("document mismatch:\nwant %s\ngot  %s", wb, gb)
	}
}
