package domain

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func sampleDocument() Document {
	desc := "pothole"
	name := "Ada"
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := NewDocument()
	doc.UserEmails = append(doc.UserEmails, EmailRow{ID: "u1", Email: "ada@example.com"})
	doc.UserPasswordHashes = append(doc.UserPasswordHashes, PasswordHashRow{ID: "u1", PasswordHash: "hash"})
	doc.UserNames = append(doc.UserNames, NameRow{ID: "u1", Name: &name})
	doc.UserCreatedAt = append(doc.UserCreatedAt, CreatedAtRow{ID: "u1", CreatedAt: at})
	doc.IncidentTypes = append(doc.IncidentTypes, TypeRow{ID: "i1", Type: "road"})
	doc.IncidentDescriptions = append(doc.IncidentDescriptions, DescriptionRow{ID: "i1", Description: &desc})
	doc.IncidentLocations = append(doc.IncidentLocations, LocationRow{ID: "i1", Lat: 52.1, Lng: 13.4})
	doc.IncidentSeverities = append(doc.IncidentSeverities, SeverityRow{ID: "i1", Severity: 3})
	doc.IncidentStatuses = append(doc.IncidentStatuses, StatusRow{ID: "i1"})
	doc.IncidentCreatedAt = append(doc.IncidentCreatedAt, CreatedAtRow{ID: "i1", CreatedAt: at})
	doc.IncidentAuthors = append(doc.IncidentAuthors, AuthorRow{ID: "i1", UserID: "u1"})
	return doc
}

func TestNewDocumentEncodesEveryCollectionEmpty(t *testing.T) {
	b, err := EncodeDocument(NewDocument())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, name := range CollectionNames {
		if !bytes.Contains(b, []byte(`"`+name+`": []`)) {
			t.Fatalf("expected empty %s collection in %s", name, b)
		}
	}
	if !bytes.HasSuffix(b, []byte("\n")) || bytes.Contains(b, []byte("null")) {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestEncodeDecodeIsByteStable(t *testing.T) {
	first, err := EncodeDocument(sampleDocument())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc, err := DecodeDocument(first)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip changed bytes:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(string(first), "\n  \"users.email\": [") {
		t.Fatalf("expected two-space indentation, got %s", first)
	}
}

func TestDecodeDocumentToleratesMissingAndUnknownCollections(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"users.email":[{"id":"u1","email":"a@b"}],"legacy":[{"id":"x"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.UserEmails) != 1 || doc.IncidentTypes == nil || doc.Notifications == nil {
		t.Fatalf("unexpected document %+v", doc)
	}
	empty, err := DecodeDocument([]byte("  \n"))
	if err != nil || empty.UserEmails == nil {
		t.Fatalf("expected empty input to decode to a new document, err=%v", err)
	}
	if _, err := DecodeDocument([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleDocument()
	cp := orig.Clone()
	*cp.IncidentDescriptions[0].Description = "changed"
	*cp.UserNames[0].Name = "changed"
	cp.IncidentTypes[0].Type = "changed"
	cp.IncidentTypes = append(cp.IncidentTypes, TypeRow{ID: "i2", Type: "x"})
	if *orig.IncidentDescriptions[0].Description != "pothole" || *orig.UserNames[0].Name != "Ada" {
		t.Fatalf("clone shares pointer fields")
	}
	if orig.IncidentTypes[0].Type != "road" || len(orig.IncidentTypes) != 1 {
		t.Fatalf("clone shares row slices")
	}
}

func TestBucketsPointIntoDocument(t *testing.T) {
	var doc Document
	buckets := doc.Buckets()
	if len(buckets) != len(CollectionNames) {
		t.Fatalf("expected %d buckets, got %d", len(CollectionNames), len(buckets))
	}
	for i, b := range buckets {
		if b.Name != CollectionNames[i] {
			t.Fatalf("bucket %d named %q want %q", i, b.Name, CollectionNames[i])
		}
	}
	rows := buckets[4].Rows.(*[]TypeRow)
	*rows = append(*rows, TypeRow{ID: "i1", Type: "road"})
	if len(doc.IncidentTypes) != 1 {
		t.Fatalf("expected bucket pointer to write through to document")
	}
}
