package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		kind     Kind
	}{
		{StorageError("persist", errors.New("disk full")), ErrStorageUnavailable, KindStorageUnavailable},
		{NotFound(EntityIncident, "i1"), ErrNotFound, KindNotFound},
		{Conflict(EntityUser, "email %q already registered", "a@b"), ErrConflict, KindConflict},
		{InvalidArgument("create incident", "type is required"), ErrInvalidArgument, KindInvalidArgument},
		{CorruptFragment(EntityUser, "u1", CollectionUserPasswordHashes), ErrCorruptFragment, KindCorruptFragment},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.sentinel) {
			t.Fatalf("expected %v to match %v", c.err, c.sentinel)
		}
		if got := KindOf(c.err); got != c.kind {
			t.Fatalf("KindOf(%v)=%q want %q", c.err, got, c.kind)
		}
		wrapped := fmt.Errorf("outer: %w", c.err)
		if !errors.Is(wrapped, c.sentinel) || KindOf(wrapped) != c.kind {
			t.Fatalf("expected wrapped error to keep kind %q", c.kind)
		}
	}
	if errors.Is(NotFound(EntityUser, "x"), ErrConflict) {
		t.Fatalf("not found must not match conflict")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for plain error")
	}
}

func TestStorageErrorPassThrough(t *testing.T) {
	if StorageError("op", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
	inner := StorageError("inner", errors.New("boom"))
	if outer := StorageError("outer", inner); outer != inner {
		t.Fatalf("expected storage error to pass through unchanged")
	}
	cause := errors.New("boom")
	if !errors.Is(StorageError("op", cause), cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
}

func TestErrorMessage(t *testing.T) {
	msg := NotFound(EntityIncident, "abc").Error()
	if !strings.Contains(msg, "not_found") || !strings.Contains(msg, "incident abc") {
		t.Fatalf("unexpected message %q", msg)
	}
	msg = StorageError("file persist", errors.New("disk full")).Error()
	if !strings.HasPrefix(msg, "file persist: storage_unavailable") || !strings.HasSuffix(msg, "disk full") {
		t.Fatalf("unexpected message %q", msg)
	}
	msg = CorruptFragment(EntityUser, "u1", CollectionUserCreatedAt).Error()
	if !strings.Contains(msg, "missing users.createdAt row") {
		t.Fatalf("unexpected message %q", msg)
	}
}
