package kventity_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/kventity"
)

func TestNewEntityID(t *testing.T) {
	t.Parallel()

	t.Run("valid id", func(t *testing.T) {
		t.Parallel()
		id, err := kventity.NewEntityID("user-42")
		if err != nil {
			t.Fatalf("NewEntityID: unexpected error: %v", err)
		}
		if got := id.String(); got != "e-user-42" {
			t.Fatalf("String: expected %q, got %q", "e-user-42", got)
		}
		if got := id.ID(); got != "user-42" {
			t.Fatalf("ID: expected %q, got %q", "user-42", got)
		}
	})

	t.Run("slash is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := kventity.NewEntityID("a/b")
		if !errors.Is(err, kventity.ErrInvalidEntityID) {
			t.Fatalf("NewEntityID: expected ErrInvalidEntityID, got %v", err)
		}
	})

	t.Run("MustEntityID panics on slash", func(t *testing.T) {
		t.Parallel()
		defer func() {
			if recover() == nil {
				t.Fatal("MustEntityID: expected panic")
			}
		}()
		kventity.MustEntityID("a/b")
	})
}

func TestParseEntityID(t *testing.T) {
	t.Parallel()

	t.Run("entity form", func(t *testing.T) {
		t.Parallel()
		id, err := kventity.ParseEntityID("e-1")
		if err != nil {
			t.Fatalf("ParseEntityID: unexpected error: %v", err)
		}
		if id.ID() != "1" {
			t.Fatalf("ParseEntityID: expected id %q, got %q", "1", id.ID())
		}
	})

	t.Run("resource form", func(t *testing.T) {
		t.Parallel()
		id, err := kventity.ParseEntityID("resource")
		if err != nil {
			t.Fatalf("ParseEntityID: unexpected error: %v", err)
		}
		if !id.IsResource() {
			t.Fatal("ParseEntityID: expected resource id")
		}
		if id.String() != "resource" {
			t.Fatalf("String: expected %q, got %q", "resource", id.String())
		}
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := kventity.ParseEntityID("not-an-id")
		if !errors.Is(err, kventity.ErrInvalidEntityID) {
			t.Fatalf("ParseEntityID: expected ErrInvalidEntityID, got %v", err)
		}
	})
}
