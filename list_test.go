package kventity_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/kventity"
)

func TestEntityListAttachAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, _ := newTestDB()

	list := db.Entities("a", "b", "c")
	if err := list.Attach(ctx, &userInfo{Name: "clone", Age: 7}, &userExtend{Extend: "x"}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}

	infos, err := kventity.ListGet[userInfo](ctx, list)
	if err != nil {
		t.Fatalf("ListGet: unexpected error: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("ListGet: expected 3 values, got %d", len(infos))
	}
	for _, u := range infos {
		if u.Name != "clone" || u.Age != 7 {
			t.Fatalf("ListGet: unexpected value %+v", u)
		}
	}

	t.Run("missing components are omitted", func(t *testing.T) {
		t.Parallel()
		wider := db.Entities("a", "b", "c", "ghost")
		infos, err := kventity.ListGet[userInfo](ctx, wider)
		if err != nil {
			t.Fatalf("ListGet: unexpected error: %v", err)
		}
		if len(infos) != 3 {
			t.Fatalf("ListGet: expected 3 values (ghost omitted), got %d", len(infos))
		}
	})
}

func TestEntityListDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	list := db.Entities("a", "b")
	if err := list.Attach(ctx, &userInfo{Name: "pair", Age: 1}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	if err := db.Entity("c").Attach(ctx, &userInfo{Name: "survivor", Age: 2}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}

	if err := list.Delete(ctx); err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}

	for _, k := range dumpKeys(engine) {
		if strings.Contains(k, "/e-a") || strings.Contains(k, "/e-b") {
			t.Fatalf("row owned by deleted entity survived: %q", k)
		}
	}
	if got, err := kventity.Get[userInfo](ctx, db.Entity("c")); err != nil || got == nil {
		t.Fatalf("Get survivor: expected a value, got (%v, %v)", got, err)
	}

	t.Run("any entity without metadata aborts the whole delete", func(t *testing.T) {
		t.Parallel()
		err := db.Entities("c", "ghost").Delete(ctx)
		if !errors.Is(err, kventity.ErrNotFound) {
			t.Fatalf("Delete: expected ErrNotFound, got %v", err)
		}
		// c survived the aborted transaction.
		if got, err := kventity.Get[userInfo](ctx, db.Entity("c")); err != nil || got == nil {
			t.Fatalf("Get survivor: expected a value, got (%v, %v)", got, err)
		}
	})
}

func TestDropAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	if err := db.Entities("a", "b", "c").Attach(ctx, &userInfo{Name: "gone", Age: 1}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	if err := db.Entity("a").Link(ctx, kventity.MustEntityID("b"), &friendRelation{Fav: 3}); err != nil {
		t.Fatalf("Link: unexpected error: %v", err)
	}

	if err := db.DropAll(ctx); err != nil {
		t.Fatalf("DropAll: unexpected error: %v", err)
	}
	if keys := dumpKeys(engine); len(keys) != 0 {
		t.Fatalf("expected an empty store after DropAll, got %v", keys)
	}
}
