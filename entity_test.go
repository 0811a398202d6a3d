package kventity_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/kventity"
)

func TestAttachAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, _ := newTestDB()

	err := db.Entity("1").Attach(ctx, &userInfo{Name: "Alice", Age: 25, Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}

	got, err := kventity.Get[userInfo](ctx, db.Entity("1"))
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("Get: expected a value, got nil")
	}
	if got.Name != "Alice" || got.Age != 25 || got.Email != "alice@example.com" {
		t.Fatalf("Get: unexpected value %+v", got)
	}

	t.Run("absent component yields nil, nil", func(t *testing.T) {
		t.Parallel()
		ext, err := kventity.Get[userExtend](ctx, db.Entity("1"))
		if err != nil {
			t.Fatalf("Get: unexpected error: %v", err)
		}
		if ext != nil {
			t.Fatalf("Get: expected nil for absent component, got %+v", ext)
		}
	})

	t.Run("metadata records the indexed values", func(t *testing.T) {
		t.Parallel()
		meta, err := db.Entity("1").Metadata(ctx)
		if err != nil {
			t.Fatalf("Metadata: unexpected error: %v", err)
		}
		arch, ok := meta.ComponentArchetypes["test::userInfo"]
		if !ok {
			t.Fatal("Metadata: missing archetype for test::userInfo")
		}
		if arch.IndexKeys["name"] != "Alice" {
			t.Fatalf("Metadata: expected name index key %q, got %q", "Alice", arch.IndexKeys["name"])
		}
		if arch.IndexKeys["age"] == "" {
			t.Fatal("Metadata: expected a recorded age index key")
		}
	})
}

func TestAttachIdempotence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	v := &userInfo{Name: "Alice", Age: 25}
	if err := db.Entity("1").Attach(ctx, v); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	first := dumpKeys(engine)

	if err := db.Entity("1").Attach(ctx, v); err != nil {
		t.Fatalf("Attach again: unexpected error: %v", err)
	}
	second := dumpKeys(engine)

	if !slices.Equal(first, second) {
		t.Fatalf("re-attaching an identical value changed the key set:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestReattachRefreshesIndexes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	if err := db.Entity("1").Attach(ctx, &userInfo{Name: "Alice", Age: 25}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	if err := db.Entity("1").Attach(ctx, &userInfo{Name: "Bob", Age: 25}); err != nil {
		t.Fatalf("re-Attach: unexpected error: %v", err)
	}

	keys := dumpKeys(engine)
	if slices.Contains(keys, "component/index/test::userInfo/name/Alice/e-1") {
		t.Fatal("stale index row for Alice survived the re-attach")
	}
	if !slices.Contains(keys, "component/index/test::userInfo/name/Bob/e-1") {
		t.Fatal("missing index row for Bob after re-attach")
	}
}

func TestAttachBundleAtomicity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	err := db.Entity("1").Attach(ctx,
		&userInfo{Name: "Alice", Age: 25},
		&badPayload{},
	)
	if err == nil {
		t.Fatal("Attach: expected an encode error from the poisoned bundle")
	}
	if keys := dumpKeys(engine); len(keys) != 0 {
		t.Fatalf("aborted bundle left rows behind: %v", keys)
	}
}

func TestDetach(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("removes payload, index rows, and archetype", func(t *testing.T) {
		t.Parallel()
		db, engine := newTestDB()
		if err := db.Entity("1").Attach(ctx, &userInfo{Name: "Alice", Age: 25}); err != nil {
			t.Fatalf("Attach: unexpected error: %v", err)
		}

		if err := kventity.Detach[userInfo](ctx, db.Entity("1")); err != nil {
			t.Fatalf("Detach: unexpected error: %v", err)
		}

		for _, k := range dumpKeys(engine) {
			if strings.Contains(k, "test::userInfo") {
				t.Fatalf("row for detached component survived: %q", k)
			}
		}
		meta, err := db.Entity("1").Metadata(ctx)
		if err != nil {
			t.Fatalf("Metadata: unexpected error: %v", err)
		}
		if _, ok := meta.ComponentArchetypes["test::userInfo"]; ok {
			t.Fatal("archetype entry survived the detach")
		}
	})

	t.Run("indexed type without metadata returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		db, _ := newTestDB()
		err := kventity.Detach[userInfo](ctx, db.Entity("ghost"))
		if !errors.Is(err, kventity.ErrNotFound) {
			t.Fatalf("Detach: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("indexed type without archetype entry returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		db, _ := newTestDB()
		// Metadata exists, but only for the unindexed component.
		if err := db.Entity("1").Attach(ctx, &userExtend{Extend: "x"}); err != nil {
			t.Fatalf("Attach: unexpected error: %v", err)
		}
		err := kventity.Detach[userInfo](ctx, db.Entity("1"))
		if !errors.Is(err, kventity.ErrNotFound) {
			t.Fatalf("Detach: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unindexed type needs no metadata", func(t *testing.T) {
		t.Parallel()
		db, _ := newTestDB()
		if err := kventity.Detach[userExtend](ctx, db.Entity("ghost")); err != nil {
			t.Fatalf("Detach: unexpected error: %v", err)
		}
	})
}

func TestDeleteCompleteness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	if err := db.Entity("1").Attach(ctx, &userInfo{Name: "Alice", Age: 25}, &userExtend{Extend: "x"}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	if err := db.Entity("2").Attach(ctx, &userInfo{Name: "Bob", Age: 31}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	if err := db.Entity("1").Link(ctx, kventity.MustEntityID("2"), &friendRelation{Fav: 100}); err != nil {
		t.Fatalf("Link: unexpected error: %v", err)
	}

	if err := db.Entity("1").Delete(ctx); err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}

	for _, k := range dumpKeys(engine) {
		if strings.Contains(k, "e-1") {
			t.Fatalf("row owned by deleted entity survived: %q", k)
		}
	}

	// Bob is untouched.
	bob, err := kventity.Get[userInfo](ctx, db.Entity("2"))
	if err != nil || bob == nil {
		t.Fatalf("Get bob: expected a value, got (%v, %v)", bob, err)
	}

	t.Run("without metadata returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		err := db.Entity("ghost").Delete(ctx)
		if !errors.Is(err, kventity.ErrNotFound) {
			t.Fatalf("Delete: expected ErrNotFound, got %v", err)
		}
	})
}

func TestMetadataNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, _ := newTestDB()

	_, err := db.Entity("ghost").Metadata(ctx)
	if !errors.Is(err, kventity.ErrNotFound) {
		t.Fatalf("Metadata: expected ErrNotFound, got %v", err)
	}
}

func TestResourceEntity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, engine := newTestDB()

	if err := db.Resource().Attach(ctx, &userExtend{Extend: "global"}); err != nil {
		t.Fatalf("Attach: unexpected error: %v", err)
	}
	if !slices.Contains(dumpKeys(engine), "component/single/test::userExtend/resource") {
		t.Fatal("missing resource payload row")
	}

	got, err := kventity.Get[userExtend](ctx, db.Resource())
	if err != nil || got == nil {
		t.Fatalf("Get: expected a value, got (%v, %v)", got, err)
	}
	if got.Extend != "global" {
		t.Fatalf("Get: unexpected value %+v", got)
	}
}
