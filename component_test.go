package kventity_test

import (
	"testing"

	"github.com/MrWong99/kventity"
)

func TestRegistry(t *testing.T) {
	// No t.Parallel: the registry is process-wide state.

	kventity.Register(kventity.ComponentMeta{
		TypePath:          "test::registered",
		IndexedFieldNames: []string{"a", "b"},
	})

	metas := kventity.RegisteredComponents()
	var found *kventity.ComponentMeta
	for i := range metas {
		if metas[i].TypePath == "test::registered" {
			found = &metas[i]
		}
	}
	if found == nil {
		t.Fatalf("registered component missing from %v", metas)
	}
	if len(found.IndexedFieldNames) != 2 {
		t.Fatalf("unexpected meta %+v", found)
	}

	for i := 1; i < len(metas); i++ {
		if !(metas[i-1].TypePath < metas[i].TypePath) {
			t.Fatalf("RegisteredComponents not sorted: %q >= %q", metas[i-1].TypePath, metas[i].TypePath)
		}
	}

	t.Run("re-registering overwrites", func(t *testing.T) {
		kventity.Register(kventity.ComponentMeta{TypePath: "test::registered", IndexedFieldNames: []string{"a"}})
		for _, m := range kventity.RegisteredComponents() {
			if m.TypePath == "test::registered" && len(m.IndexedFieldNames) != 1 {
				t.Fatalf("expected overwritten meta, got %+v", m)
			}
		}
	})
}
