package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "types.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	path := writeSource(t, `package demo

type UserInfo struct {
	Name  string `+"`json:\"name\" kventity:\"index\"`"+`
	Age   int32  `+"`json:\"age\" kventity:\"index\"`"+`
	Email string `+"`json:\"email\"`"+`
}

type FriendRelation struct {
	Fav int64 `+"`json:\"fav\"`"+`
}
`)

	code, err := Generate(path, "", nil, []string{"FriendRelation"})
	if err != nil {
		t.Fatalf("Generate: unexpected error: %v", err)
	}
	out := string(code)

	for _, want := range []string{
		`func (*UserInfo) TypePath() string { return "demo::UserInfo" }`,
		`func (*FriendRelation) TypePath() string { return "demo::FriendRelation" }`,
		"keycodec.String(c.Name)",
		"keycodec.Int32(c.Age)",
		"func NewUserInfoQuery(db *kventity.DB) UserInfoQuery",
		"func (q UserInfoQuery) Name(v string) *kventity.Filter[UserInfo]",
		"func (q UserInfoQuery) AgeRange(lo, hi int32) *kventity.Filter[UserInfo]",
		"kventity.Register(kventity.ComponentMeta{",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("generated code is missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "Email") {
		t.Fatal("untagged field leaked into the generated bindings")
	}
}

func TestGenerateUsesJSONTagAsKeyName(t *testing.T) {
	t.Parallel()

	path := writeSource(t, `package demo

type Doc struct {
	DisplayTitle string `+"`json:\"display_title,omitempty\" kventity:\"index\"`"+`
}
`)

	code, err := Generate(path, "", nil, nil)
	if err != nil {
		t.Fatalf("Generate: unexpected error: %v", err)
	}
	if !strings.Contains(string(code), `kventity.NewFilter[Doc](q.db, "display_title"`) {
		t.Fatalf("expected the json tag name in the filter field:\n%s", code)
	}
}

func TestGenerateTypePrefix(t *testing.T) {
	t.Parallel()

	path := writeSource(t, `package demo

type Item struct {
	SKU string `+"`kventity:\"index\"`"+`
}
`)

	code, err := Generate(path, "acme::inventory", nil, nil)
	if err != nil {
		t.Fatalf("Generate: unexpected error: %v", err)
	}
	if !strings.Contains(string(code), `return "acme::inventory::Item"`) {
		t.Fatalf("expected the custom type prefix:\n%s", code)
	}
	// No json tag: the key name falls back to the lower-cased Go name.
	if !strings.Contains(string(code), `"sku"`) {
		t.Fatalf("expected lower-cased field name:\n%s", code)
	}
}

func TestGenerateUnindexedComponent(t *testing.T) {
	t.Parallel()

	path := writeSource(t, `package demo

type Extra struct {
	Note string `+"`json:\"note\"`"+`
}
`)

	code, err := Generate(path, "", []string{"Extra"}, nil)
	if err != nil {
		t.Fatalf("Generate: unexpected error: %v", err)
	}
	out := string(code)
	if !strings.Contains(out, `func (*Extra) TypePath() string { return "demo::Extra" }`) {
		t.Fatalf("expected component bindings for Extra:\n%s", out)
	}
	if !strings.Contains(out, "func (*Extra) IndexedFieldNames() []string") {
		t.Fatalf("expected IndexedFieldNames for Extra:\n%s", out)
	}
}

func TestGenerateRejectsUnsupportedTypes(t *testing.T) {
	t.Parallel()

	t.Run("slice field", func(t *testing.T) {
		t.Parallel()
		path := writeSource(t, `package demo

type Bad struct {
	Tags []string `+"`kventity:\"index\"`"+`
}
`)
		if _, err := Generate(path, "", nil, nil); err == nil {
			t.Fatal("Generate: expected an error for a slice-typed index field")
		}
	})

	t.Run("named type field", func(t *testing.T) {
		t.Parallel()
		path := writeSource(t, `package demo

type Kind int

type Bad struct {
	Kind Kind `+"`kventity:\"index\"`"+`
}
`)
		if _, err := Generate(path, "", nil, nil); err == nil {
			t.Fatal("Generate: expected an error for a named-type index field")
		}
	})

	t.Run("no tagged structs", func(t *testing.T) {
		t.Parallel()
		path := writeSource(t, `package demo

type Plain struct {
	A string
}
`)
		if _, err := Generate(path, "", nil, nil); err == nil {
			t.Fatal("Generate: expected an error when nothing is tagged")
		}
	})
}
