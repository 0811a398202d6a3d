package kventity_test

import (
	"github.com/MrWong99/kventity"
	"github.com/MrWong99/kventity/keycodec"
	"github.com/MrWong99/kventity/kv/memkv"
)

// Hand-written bindings for the test component/relation types. In real use
// these come out of cmd/kventity-gen; writing them by hand keeps the tests
// independent of the generator.

type userInfo struct {
	Name  string `json:"name"`
	Age   int32  `json:"age"`
	Email string `json:"email"`
}

func (*userInfo) TypePath() string { return "test::userInfo" }

func (*userInfo) IndexedFieldNames() []string { return []string{"name", "age"} }

func (c *userInfo) IndexedFields() []kventity.IndexedField {
	return []kventity.IndexedField{
		{Name: "name", Value: keycodec.String(c.Name)},
		{Name: "age", Value: keycodec.Int32(c.Age)},
	}
}

type userExtend struct {
	Extend string `json:"extend"`
}

func (*userExtend) TypePath() string { return "test::userExtend" }

func (*userExtend) IndexedFieldNames() []string { return nil }

func (c *userExtend) IndexedFields() []kventity.IndexedField { return nil }

type friendRelation struct {
	Fav int64 `json:"fav"`
}

func (*friendRelation) TypePath() string { return "test::friendRelation" }

// badPayload marshals to an encoding/json error: it poisons a bundle so
// tests can assert attach atomicity.
type badPayload struct {
	Broken func() `json:"broken"`
}

func (*badPayload) TypePath() string { return "test::badPayload" }

func (*badPayload) IndexedFieldNames() []string { return nil }

func (c *badPayload) IndexedFields() []kventity.IndexedField { return nil }

// newTestDB returns a DB over a fresh in-memory engine, plus the engine for
// raw key-set assertions.
func newTestDB() (*kventity.DB, *memkv.Engine) {
	engine := memkv.New()
	return kventity.New(engine), engine
}

// dumpKeys returns the store's full key set as strings.
func dumpKeys(engine *memkv.Engine) []string {
	pairs := engine.Dump()
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, string(p.Key))
	}
	return keys
}
