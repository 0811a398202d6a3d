// Package kventity is an entity–component–relation data layer on top of a
// distributed transactional ordered key-value store.
//
// Applications declare typed components (structured records) and relations
// (typed directed edges with a payload), attach and detach components on
// string-identified entities, link entities by edges, and query entities by
// secondary-indexed component fields, by equality or by range. The package
// maps these operations onto batches of ordered-key mutations executed under
// the engine's optimistic transactions; within one logical operation, either
// every write lands or none do.
//
// # Engines
//
// The store behind the layer is anything implementing [kv.Engine]:
// kv/tikv for TiKV, kv/pgkv for a single-table PostgreSQL deployment, and
// kv/memkv for tests.
//
// # Declaring components
//
// A component is any struct whose pointer implements [Component]. The
// bindings (type path, indexed-field accessors, a query helper per indexed
// field) are generated by cmd/kventity-gen from `kventity:"index"` struct
// tags:
//
//	type UserInfo struct {
//		Name  string `json:"name" kventity:"index"`
//		Age   int32  `json:"age" kventity:"index"`
//		Email string `json:"email"`
//	}
//
// After generation:
//
//	db := kventity.New(engine)
//	err := db.Entity("1").Attach(ctx, &UserInfo{Name: "Alice", Age: 25})
//	u, err := NewUserInfoQuery(db).Name("Alice").Single(ctx)
//
// Indexed field values are encoded as order-preserving strings (package
// keycodec), so range filters and index scans return entities in the
// field's natural order.
package kventity
