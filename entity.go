package kventity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/kventity/kv"
)

// EntityHandler is a cheap value handle for one entity. It carries a DB
// reference and the entity id; obtain one via [DB.Entity], [DB.Resource],
// [DB.Handle], or a filter.
type EntityHandler struct {
	db *DB
	id EntityID
}

// EntityID returns the id this handle operates on.
func (h *EntityHandler) EntityID() EntityID {
	return h.id
}

// Get reads the component of type T attached to the entity, from a snapshot
// at the current timestamp. Returns (nil, nil) when the component is absent.
func Get[T any, PT ComponentPtr[T]](ctx context.Context, h *EntityHandler) (_ *T, err error) {
	defer h.db.record(ctx, "get", time.Now(), &err)

	typePath := PT(new(T)).TypePath()

	snap, err := h.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: get %s: %w", typePath, err)
	}
	defer snap.Close(ctx)

	data, err := snap.Get(ctx, componentDataKey(typePath, h.id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kventity: get %s: %w", typePath, err)
	}

	v := new(T)
	if err := h.db.codec.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("kventity: decode %s: %w", typePath, err)
	}
	return v, nil
}

// Attach writes one or more components to the entity in a single optimistic
// transaction: either every component (payload, index rows, metadata) lands,
// or none do.
//
// Re-attaching a component type that is already present overwrites the
// payload and refreshes its index rows: the previously indexed values,
// recorded in the entity's metadata, are retired in the same transaction.
func (h *EntityHandler) Attach(ctx context.Context, components ...Component) (err error) {
	defer h.db.record(ctx, "attach", time.Now(), &err)

	if len(components) == 0 {
		return nil
	}

	txn, err := h.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: attach: %w", err)
	}

	meta, err := h.getMetadata(ctx, txn)
	if err != nil {
		txn.Rollback()
		return err
	}
	if meta == nil {
		meta = newEntityMetadata()
	}

	var muts []kv.Mutation
	for _, c := range components {
		if err := h.attachComponentInTxn(&muts, meta, c); err != nil {
			txn.Rollback()
			return err
		}
	}
	if err := h.updateMetadata(ctx, txn, meta); err != nil {
		txn.Rollback()
		return err
	}

	if err := txn.BatchMutate(muts); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: attach: %w", err)
	}
	h.db.metrics.RecordBatch(ctx, len(muts))
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: attach: %w", err)
	}
	return nil
}

// attachComponentInTxn computes the mutation set for attaching c, updating
// meta in place. The protocol per indexed field:
//
//  1. if the archetype records a previous encoded value, retire that index row
//  2. if the fresh value exists, write its index row and record it
//
// followed by the payload write. Metadata itself is written once by the
// caller after every bundled component has contributed.
func (h *EntityHandler) attachComponentInTxn(muts *[]kv.Mutation, meta *EntityMetadata, c Component) error {
	typePath := c.TypePath()

	fresh := make(map[string]string)
	for _, f := range c.IndexedFields() {
		fresh[f.Name] = f.Value
	}

	arch, ok := meta.ComponentArchetypes[typePath]
	if !ok {
		arch = ComponentArchetype{IndexKeys: make(map[string]string)}
		for _, name := range c.IndexedFieldNames() {
			arch.IndexKeys[name] = ""
		}
	}

	for field, prev := range arch.IndexKeys {
		if prev != "" {
			*muts = append(*muts, kv.Mutation{
				Op:  kv.OpDel,
				Key: componentIndexKey(typePath, field, prev, h.id),
			})
		}
		value, ok := fresh[field]
		if !ok {
			continue
		}
		*muts = append(*muts, kv.Mutation{
			Op:    kv.OpPut,
			Key:   componentIndexKey(typePath, field, value, h.id),
			Value: []byte(h.id.String()),
		})
		arch.IndexKeys[field] = value
	}
	meta.ComponentArchetypes[typePath] = arch

	payload, err := h.db.codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("kventity: encode %s: %w", typePath, err)
	}
	*muts = append(*muts, kv.Mutation{
		Op:    kv.OpPut,
		Key:   componentDataKey(typePath, h.id),
		Value: payload,
	})
	return nil
}

// Detach removes the component of type T from the entity: the payload row,
// every index row recorded for it, and its archetype entry in the metadata.
//
// When T has indexed fields, both the entity metadata and its archetype
// entry for T must exist; otherwise the transaction is rolled back and
// [ErrNotFound] is returned.
func Detach[T any, PT ComponentPtr[T]](ctx context.Context, h *EntityHandler) (err error) {
	defer h.db.record(ctx, "detach", time.Now(), &err)

	c := PT(new(T))
	typePath := c.TypePath()

	txn, err := h.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: detach %s: %w", typePath, err)
	}

	if len(c.IndexedFieldNames()) > 0 {
		meta, err := h.getMetadata(ctx, txn)
		if err != nil {
			txn.Rollback()
			return err
		}
		if meta == nil {
			txn.Rollback()
			return ErrNotFound
		}
		arch, ok := meta.ComponentArchetypes[typePath]
		if !ok {
			txn.Rollback()
			return ErrNotFound
		}

		var muts []kv.Mutation
		for field, prev := range arch.IndexKeys {
			if prev == "" {
				continue
			}
			muts = append(muts, kv.Mutation{
				Op:  kv.OpDel,
				Key: componentIndexKey(typePath, field, prev, h.id),
			})
		}
		delete(meta.ComponentArchetypes, typePath)

		if err := txn.BatchMutate(muts); err != nil {
			txn.Rollback()
			return fmt.Errorf("kventity: detach %s: %w", typePath, err)
		}
		if err := h.updateMetadata(ctx, txn, meta); err != nil {
			txn.Rollback()
			return err
		}
	}

	if err := txn.Delete(componentDataKey(typePath, h.id)); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: detach %s: %w", typePath, err)
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: detach %s: %w", typePath, err)
	}
	return nil
}

// Delete removes everything the entity owns: every component payload listed
// in its metadata, every index row recorded there, every edge triad in both
// directions, and the metadata row itself. Returns [ErrNotFound] when the
// entity has no metadata.
func (h *EntityHandler) Delete(ctx context.Context) (err error) {
	defer h.db.record(ctx, "delete", time.Now(), &err)

	txn, err := h.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: delete: %w", err)
	}

	var muts []kv.Mutation
	if err := h.deleteInTxn(ctx, txn, &muts); err != nil {
		txn.Rollback()
		return err
	}

	if err := txn.BatchMutate(muts); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: delete: %w", err)
	}
	h.db.metrics.RecordBatch(ctx, len(muts))
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: delete: %w", err)
	}
	return nil
}

// deleteInTxn accumulates the full delete mutation set for the entity.
// Shared by [EntityHandler.Delete] and [EntityList.Delete].
func (h *EntityHandler) deleteInTxn(ctx context.Context, txn kv.Txn, muts *[]kv.Mutation) error {
	meta, err := h.getMetadata(ctx, txn)
	if err != nil {
		return err
	}
	if meta == nil {
		return ErrNotFound
	}

	for typePath, arch := range meta.ComponentArchetypes {
		typePath := internString(typePath)
		for field, prev := range arch.IndexKeys {
			if prev == "" {
				continue
			}
			*muts = append(*muts, kv.Mutation{
				Op:  kv.OpDel,
				Key: componentIndexKey(typePath, field, prev, h.id),
			})
		}
		*muts = append(*muts, kv.Mutation{
			Op:  kv.OpDel,
			Key: componentDataKey(typePath, h.id),
		})
	}

	edges, err := h.scanAllEdgesInTxn(ctx, txn)
	if err != nil {
		return err
	}
	for _, e := range edges {
		*muts = append(*muts,
			kv.Mutation{Op: kv.OpDel, Key: relationEdgeKey(e.typePath, h.id, e.other, e.direction)},
			kv.Mutation{Op: kv.OpDel, Key: relationEdgeKey(e.typePath, e.other, h.id, e.direction.Flip())},
		)
		// The data row lives under (source, target); the in marker tags the
		// source's side.
		if e.direction == In {
			*muts = append(*muts, kv.Mutation{Op: kv.OpDel, Key: relationDataKey(e.typePath, h.id, e.other)})
		} else {
			*muts = append(*muts, kv.Mutation{Op: kv.OpDel, Key: relationDataKey(e.typePath, e.other, h.id)})
		}
	}

	if err := txn.Delete(entityMetadataKey(h.id)); err != nil {
		return fmt.Errorf("kventity: delete: %w", err)
	}
	return nil
}

// Metadata reads the entity's metadata record from a snapshot at the
// current timestamp. Returns [ErrNotFound] when the entity has none.
func (h *EntityHandler) Metadata(ctx context.Context) (_ *EntityMetadata, err error) {
	defer h.db.record(ctx, "metadata", time.Now(), &err)

	snap, err := h.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: metadata: %w", err)
	}
	defer snap.Close(ctx)

	data, err := snap.Get(ctx, entityMetadataKey(h.id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kventity: metadata: %w", err)
	}
	return decodeEntityMetadata(data)
}

// getMetadata reads the metadata record inside txn. Returns (nil, nil) when
// absent.
func (h *EntityHandler) getMetadata(ctx context.Context, txn kv.Txn) (*EntityMetadata, error) {
	data, err := txn.Get(ctx, entityMetadataKey(h.id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kventity: read metadata: %w", err)
	}
	return decodeEntityMetadata(data)
}

// updateMetadata writes the metadata record inside txn.
func (h *EntityHandler) updateMetadata(ctx context.Context, txn kv.Txn, meta *EntityMetadata) error {
	data, err := meta.encode()
	if err != nil {
		return err
	}
	if err := txn.Put(entityMetadataKey(h.id), data); err != nil {
		return fmt.Errorf("kventity: write metadata: %w", err)
	}
	return nil
}
