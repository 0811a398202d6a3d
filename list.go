package kventity

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/kventity/kv"
)

// EntityList is a handle over a set of entities, for batched operations.
// Obtain one via [DB.Entities] or [Filter.List].
type EntityList struct {
	db  *DB
	ids []EntityID
}

// EntityIDs returns the ids the list operates on.
func (l *EntityList) EntityIDs() []EntityID {
	return l.ids
}

// Attach writes the given components to every entity in the list, in one
// transaction: either every (entity, component) pair lands, or none do.
func (l *EntityList) Attach(ctx context.Context, components ...Component) (err error) {
	defer l.db.record(ctx, "list_attach", time.Now(), &err)

	if len(components) == 0 || len(l.ids) == 0 {
		return nil
	}

	txn, err := l.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: list attach: %w", err)
	}

	var muts []kv.Mutation
	for _, id := range l.ids {
		h := &EntityHandler{db: l.db, id: id}

		meta, err := h.getMetadata(ctx, txn)
		if err != nil {
			txn.Rollback()
			return err
		}
		if meta == nil {
			meta = newEntityMetadata()
		}
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
	}

	if err := txn.BatchMutate(muts); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: list attach: %w", err)
	}
	l.db.metrics.RecordBatch(ctx, len(muts))
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: list attach: %w", err)
	}
	return nil
}

// ListGet reads the component of type T for every entity in the list with a
// single batch-get. Entities without the component are omitted from the
// result, so the output can be shorter than the list.
func ListGet[T any, PT ComponentPtr[T]](ctx context.Context, l *EntityList) (_ []*T, err error) {
	defer l.db.record(ctx, "list_get", time.Now(), &err)

	typePath := PT(new(T)).TypePath()

	snap, err := l.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: list get %s: %w", typePath, err)
	}
	defer snap.Close(ctx)

	keys := make([][]byte, 0, len(l.ids))
	for _, id := range l.ids {
		keys = append(keys, componentDataKey(typePath, id))
	}
	values, err := snap.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("kventity: list get %s: %w", typePath, err)
	}

	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		data, ok := values[string(key)]
		if !ok {
			continue
		}
		v := new(T)
		if err := l.db.codec.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("kventity: decode %s: %w", typePath, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Delete removes every entity in the list, accumulating the full cascade
// delete set of each into one transaction. Fails with [ErrNotFound], and
// deletes nothing, when any entity in the list has no metadata.
func (l *EntityList) Delete(ctx context.Context) (err error) {
	defer l.db.record(ctx, "list_delete", time.Now(), &err)

	txn, err := l.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: list delete: %w", err)
	}

	var muts []kv.Mutation
	for _, id := range l.ids {
		h := &EntityHandler{db: l.db, id: id}
		if err := h.deleteInTxn(ctx, txn, &muts); err != nil {
			txn.Rollback()
			return err
		}
	}

	if err := txn.BatchMutate(muts); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: list delete: %w", err)
	}
	l.db.metrics.RecordBatch(ctx, len(muts))
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: list delete: %w", err)
	}
	return nil
}
