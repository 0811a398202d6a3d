package kventity

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/kventity/kv"
)

// Iterate returns a lazy, single-pass stream over every instance of
// component type T in the store, in entity-id order. The snapshot is opened
// at the first Next call; pages of 128 rows are decoded as they arrive.
func Iterate[T any, PT ComponentPtr[T]](db *DB) *Iterator[T] {
	return &Iterator[T]{db: db, typePath: PT(new(T)).TypePath()}
}

// Iterator streams (entity id, component value) pairs for one component
// type. Not safe for concurrent use.
type Iterator[T any] struct {
	db       *DB
	typePath string

	snap     kv.Snapshot
	startKey []byte
	endKey   []byte

	buf  []iterItem[T]
	cur  iterItem[T]
	done bool
	err  error
}

type iterItem[T any] struct {
	id    EntityID
	value *T
}

// Next advances to the next component instance. It returns false when the
// stream is exhausted or failed; check [Iterator.Err] afterwards.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for len(it.buf) == 0 {
		if it.done {
			return false
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return false
		}
	}
	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

// Item returns the pair most recently produced by Next.
func (it *Iterator[T]) Item() (EntityID, *T) {
	return it.cur.id, it.cur.value
}

// Err returns the first error encountered by the stream, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Close releases the stream's snapshot. Only snapshot reads are in flight,
// so closing early has no side effects.
func (it *Iterator[T]) Close(ctx context.Context) error {
	it.done = true
	it.buf = nil
	if it.snap == nil {
		return nil
	}
	snap := it.snap
	it.snap = nil
	it.db.metrics.IteratorClosed(ctx)
	return snap.Close(ctx)
}

func (it *Iterator[T]) fetchPage(ctx context.Context) error {
	if it.snap == nil {
		snap, err := it.db.engine.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("kventity: iterate %s: %w", it.typePath, err)
		}
		it.snap = snap
		it.startKey = componentDataKey(it.typePath, emptyID)
		it.endKey = componentDataKey(it.typePath, maxID)
		it.db.metrics.IteratorOpened(ctx)
	}

	pairs, err := it.snap.Scan(ctx, it.startKey, it.endKey, pageSize)
	if err != nil {
		return fmt.Errorf("kventity: iterate %s: %w", it.typePath, err)
	}
	if len(pairs) == 0 {
		it.done = true
		return nil
	}
	it.db.metrics.RecordScanPage(ctx, "iterate")
	it.startKey = nextKey(pairs[len(pairs)-1].Key)
	if len(pairs) < pageSize {
		it.done = true
	}

	for _, p := range pairs {
		seg, err := componentDataEntity(p.Key)
		if err != nil {
			return err
		}
		// Rows whose entity segment lacks the e- prefix (the resource row,
		// or a foreign writer's leftovers) are skipped, not failed.
		if !strings.HasPrefix(seg, "e-") {
			continue
		}
		id, err := ParseEntityID(seg)
		if err != nil {
			return err
		}
		v := new(T)
		if err := it.db.codec.Unmarshal(p.Value, v); err != nil {
			return fmt.Errorf("kventity: decode %s: %w", it.typePath, err)
		}
		it.buf = append(it.buf, iterItem[T]{id: id, value: v})
	}
	return nil
}
