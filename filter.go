package kventity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/kventity/kv"
)

type boundKind uint8

const (
	boundValue boundKind = iota
	boundRange
)

// BoundCondition is the predicate of a [Filter]: either equality on one
// encoded value, or a half-open range over encoded values.
type BoundCondition struct {
	kind boundKind
	lo   string
	hi   string
}

// Eq matches rows whose encoded field value equals encoded.
func Eq(encoded string) BoundCondition {
	return BoundCondition{kind: boundValue, lo: encoded, hi: encoded}
}

// Between matches rows with lo <= encoded value < hi. The bounds are
// encoded values (see package keycodec), compared lexicographically.
func Between(lo, hi string) BoundCondition {
	return BoundCondition{kind: boundRange, lo: lo, hi: hi}
}

// Filter queries entities of one component type by an indexed field.
// Construct filters through the generated query helpers, or directly with
// [NewFilter] when working with pre-encoded values.
type Filter[T any] struct {
	db       *DB
	typePath string
	field    string
	cond     BoundCondition
}

// NewFilter builds a filter on the given indexed field of component type T.
func NewFilter[T any, PT ComponentPtr[T]](db *DB, field string, cond BoundCondition) *Filter[T] {
	return &Filter[T]{
		db:       db,
		typePath: PT(new(T)).TypePath(),
		field:    field,
		cond:     cond,
	}
}

// bounds translates the condition into an index-key scan range.
//
// Equality covers the full entity sub-range of one encoded value. A range
// ends at the *empty* entity sentinel of hi, excluding every row whose value
// equals hi, which is what keeps the range half-open.
func (f *Filter[T]) bounds() (start, end []byte) {
	start = componentIndexKey(f.typePath, f.field, f.cond.lo, emptyID)
	if f.cond.kind == boundValue {
		end = componentIndexKey(f.typePath, f.field, f.cond.hi, maxID)
	} else {
		end = componentIndexKey(f.typePath, f.field, f.cond.hi, emptyID)
	}
	return start, end
}

// Entity returns a handle for the first entity matching the filter, in
// index order. Returns [ErrNotFound] when nothing matches.
func (f *Filter[T]) Entity(ctx context.Context) (_ *EntityHandler, err error) {
	defer f.db.record(ctx, "query_entity", time.Now(), &err)

	snap, err := f.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: query: %w", err)
	}
	defer snap.Close(ctx)

	id, err := f.firstEntityID(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &EntityHandler{db: f.db, id: id}, nil
}

// Single returns the component value of the first entity matching the
// filter. Returns [ErrNotFound] when nothing matches, or when the matched
// entity's payload row is missing.
func (f *Filter[T]) Single(ctx context.Context) (_ *T, err error) {
	defer f.db.record(ctx, "query_single", time.Now(), &err)

	snap, err := f.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: query: %w", err)
	}
	defer snap.Close(ctx)

	id, err := f.firstEntityID(ctx, snap)
	if err != nil {
		return nil, err
	}

	data, err := snap.Get(ctx, componentDataKey(f.typePath, id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kventity: query: %w", err)
	}

	v := new(T)
	if err := f.db.codec.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("kventity: decode %s: %w", f.typePath, err)
	}
	return v, nil
}

// All returns the component values of every entity matching the filter, in
// index order.
func (f *Filter[T]) All(ctx context.Context) (_ []*T, err error) {
	defer f.db.record(ctx, "query_all", time.Now(), &err)

	snap, err := f.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: query: %w", err)
	}
	defer snap.Close(ctx)

	ids, err := f.entityIDs(ctx, snap)
	if err != nil {
		return nil, err
	}

	keys := make([][]byte, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, componentDataKey(f.typePath, id))
	}
	values, err := snap.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("kventity: query: %w", err)
	}

	out := make([]*T, 0, len(ids))
	for _, key := range keys {
		data, ok := values[string(key)]
		if !ok {
			continue
		}
		v := new(T)
		if err := f.db.codec.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("kventity: decode %s: %w", f.typePath, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Count returns the number of entities matching the filter.
func (f *Filter[T]) Count(ctx context.Context) (_ int, err error) {
	defer f.db.record(ctx, "query_count", time.Now(), &err)

	snap, err := f.db.engine.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("kventity: query: %w", err)
	}
	defer snap.Close(ctx)

	ids, err := f.entityIDs(ctx, snap)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// List returns an [EntityList] over every entity matching the filter, for
// follow-up batched operations.
func (f *Filter[T]) List(ctx context.Context) (_ *EntityList, err error) {
	defer f.db.record(ctx, "query_list", time.Now(), &err)

	snap, err := f.db.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: query: %w", err)
	}
	defer snap.Close(ctx)

	ids, err := f.entityIDs(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &EntityList{db: f.db, ids: ids}, nil
}

// firstEntityID scans the index range with limit 1 and parses the row value.
func (f *Filter[T]) firstEntityID(ctx context.Context, snap kv.Snapshot) (EntityID, error) {
	start, end := f.bounds()
	pairs, err := snap.Scan(ctx, start, end, 1)
	if err != nil {
		return EntityID{}, fmt.Errorf("kventity: query: %w", err)
	}
	if len(pairs) == 0 {
		return EntityID{}, ErrNotFound
	}
	id, err := ParseEntityID(string(pairs[0].Value))
	if err != nil {
		return EntityID{}, err
	}
	return id, nil
}

// entityIDs pages over the index range and parses every row value.
// Duplicates cannot occur: (field, encoded value, entity id) is unique by
// key construction.
func (f *Filter[T]) entityIDs(ctx context.Context, snap kv.Snapshot) ([]EntityID, error) {
	start, end := f.bounds()

	var ids []EntityID
	for {
		pairs, err := snap.Scan(ctx, start, end, pageSize)
		if err != nil {
			return nil, fmt.Errorf("kventity: query: %w", err)
		}
		if len(pairs) == 0 {
			break
		}
		f.db.metrics.RecordScanPage(ctx, "query")
		start = nextKey(pairs[len(pairs)-1].Key)

		for _, p := range pairs {
			id, err := ParseEntityID(string(p.Value))
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		if len(pairs) < pageSize {
			break
		}
	}
	return ids, nil
}
