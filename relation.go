package kventity

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/kventity/kv"
)

// Direction selects which edges of an entity an operation touches, and tags
// the edges it yields.
//
// The writer convention: Link(A → B) marks A's side "in" (A is the source of
// a payload stored under A/B) and B's side "out". A *request* direction is
// semantic (In means "edges pointing at me"), so readers scan the opposite
// marker segment, and the Direction attached to a yielded edge is the raw
// marker of the row that produced it.
type Direction uint8

const (
	// Both selects in and out edges together.
	Both Direction = iota

	// In selects edges pointing at the entity.
	In

	// Out selects edges originating at the entity.
	Out
)

// Flip swaps In and Out; Both flips to itself. It is the mirror operation
// used when maintaining the second marker row of an edge triad.
func (d Direction) Flip() Direction {
	switch d {
	case In:
		return Out
	case Out:
		return In
	default:
		return Both
	}
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return "both"
	}
}

// marker is the key segment for d. Only valid for In and Out.
func (d Direction) marker() string {
	if d == In {
		return "in"
	}
	return "out"
}

func parseMarker(s string) (Direction, error) {
	switch s {
	case "in":
		return In, nil
	case "out":
		return Out, nil
	default:
		return Both, fmt.Errorf("unknown direction marker %q", s)
	}
}

// EdgeRef identifies one edge of an entity without its payload.
type EdgeRef struct {
	// Entity is the other end of the edge.
	Entity EntityID

	// Direction is the raw marker tag of the edge row on this entity's side.
	Direction Direction
}

// Link creates a typed directed edge from this entity to other, carrying
// rel as payload. The triad (marker rows on both sides plus the payload
// row) is written in one transaction. Linking the same pair again
// overwrites the payload.
func (h *EntityHandler) Link(ctx context.Context, other EntityID, rel Relation) (err error) {
	defer h.db.record(ctx, "link", time.Now(), &err)

	typePath := rel.TypePath()
	payload, err := h.db.codec.Marshal(rel)
	if err != nil {
		return fmt.Errorf("kventity: encode %s: %w", typePath, err)
	}

	muts := []kv.Mutation{
		{Op: kv.OpPut, Key: relationEdgeKey(typePath, h.id, other, In)},
		{Op: kv.OpPut, Key: relationEdgeKey(typePath, other, h.id, Out)},
		{Op: kv.OpPut, Key: relationDataKey(typePath, h.id, other), Value: payload},
	}
	return h.commitEdgeMutations(ctx, "link", muts)
}

// Unlink removes the edge of type T from this entity to other: both marker
// rows and the payload row, in one transaction. Unlinking an absent edge is
// not an error.
func Unlink[T any, PT RelationPtr[T]](ctx context.Context, h *EntityHandler, other EntityID) (err error) {
	defer h.db.record(ctx, "unlink", time.Now(), &err)

	typePath := PT(new(T)).TypePath()
	muts := []kv.Mutation{
		{Op: kv.OpDel, Key: relationEdgeKey(typePath, h.id, other, In)},
		{Op: kv.OpDel, Key: relationEdgeKey(typePath, other, h.id, Out)},
		{Op: kv.OpDel, Key: relationDataKey(typePath, h.id, other)},
	}
	return h.commitEdgeMutations(ctx, "unlink", muts)
}

func (h *EntityHandler) commitEdgeMutations(ctx context.Context, op string, muts []kv.Mutation) error {
	txn, err := h.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: %s: %w", op, err)
	}
	if err := txn.BatchMutate(muts); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: %s: %w", op, err)
	}
	h.db.metrics.RecordBatch(ctx, len(muts))
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: %s: %w", op, err)
	}
	return nil
}

// EdgesEntity lists the edges of type T in the requested direction, without
// fetching payloads.
func EdgesEntity[T any, PT RelationPtr[T]](ctx context.Context, h *EntityHandler, dir Direction) (_ []EdgeRef, err error) {
	defer h.db.record(ctx, "edges_entity", time.Now(), &err)

	typePath := PT(new(T)).TypePath()

	txn, err := h.db.engine.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("kventity: edges: %w", err)
	}
	refs, err := h.edgesInTxn(ctx, txn, typePath, dir)
	if err != nil {
		txn.Rollback()
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("kventity: edges: %w", err)
	}
	return refs, nil
}

// DeleteEdges removes every edge of type T touching this entity, in both
// directions, in one transaction: both marker rows and the payload row of
// each triad.
func DeleteEdges[T any, PT RelationPtr[T]](ctx context.Context, h *EntityHandler) (err error) {
	defer h.db.record(ctx, "delete_edges", time.Now(), &err)

	typePath := PT(new(T)).TypePath()

	txn, err := h.db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: delete edges: %w", err)
	}
	refs, err := h.edgesInTxn(ctx, txn, typePath, Both)
	if err != nil {
		txn.Rollback()
		return err
	}

	var muts []kv.Mutation
	for _, ref := range refs {
		muts = append(muts,
			kv.Mutation{Op: kv.OpDel, Key: relationEdgeKey(typePath, h.id, ref.Entity, ref.Direction)},
			kv.Mutation{Op: kv.OpDel, Key: relationEdgeKey(typePath, ref.Entity, h.id, ref.Direction.Flip())},
		)
		if ref.Direction == In {
			muts = append(muts, kv.Mutation{Op: kv.OpDel, Key: relationDataKey(typePath, h.id, ref.Entity)})
		} else {
			muts = append(muts, kv.Mutation{Op: kv.OpDel, Key: relationDataKey(typePath, ref.Entity, h.id)})
		}
	}

	if err := txn.BatchMutate(muts); err != nil {
		txn.Rollback()
		return fmt.Errorf("kventity: delete edges: %w", err)
	}
	h.db.metrics.RecordBatch(ctx, len(muts))
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: delete edges: %w", err)
	}
	return nil
}

// edgesInTxn pages over the entity's edge markers of one type in the
// requested direction and returns the parsed refs. The semantic-to-marker
// mapping: a request for In scans the out/ segment and vice versa; Both
// scans the whole type range.
func (h *EntityHandler) edgesInTxn(ctx context.Context, txn kv.Txn, typePath string, dir Direction) ([]EdgeRef, error) {
	scanDir := dir.Flip()
	start := relationEdgeKey(typePath, h.id, emptyID, scanDir)
	end := relationEdgeKey(typePath, h.id, maxID, scanDir)

	var refs []EdgeRef
	for {
		keys, err := txn.ScanKeys(ctx, start, end, pageSize)
		if err != nil {
			return nil, fmt.Errorf("kventity: scan edges: %w", err)
		}
		if len(keys) == 0 {
			break
		}
		h.db.metrics.RecordScanPage(ctx, "edges")
		start = nextKey(keys[len(keys)-1])

		for _, k := range keys {
			ref, err := parseEdgeKey(k)
			if err != nil {
				return nil, err
			}
			refs = append(refs, EdgeRef{Entity: ref.other, Direction: ref.direction})
		}
		if len(keys) < pageSize {
			break
		}
	}
	return refs, nil
}

// scanAllEdgesInTxn pages over every edge marker of the entity across all
// relation types. Used by cascade delete.
func (h *EntityHandler) scanAllEdgesInTxn(ctx context.Context, txn kv.Txn) ([]edgeRef, error) {
	start := relationEdgeTypeBound(h.id, "")
	end := relationEdgeTypeBound(h.id, "~")

	var refs []edgeRef
	for {
		keys, err := txn.ScanKeys(ctx, start, end, pageSize)
		if err != nil {
			return nil, fmt.Errorf("kventity: scan edges: %w", err)
		}
		if len(keys) == 0 {
			break
		}
		h.db.metrics.RecordScanPage(ctx, "delete")
		start = nextKey(keys[len(keys)-1])

		for _, k := range keys {
			ref, err := parseEdgeKey(k)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		if len(keys) < pageSize {
			break
		}
	}
	return refs, nil
}

// Edges returns a streamed view of the edges of type T in the requested
// direction, with payloads. Pages are fetched lazily from a snapshot opened
// at the first Next call.
func Edges[T any, PT RelationPtr[T]](h *EntityHandler, dir Direction) *EdgeIterator[T] {
	return &EdgeIterator[T]{
		h:        h,
		typePath: PT(new(T)).TypePath(),
		scanDir:  dir.Flip(),
	}
}

// EdgeIterator is a lazy, single-pass stream over one entity's edges of a
// single relation type. Not safe for concurrent use.
type EdgeIterator[T any] struct {
	h        *EntityHandler
	typePath string
	scanDir  Direction

	snap     kv.Snapshot
	startKey []byte
	endKey   []byte

	buf  []edgeItem[T]
	cur  edgeItem[T]
	done bool
	err  error
}

type edgeItem[T any] struct {
	other EntityID
	dir   Direction
	value *T
}

// Next advances to the next edge. It returns false when the stream is
// exhausted or failed; check [EdgeIterator.Err] afterwards.
func (it *EdgeIterator[T]) Next(ctx context.Context) bool {
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

// Item returns the edge most recently produced by Next: the other entity,
// the raw marker tag of the row, and the decoded payload.
func (it *EdgeIterator[T]) Item() (EntityID, Direction, *T) {
	return it.cur.other, it.cur.dir, it.cur.value
}

// Err returns the first error encountered by the stream, if any.
func (it *EdgeIterator[T]) Err() error {
	return it.err
}

// Close releases the stream's snapshot. Only snapshot reads are in flight,
// so closing early has no side effects.
func (it *EdgeIterator[T]) Close(ctx context.Context) error {
	it.done = true
	it.buf = nil
	if it.snap == nil {
		return nil
	}
	snap := it.snap
	it.snap = nil
	it.h.db.metrics.IteratorClosed(ctx)
	return snap.Close(ctx)
}

func (it *EdgeIterator[T]) fetchPage(ctx context.Context) error {
	h := it.h
	if it.snap == nil {
		snap, err := h.db.engine.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("kventity: edges: %w", err)
		}
		it.snap = snap
		it.startKey = relationEdgeKey(it.typePath, h.id, emptyID, it.scanDir)
		it.endKey = relationEdgeKey(it.typePath, h.id, maxID, it.scanDir)
		h.db.metrics.IteratorOpened(ctx)
	}

	keys, err := it.snap.ScanKeys(ctx, it.startKey, it.endKey, pageSize)
	if err != nil {
		return fmt.Errorf("kventity: edges: %w", err)
	}
	if len(keys) == 0 {
		it.done = true
		return nil
	}
	h.db.metrics.RecordScanPage(ctx, "edges")
	it.startKey = nextKey(keys[len(keys)-1])
	if len(keys) < pageSize {
		it.done = true
	}

	refs := make([]edgeRef, 0, len(keys))
	dataKeys := make([][]byte, 0, len(keys))
	for _, k := range keys {
		ref, err := parseEdgeKey(k)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		if ref.direction == In {
			dataKeys = append(dataKeys, relationDataKey(it.typePath, h.id, ref.other))
		} else {
			dataKeys = append(dataKeys, relationDataKey(it.typePath, ref.other, h.id))
		}
	}

	values, err := it.snap.BatchGet(ctx, dataKeys)
	if err != nil {
		return fmt.Errorf("kventity: edges: %w", err)
	}
	for i, ref := range refs {
		data, ok := values[string(dataKeys[i])]
		if !ok {
			// Half-deleted triad: the marker survived its payload. Skip it
			// rather than failing the stream.
			continue
		}
		v := new(T)
		if err := h.db.codec.Unmarshal(data, v); err != nil {
			return fmt.Errorf("kventity: decode %s: %w", it.typePath, err)
		}
		it.buf = append(it.buf, edgeItem[T]{other: ref.other, dir: ref.direction, value: v})
	}
	return nil
}
