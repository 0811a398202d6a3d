// Package memkv is an in-memory implementation of the kv engine contract.
//
// It exists for tests and local development: it keeps every row in a single
// mutex-guarded map, versions each key so that optimistic transactions can
// detect interleaved writers at commit, and serves snapshots as point-in-time
// copies. Nothing is persisted.
package memkv

import (
	"context"
	"sort"
	"sync"

	"github.com/MrWong99/kventity/kv"
)

// Compile-time assertions that the engine satisfies the contracts.
var (
	_ kv.Engine   = (*Engine)(nil)
	_ kv.Txn      = (*txn)(nil)
	_ kv.Snapshot = (*snapshot)(nil)
)

// Engine is a thread-safe in-memory ordered key-value store.
type Engine struct {
	mu       sync.RWMutex
	data     map[string][]byte
	versions map[string]uint64 // last commit revision per key, kept across deletes
	rev      uint64
}

// New returns an empty, ready-to-use [Engine].
func New() *Engine {
	return &Engine{
		data:     make(map[string][]byte),
		versions: make(map[string]uint64),
	}
}

// Begin implements [kv.Engine.Begin].
func (e *Engine) Begin(ctx context.Context) (kv.Txn, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vers := make(map[string]uint64, len(e.versions))
	for k, v := range e.versions {
		vers[k] = v
	}
	return &txn{
		engine: e,
		view:   e.copyLocked(),
		vers:   vers,
		reads:  make(map[string]uint64),
		writes: make(map[string]kv.Mutation),
	}, nil
}

// Snapshot implements [kv.Engine.Snapshot].
func (e *Engine) Snapshot(ctx context.Context) (kv.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &snapshot{view: e.copyLocked()}, nil
}

// Close implements [kv.Engine.Close]. It is a no-op.
func (e *Engine) Close() error { return nil }

// Dump returns every row in the store in key order. Intended for tests that
// assert over the full persisted key set.
func (e *Engine) Dump() []kv.Pair {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := e.copyLocked()
	pairs := make([]kv.Pair, 0, len(v.data))
	for _, k := range v.keys {
		pairs = append(pairs, kv.Pair{Key: []byte(k), Value: v.data[k]})
	}
	return pairs
}

// view is an immutable point-in-time copy of the store.
type view struct {
	data map[string][]byte
	keys []string // sorted
}

// copyLocked snapshots the current contents. Caller holds at least e.mu.RLock.
func (e *Engine) copyLocked() view {
	data := make(map[string][]byte, len(e.data))
	keys := make([]string, 0, len(e.data))
	for k, v := range e.data {
		data[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return view{data: data, keys: keys}
}

// rangeKeys returns the sorted keys of v within [start, end), capped at limit.
func (v view) rangeKeys(start, end string, limit int) []string {
	lo := sort.SearchStrings(v.keys, start)
	hi := sort.SearchStrings(v.keys, end)
	out := v.keys[lo:hi]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

type snapshot struct {
	view view
}

func (s *snapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, ok := s.view.data[string(key)]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return v, nil
}

func (s *snapshot) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.view.data[string(k)]; ok {
			out[string(k)] = v
		}
	}
	return out, nil
}

func (s *snapshot) Scan(ctx context.Context, start, end []byte, limit int) ([]kv.Pair, error) {
	keys := s.view.rangeKeys(string(start), string(end), limit)
	pairs := make([]kv.Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, kv.Pair{Key: []byte(k), Value: s.view.data[k]})
	}
	return pairs, nil
}

func (s *snapshot) ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error) {
	keys := s.view.rangeKeys(string(start), string(end), limit)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, []byte(k))
	}
	return out, nil
}

func (s *snapshot) Close(ctx context.Context) error { return nil }

// ── Txn ──────────────────────────────────────────────────────────────────────

type txn struct {
	engine *Engine
	view   view
	vers   map[string]uint64      // per-key versions at Begin
	reads  map[string]uint64      // key -> version the transaction depends on
	writes map[string]kv.Mutation // key -> last buffered mutation
	done   bool
}

// recordRead remembers the version the transaction observed for key so that
// Commit can detect interleaved writers.
func (t *txn) recordRead(key string) {
	if _, ok := t.reads[key]; ok {
		return
	}
	t.reads[key] = t.vers[key]
}

func (t *txn) Get(ctx context.Context, key []byte) ([]byte, error) {
	k := string(key)
	if m, ok := t.writes[k]; ok {
		if m.Op == kv.OpDel {
			return nil, kv.ErrNotFound
		}
		return m.Value, nil
	}
	t.recordRead(k)
	v, ok := t.view.data[k]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return v, nil
}

func (t *txn) Put(key, value []byte) error {
	t.writes[string(key)] = kv.Mutation{Op: kv.OpPut, Key: key, Value: value}
	return nil
}

func (t *txn) Delete(key []byte) error {
	t.writes[string(key)] = kv.Mutation{Op: kv.OpDel, Key: key}
	return nil
}

func (t *txn) BatchMutate(muts []kv.Mutation) error {
	for _, m := range muts {
		t.writes[string(m.Key)] = m
	}
	return nil
}

func (t *txn) ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error) {
	lo, hi := string(start), string(end)

	// Merge the snapshot view with the transaction's own buffered writes.
	merged := make(map[string]bool)
	for _, k := range t.view.rangeKeys(lo, hi, 0) {
		merged[k] = true
	}
	for k, m := range t.writes {
		if k < lo || k >= hi {
			continue
		}
		merged[k] = m.Op == kv.OpPut
	}

	keys := make([]string, 0, len(merged))
	for k, present := range merged {
		if present {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, []byte(k))
	}
	return out, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	e := t.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	for k, ver := range t.reads {
		if e.versions[k] != ver {
			return kv.ErrWriteConflict
		}
	}

	e.rev++
	for k, m := range t.writes {
		switch m.Op {
		case kv.OpPut:
			e.data[k] = m.Value
		case kv.OpDel:
			delete(e.data, k)
		}
		e.versions[k] = e.rev
	}
	return nil
}

func (t *txn) Rollback() error {
	t.done = true
	return nil
}
