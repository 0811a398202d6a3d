// Package tikv implements the kv engine contract on TiKV via
// github.com/tikv/client-go. This is the production engine: ordered byte
// keys, MVCC snapshot reads, and optimistic transactions come straight from
// the store.
//
// The engine is constructed from the addresses of the cluster's placement
// driver; everything else (region routing, retries inside the client,
// timestamp allocation) is the client's concern.
package tikv

import (
	"context"
	"fmt"

	tikverr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/oracle"
	"github.com/tikv/client-go/v2/txnkv"
	"github.com/tikv/client-go/v2/txnkv/transaction"
	"github.com/tikv/client-go/v2/txnkv/txnsnapshot"

	"github.com/MrWong99/kventity/kv"
)

// Compile-time interface checks.
var (
	_ kv.Engine   = (*Engine)(nil)
	_ kv.Txn      = (*txn)(nil)
	_ kv.Snapshot = (*snapshot)(nil)
)

// Engine is a TiKV-backed ordered key-value engine.
type Engine struct {
	client *txnkv.Client
}

// New connects to the TiKV cluster whose placement driver listens on
// pdEndpoints (e.g. "127.0.0.1:2379").
func New(pdEndpoints []string) (*Engine, error) {
	client, err := txnkv.NewClient(pdEndpoints)
	if err != nil {
		return nil, fmt.Errorf("tikv: connect %v: %w", pdEndpoints, err)
	}
	return &Engine{client: client}, nil
}

// Begin implements [kv.Engine.Begin] with an optimistic TiKV transaction.
func (e *Engine) Begin(ctx context.Context) (kv.Txn, error) {
	t, err := e.client.Begin()
	if err != nil {
		return nil, fmt.Errorf("tikv: begin: %w", err)
	}
	return &txn{inner: t}, nil
}

// Snapshot implements [kv.Engine.Snapshot] at the current cluster timestamp.
func (e *Engine) Snapshot(ctx context.Context) (kv.Snapshot, error) {
	ts, err := e.client.CurrentTimestamp(oracle.GlobalTxnScope)
	if err != nil {
		return nil, fmt.Errorf("tikv: current timestamp: %w", err)
	}
	return &snapshot{inner: e.client.GetSnapshot(ts)}, nil
}

// Close implements [kv.Engine.Close].
func (e *Engine) Close() error {
	return e.client.Close()
}

// iterator is the common shape of TiKV transaction and snapshot iterators.
type iterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() error
	Close()
}

// collectPairs drains it into at most limit pairs, copying keys and values
// out of the iterator's reusable buffers.
func collectPairs(it iterator, limit int, keysOnly bool) ([]kv.Pair, error) {
	defer it.Close()

	var pairs []kv.Pair
	for it.Valid() && (limit <= 0 || len(pairs) < limit) {
		p := kv.Pair{Key: append([]byte(nil), it.Key()...)}
		if !keysOnly {
			p.Value = append([]byte(nil), it.Value()...)
		}
		pairs = append(pairs, p)
		if err := it.Next(); err != nil {
			return nil, fmt.Errorf("tikv: iterate: %w", err)
		}
	}
	return pairs, nil
}

func onlyKeys(pairs []kv.Pair) [][]byte {
	keys := make([][]byte, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.Key)
	}
	return keys
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

type snapshot struct {
	inner *txnsnapshot.KVSnapshot
}

func (s *snapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.inner.Get(ctx, key)
	if tikverr.IsErrNotFound(err) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tikv: get: %w", err)
	}
	return v, nil
}

func (s *snapshot) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	values, err := s.inner.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("tikv: batch get: %w", err)
	}
	return values, nil
}

func (s *snapshot) Scan(ctx context.Context, start, end []byte, limit int) ([]kv.Pair, error) {
	it, err := s.inner.Iter(start, end)
	if err != nil {
		return nil, fmt.Errorf("tikv: scan: %w", err)
	}
	return collectPairs(it, limit, false)
}

func (s *snapshot) ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error) {
	it, err := s.inner.Iter(start, end)
	if err != nil {
		return nil, fmt.Errorf("tikv: scan keys: %w", err)
	}
	pairs, err := collectPairs(it, limit, true)
	if err != nil {
		return nil, err
	}
	return onlyKeys(pairs), nil
}

func (s *snapshot) Close(ctx context.Context) error {
	// TiKV snapshots are plain timestamped readers; nothing to release.
	return nil
}

// ── Txn ──────────────────────────────────────────────────────────────────────

type txn struct {
	inner *transaction.KVTxn
}

func (t *txn) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := t.inner.Get(ctx, key)
	if tikverr.IsErrNotFound(err) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tikv: get: %w", err)
	}
	return v, nil
}

func (t *txn) Put(key, value []byte) error {
	if err := t.inner.Set(key, value); err != nil {
		return fmt.Errorf("tikv: put: %w", err)
	}
	return nil
}

func (t *txn) Delete(key []byte) error {
	if err := t.inner.Delete(key); err != nil {
		return fmt.Errorf("tikv: delete: %w", err)
	}
	return nil
}

func (t *txn) BatchMutate(muts []kv.Mutation) error {
	// The client buffers writes in its membuffer until commit, so applying
	// the batch one mutation at a time is the same write set TiKV sees.
	for _, m := range muts {
		var err error
		switch m.Op {
		case kv.OpPut:
			err = t.Put(m.Key, m.Value)
		case kv.OpDel:
			err = t.Delete(m.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error) {
	it, err := t.inner.Iter(start, end)
	if err != nil {
		return nil, fmt.Errorf("tikv: scan keys: %w", err)
	}
	pairs, err := collectPairs(it, limit, true)
	if err != nil {
		return nil, err
	}
	return onlyKeys(pairs), nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.inner.Commit(ctx); err != nil {
		if tikverr.IsErrWriteConflict(err) {
			return fmt.Errorf("tikv: commit: %w", kv.ErrWriteConflict)
		}
		return fmt.Errorf("tikv: commit: %w", err)
	}
	return nil
}

func (t *txn) Rollback() error {
	if err := t.inner.Rollback(); err != nil {
		return fmt.Errorf("tikv: rollback: %w", err)
	}
	return nil
}
