// Package kv defines the ordered key-value engine contract consumed by the
// kventity mapping layer.
//
// The contract is deliberately small: ordered byte keys, snapshot reads at a
// fixed timestamp, optimistic transactions with batched mutations, range
// scans, and batch-get. Everything else (MVCC, replication, placement) is
// the engine's business.
//
// Three implementations ship with the module:
//
//   - kv/tikv — TiKV via github.com/tikv/client-go/v2 (the production engine)
//   - kv/pgkv — a single-table PostgreSQL backend via jackc/pgx
//   - kv/memkv — an in-memory engine for tests and local development
//
// All ranges are half-open: [start, end). Implementations must be safe for
// concurrent use.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by point reads when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// ErrWriteConflict is returned by Txn.Commit when the optimistic validation
// of the transaction's read set fails. The caller decides whether to retry.
var ErrWriteConflict = errors.New("kv: write conflict")

// Op is the kind of a buffered mutation.
type Op uint8

const (
	// OpPut writes Key = Value.
	OpPut Op = iota

	// OpDel removes Key. Deleting an absent key is not an error.
	OpDel
)

// Mutation is a single buffered write. Value is ignored for OpDel.
type Mutation struct {
	Op    Op
	Key   []byte
	Value []byte
}

// Pair is one key-value row returned by a range scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// Engine is a handle to an ordered transactional key-value store.
// Engines are cheap to share; Close releases the underlying pool.
type Engine interface {
	// Begin opens an optimistic transaction. Writes are buffered until
	// Commit; Commit validates the read set and may fail with
	// [ErrWriteConflict].
	Begin(ctx context.Context) (Txn, error)

	// Snapshot opens a read-only view at the engine's current timestamp.
	// The caller must Close it when done.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Close releases client resources. The engine must not be used afterwards.
	Close() error
}

// Snapshot is a consistent read-only view of the store.
type Snapshot interface {
	// Get returns the value stored at key, or [ErrNotFound].
	Get(ctx context.Context, key []byte) ([]byte, error)

	// BatchGet returns the values for all keys that exist, keyed by the
	// string form of the key. Missing keys are simply absent from the result.
	BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error)

	// Scan returns up to limit rows with start <= key < end, in key order.
	Scan(ctx context.Context, start, end []byte, limit int) ([]Pair, error)

	// ScanKeys is Scan without materialising values.
	ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error)

	// Close releases the snapshot.
	Close(ctx context.Context) error
}

// Txn is an optimistic transaction. Txn implementations are not safe for
// concurrent use; a transaction belongs to one operation.
type Txn interface {
	// Get reads key within the transaction, observing the transaction's own
	// buffered writes. Returns [ErrNotFound] for absent keys.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put buffers a write of key = value.
	Put(key, value []byte) error

	// Delete buffers a removal of key.
	Delete(key []byte) error

	// BatchMutate buffers a batch of mutations in order.
	BatchMutate(muts []Mutation) error

	// ScanKeys returns up to limit keys with start <= key < end, in key
	// order, as of the transaction's start timestamp merged with the
	// transaction's own buffered writes: buffered puts appear, buffered
	// deletes are hidden.
	ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error)

	// Commit validates and applies the buffered writes atomically.
	Commit(ctx context.Context) error

	// Rollback discards the transaction. Rollback after a failed Commit is
	// allowed and is a no-op.
	Rollback() error
}
