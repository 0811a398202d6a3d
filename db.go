package kventity

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/kventity/codec"
	"github.com/MrWong99/kventity/internal/observe"
	"github.com/MrWong99/kventity/kv"
)

// pageSize is the number of rows fetched per round-trip by every paged
// range scan in the package.
const pageSize = 128

// DB is the entry point of the data layer. It owns a [kv.Engine] handle and
// the payload codec; entity and query handles hold a cheap reference back to
// it. A DB is safe for concurrent use and freely shareable.
type DB struct {
	engine  kv.Engine
	codec   codec.Codec
	metrics *observe.Metrics
}

// Option customises a [DB].
type Option func(*DB)

// WithCodec selects the payload codec. The default is [codec.JSON].
func WithCodec(c codec.Codec) Option {
	return func(db *DB) { db.codec = c }
}

// WithMetrics attaches OTel instruments; every public operation records its
// latency and outcome, except the streaming iterators ([Iterate], [Edges]),
// which record scan pages and the active-iterator count only. Without it,
// nothing is recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(db *DB) { db.metrics = m }
}

// New creates a DB on top of engine. The DB closes the engine only when
// [DB.Close] is called; call it when the DB owns the only reference.
func New(engine kv.Engine, opts ...Option) *DB {
	db := &DB{engine: engine, codec: codec.JSON}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Close releases the underlying engine.
func (db *DB) Close() error {
	return db.engine.Close()
}

// Entity returns a handle for the entity with the given user id.
// An id containing '/' is a programmer error and panics.
func (db *DB) Entity(id string) *EntityHandler {
	return &EntityHandler{db: db, id: MustEntityID(id)}
}

// Handle returns a handle for an already-validated [EntityID], e.g. one
// recovered from a scan or returned by a filter.
func (db *DB) Handle(id EntityID) *EntityHandler {
	return &EntityHandler{db: db, id: id}
}

// Resource returns the handle of the singleton resource entity, the
// conventional home for store-wide components.
func (db *DB) Resource() *EntityHandler {
	return &EntityHandler{db: db, id: ResourceID}
}

// Entities returns a list handle over the entities with the given user ids.
// An id containing '/' is a programmer error and panics.
func (db *DB) Entities(ids ...string) *EntityList {
	eids := make([]EntityID, 0, len(ids))
	for _, id := range ids {
		eids = append(eids, MustEntityID(id))
	}
	return &EntityList{db: db, ids: eids}
}

// DropAll removes every key in the store. Maintenance/debug only: it wipes
// data written by every process sharing the keyspace.
func (db *DB) DropAll(ctx context.Context) (err error) {
	defer db.record(ctx, "drop_all", time.Now(), &err)

	txn, err := db.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kventity: drop all: %w", err)
	}

	start := []byte("")
	end := []byte{0xff}
	deleted := 0
	for {
		keys, err := txn.ScanKeys(ctx, start, end, pageSize)
		if err != nil {
			txn.Rollback()
			return fmt.Errorf("kventity: drop all: %w", err)
		}
		if len(keys) == 0 {
			break
		}
		db.metrics.RecordScanPage(ctx, "drop_all")
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				txn.Rollback()
				return fmt.Errorf("kventity: drop all: %w", err)
			}
		}
		deleted += len(keys)
		start = nextKey(keys[len(keys)-1])
		if len(keys) < pageSize {
			break
		}
	}

	db.metrics.RecordBatch(ctx, deleted)
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("kventity: drop all: %w", err)
	}
	return nil
}

// record reports one finished operation to the metrics instruments.
// Meant to be deferred with a named error: the recorded status reflects the
// operation's final outcome.
func (db *DB) record(ctx context.Context, op string, start time.Time, err *error) {
	db.metrics.RecordOp(ctx, op, time.Since(start), *err)
}
