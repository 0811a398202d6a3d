// Package pgkv implements the kv engine contract on a single PostgreSQL
// table.
//
// Every row is one (key, value) pair of opaque bytes; ordered range scans
// map to ORDER BY on the BYTEA primary key. Transactions run at repeatable
// read: writes are applied eagerly inside the database transaction, and a
// concurrent writer surfaces as a serialization failure at commit, reported
// as [kv.ErrWriteConflict]. Snapshots are read-only transactions at the same
// isolation level.
//
// This backend trades TiKV's horizontal scaling for operational simplicity:
// one table in a database most deployments already run.
package pgkv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/kventity/kv"
)

// Compile-time interface checks.
var (
	_ kv.Engine   = (*Engine)(nil)
	_ kv.Txn      = (*txn)(nil)
	_ kv.Snapshot = (*snapshot)(nil)
)

const ddl = `
CREATE TABLE IF NOT EXISTS kventity_kv (
    k BYTEA PRIMARY KEY,
    v BYTEA NOT NULL
);`

// serializationFailure is the PostgreSQL SQLSTATE raised when a repeatable
// read transaction loses a write race.
const serializationFailure = "40001"

// Engine is a PostgreSQL-backed ordered key-value engine.
type Engine struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, verifies the connection, and ensures
// the kventity_kv table exists.
func New(ctx context.Context, dsn string) (*Engine, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgkv: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgkv: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgkv: migrate: %w", err)
	}
	return &Engine{pool: pool}, nil
}

// Begin implements [kv.Engine.Begin].
func (e *Engine) Begin(ctx context.Context) (kv.Txn, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("pgkv: begin: %w", err)
	}
	return &txn{tx: tx}, nil
}

// Snapshot implements [kv.Engine.Snapshot].
func (e *Engine) Snapshot(ctx context.Context) (kv.Snapshot, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("pgkv: snapshot: %w", err)
	}
	return &snapshot{tx: tx}, nil
}

// Close implements [kv.Engine.Close].
func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

// ── shared queries ───────────────────────────────────────────────────────────

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func get(ctx context.Context, q querier, key []byte) ([]byte, error) {
	const sql = `SELECT v FROM kventity_kv WHERE k = $1`
	var v []byte
	if err := q.QueryRow(ctx, sql, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("pgkv: get: %w", err)
	}
	return v, nil
}

func batchGet(ctx context.Context, q querier, keys [][]byte) (map[string][]byte, error) {
	const sql = `SELECT k, v FROM kventity_kv WHERE k = ANY($1)`
	rows, err := q.Query(ctx, sql, keys)
	if err != nil {
		return nil, fmt.Errorf("pgkv: batch get: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("pgkv: batch get: %w", err)
		}
		out[string(k)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgkv: batch get: %w", err)
	}
	return out, nil
}

func scan(ctx context.Context, q querier, start, end []byte, limit int) ([]kv.Pair, error) {
	const sql = `SELECT k, v FROM kventity_kv WHERE k >= $1 AND k < $2 ORDER BY k LIMIT $3`
	rows, err := q.Query(ctx, sql, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("pgkv: scan: %w", err)
	}
	defer rows.Close()

	var pairs []kv.Pair
	for rows.Next() {
		var p kv.Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("pgkv: scan: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgkv: scan: %w", err)
	}
	return pairs, nil
}

func scanKeys(ctx context.Context, q querier, start, end []byte, limit int) ([][]byte, error) {
	const sql = `SELECT k FROM kventity_kv WHERE k >= $1 AND k < $2 ORDER BY k LIMIT $3`
	rows, err := q.Query(ctx, sql, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("pgkv: scan keys: %w", err)
	}
	defer rows.Close()

	var keys [][]byte
	for rows.Next() {
		var k []byte
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("pgkv: scan keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgkv: scan keys: %w", err)
	}
	return keys, nil
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

type snapshot struct {
	tx pgx.Tx
}

func (s *snapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	return get(ctx, s.tx, key)
}

func (s *snapshot) BatchGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	return batchGet(ctx, s.tx, keys)
}

func (s *snapshot) Scan(ctx context.Context, start, end []byte, limit int) ([]kv.Pair, error) {
	return scan(ctx, s.tx, start, end, limit)
}

func (s *snapshot) ScanKeys(ctx context.Context, start, end []byte, limit int) ([][]byte, error) {
	return scanKeys(ctx, s.tx, start, end, limit)
}

func (s *snapshot) Close(ctx context.Context) error {
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("pgkv: close snapshot: %w", err)
	}
	return nil
}

// ── Txn ──────────────────────────────────────────────────────────────────────

type txn struct {
	tx pgx.Tx
}

func (t *txn) Get(ctx context.Context, key []byte) ([]byte, error) {
	return get(ctx, t.tx, key)
}

func (t *txn) Put(key, value []byte) error {
	// Writes are applied eagerly inside the database transaction, so the
	// context of the eventual commit governs them; Put itself cannot block
	// on anything but the pool.
	const sql = `
		INSERT INTO kventity_kv (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`
	if _, err := t.tx.Exec(context.Background(), sql, key, value); err != nil {
		return fmt.Errorf("pgkv: put: %w", err)
	}
	return nil
}

func (t *txn) Delete(key []byte) error {
	const sql = `DELETE FROM kventity_kv WHERE k = $1`
	if _, err := t.tx.Exec(context.Background(), sql, key); err != nil {
		return fmt.Errorf("pgkv: delete: %w", err)
	}
	return nil
}

func (t *txn) BatchMutate(muts []kv.Mutation) error {
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
	return scanKeys(ctx, t.tx, start, end, limit)
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			return fmt.Errorf("pgkv: commit: %w", kv.ErrWriteConflict)
		}
		return fmt.Errorf("pgkv: commit: %w", err)
	}
	return nil
}

func (t *txn) Rollback() error {
	if err := t.tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("pgkv: rollback: %w", err)
	}
	return nil
}
