// Package postgres stores the registry in PostgreSQL using pgx v5. Chunks are
// written with COPY inside the load transaction, and concurrent loads are
// serialized with a transaction-scoped advisory lock.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/ddl"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "postgres"

// newPool is a test hook.
var newPool = pgxpool.New

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(ctx, cfg)
	})
}

// Repository is the Postgres backend.
type Repository struct {
	pool   *pgxpool.Pool
	db     *sql.DB
	table  string
	logger zerolog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open connects a pool to cfg.DSN and verifies it with a ping.
func Open(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := newPool(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{
		pool:   pool,
		db:     stdlib.OpenDBFromPool(pool),
		table:  cfg.Table,
		logger: cfg.Logger,
	}, nil
}

func (r *Repository) Kind() string  { return Kind }
func (r *Repository) Table() string { return r.table }

// DB returns a database/sql view over the pool.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Close() error {
	err := r.db.Close()
	r.pool.Close()
	return err
}

// EnsureSchema creates the registry table and index if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts, err := ddl.BuildCreateTableSQL(ddl.RegistryTable(r.table, ddl.Postgres), ddl.Postgres)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

// Begin starts a load transaction.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &loadTx{tx: tx, table: r.table}, nil
}

// LockKey is the advisory lock key for table. Loads of different tables do
// not block each other.
func LockKey(table string) int64 {
	return int64(xxh3.HashString("caepi:" + table))
}

type loadTx struct {
	tx    pgx.Tx
	table string
}

func (t *loadTx) Lock(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", LockKey(t.table))
	return err
}

func (t *loadTx) Clear(ctx context.Context) (int64, error) {
	tag, err := t.tx.Exec(ctx, "DELETE FROM "+ddl.QuoteFQN(t.table, ddl.Postgres.Quote))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *loadTx) Copy(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	return t.tx.CopyFrom(ctx, pgx.Identifier(strings.Split(t.table, ".")), columns, pgx.CopyFromRows(rows))
}

func (t *loadTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *loadTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
