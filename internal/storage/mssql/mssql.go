// Package mssql stores the registry in SQL Server using go-mssqldb. Chunks are
// written with the bulk copy API and loads are serialized with a
// transaction-owned application lock.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/rs/zerolog"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/ddl"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "mssql"

// lockSQL takes an exclusive applock owned by the current transaction and
// fails the batch if it cannot be granted.
const lockSQL = `DECLARE @r int;
EXEC @r = sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Transaction', @LockTimeout = -1;
IF @r < 0 THROW 51000, 'sp_getapplock failed', 1;`

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(ctx, cfg)
	})
}

// Repository is the SQL Server backend.
type Repository struct {
	db     *sql.DB
	table  string
	logger zerolog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open validates the DSN, opens a pool and pings the server.
func Open(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table, logger: cfg.Logger}, nil
}

func (r *Repository) Kind() string  { return Kind }
func (r *Repository) Table() string { return r.table }
func (r *Repository) DB() *sql.DB   { return r.db }
func (r *Repository) Close() error  { return r.db.Close() }

// EnsureSchema creates the registry table and index if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts, err := ddl.BuildCreateTableSQL(ddl.RegistryTable(r.table, ddl.MSSQL), ddl.MSSQL)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("mssql: ensure schema: %w", err)
		}
	}
	return nil
}

// Begin starts a load transaction.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	return storage.BeginSQL(ctx, r.db, storage.SQLTxConfig{
		QuotedTable: ddl.QuoteFQN(r.table, ddl.MSSQL.Quote),
		LockSQL:     lockSQL,
		LockArgs:    []any{"caepi:" + r.table},
		Copy:        r.copy,
	})
}

func (r *Repository) copy(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(ddl.QuoteFQN(r.table, ddl.MSSQL.Quote), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	return res.RowsAffected()
}
