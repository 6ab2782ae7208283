// Package mysql stores the registry in MySQL using go-sql-driver/mysql.
// Chunks are written with multi-row INSERTs and loads are serialized with a
// named lock held by the load connection.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/ddl"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "mysql"

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(ctx, cfg)
	})
}

// Repository is the MySQL backend.
type Repository struct {
	db     *sql.DB
	table  string
	logger zerolog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open parses the DSN, forces parseTime so DATE columns scan into time.Time,
// and pings the server.
func Open(ctx context.Context, cfg storage.Config) (*Repository, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: dsn: %w", err)
	}
	mc.ParseTime = true
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table, logger: cfg.Logger}, nil
}

func (r *Repository) Kind() string  { return Kind }
func (r *Repository) Table() string { return r.table }
func (r *Repository) DB() *sql.DB   { return r.db }
func (r *Repository) Close() error  { return r.db.Close() }

// EnsureSchema creates the registry table (with its index) if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts, err := ddl.BuildCreateTableSQL(ddl.RegistryTable(r.table, ddl.MySQL), ddl.MySQL)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("mysql: ensure schema: %w", err)
		}
	}
	return nil
}

// Begin starts a load transaction. GET_LOCK is session scoped, so the lock is
// released on the pinned connection after commit or rollback.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	name := "caepi:" + r.table
	return storage.BeginSQL(ctx, r.db, storage.SQLTxConfig{
		QuotedTable: ddl.QuoteFQN(r.table, ddl.MySQL.Quote),
		LockSQL:     "SELECT GET_LOCK(?, -1)",
		LockArgs:    []any{name},
		UnlockSQL:   "SELECT RELEASE_LOCK(?)",
		UnlockArgs:  []any{name},
		Copy:        r.copy,
	})
}

func (r *Repository) copy(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmtSQL, args := insertSQL(ddl.QuoteFQN(r.table, ddl.MySQL.Quote), columns, rows)
	res, err := tx.ExecContext(ctx, stmtSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("mysql: insert: %w", err)
	}
	return res.RowsAffected()
}

// insertSQL builds one multi-row INSERT for rows.
func insertSQL(quotedTable string, columns []string, rows [][]any) (string, []any) {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = ddl.MySQL.Quote(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", quotedTable, strings.Join(cols, ","))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args
}
