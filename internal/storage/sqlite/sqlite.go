// Package sqlite stores the registry in a SQLite file through the pure-Go
// modernc.org/sqlite driver. SQLite has no bulk-load API, so chunks are
// inserted with a prepared statement inside the load transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/ddl"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "sqlite"

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(ctx, cfg)
	})
}

// Repository is the SQLite backend.
type Repository struct {
	db     *sql.DB
	table  string
	logger zerolog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open opens (creating when needed) the database file named by cfg.DSN.
func Open(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")

	return &Repository{db: db, table: cfg.Table, logger: cfg.Logger}, nil
}

func (r *Repository) Kind() string  { return Kind }
func (r *Repository) Table() string { return r.table }
func (r *Repository) DB() *sql.DB   { return r.db }
func (r *Repository) Close() error  { return r.db.Close() }

// EnsureSchema creates the registry table and index if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts, err := ddl.BuildCreateTableSQL(ddl.RegistryTable(r.table, ddl.SQLite), ddl.SQLite)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite: ensure schema: %w", err)
		}
	}
	r.logger.Debug().Str("table", r.table).Msg("schema ensured")
	return nil
}

// Begin starts a load transaction. No explicit lock is taken: the first
// write acquires SQLite's database-level write lock until commit.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	return storage.BeginSQL(ctx, r.db, storage.SQLTxConfig{
		QuotedTable: ddl.QuoteFQN(r.table, ddl.SQLite.Quote),
		Copy:        r.copy,
	})
}

func (r *Repository) copy(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ddl.SQLite.Quote(c)
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteFQN(r.table, ddl.SQLite.Quote),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	return inserted, nil
}
