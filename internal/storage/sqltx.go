package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLTxConfig describes a load transaction for database/sql backends.
type SQLTxConfig struct {
	// QuotedTable is the table name already quoted for the dialect.
	QuotedTable string

	// LockSQL runs inside the transaction. Empty disables locking.
	LockSQL  string
	LockArgs []any

	// UnlockSQL runs on the same connection once the transaction has ended;
	// used for session-scoped locks.
	UnlockSQL  string
	UnlockArgs []any

	// Copy inserts one chunk inside tx.
	Copy func(ctx context.Context, tx *sql.Tx, columns []string, rows [][]any) (int64, error)
}

// SQLTx implements Tx over a pinned *sql.Conn.
type SQLTx struct {
	cfg  SQLTxConfig
	conn *sql.Conn
	tx   *sql.Tx
	done bool
}

// BeginSQL pins a connection from db and starts a transaction on it.
func BeginSQL(ctx context.Context, db *sql.DB, cfg SQLTxConfig) (*SQLTx, error) {
	if cfg.Copy == nil {
		return nil, errors.New("storage: SQLTxConfig.Copy is required")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &SQLTx{cfg: cfg, conn: conn, tx: tx}, nil
}

// Lock implements Tx.
func (t *SQLTx) Lock(ctx context.Context) error {
	if t.cfg.LockSQL == "" {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, t.cfg.LockSQL, t.cfg.LockArgs...)
	return err
}

// Clear implements Tx.
func (t *SQLTx) Clear(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+t.cfg.QuotedTable)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Copy implements Tx.
func (t *SQLTx) Copy(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
	}
	return t.cfg.Copy(ctx, t.tx, columns, rows)
}

// Commit implements Tx.
func (t *SQLTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("storage: transaction already finished")
	}
	t.done = true
	err := t.tx.Commit()
	t.release(ctx)
	return err
}

// Rollback implements Tx.
func (t *SQLTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback()
	t.release(ctx)
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *SQLTx) release(ctx context.Context) {
	if t.cfg.UnlockSQL != "" {
		_, _ = t.conn.ExecContext(ctx, t.cfg.UnlockSQL, t.cfg.UnlockArgs...)
	}
	_ = t.conn.Close()
}
