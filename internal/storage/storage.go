// Package storage owns the registry table: a small factory of database
// backends plus the transactional bulk loader shared by all of them.
//
// Backends register themselves from init (see storage/all) and expose only the
// primitives the loader needs: begin a transaction, take the load lock, clear
// the table and bulk-copy a chunk of rows.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultChunkSize is the number of rows sent to the backend per insert call.
const DefaultChunkSize = 2000

// ErrLoad wraps every failure inside a load transaction. The transaction has
// been rolled back when it is returned.
var ErrLoad = errors.New("load failed")

// Config selects and configures a backend.
type Config struct {
	Kind   string
	DSN    string
	Table  string
	Logger zerolog.Logger
}

// Repository is one backend holding the registry table.
type Repository interface {
	Kind() string
	// Table is the configured, unquoted table name.
	Table() string
	// DB exposes the connection pool for read-side consumers.
	DB() *sql.DB
	// EnsureSchema creates the table and its lookup index when missing.
	EnsureSchema(ctx context.Context) error
	// Begin starts the single transaction a load runs in.
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a load transaction. Rollback after Commit is a no-op.
type Tx interface {
	// Lock serializes concurrent loads for the duration of the transaction.
	Lock(ctx context.Context) error
	// Clear deletes every row of the table and reports how many were removed.
	Clear(ctx context.Context) (int64, error)
	// Copy inserts rows aligned to columns.
	Copy(ctx context.Context, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on duplicates.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("storage: duplicate backend " + kind)
	}
	factories[kind] = f
}

// Kinds lists the registered backends, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	if err := ValidateTable(cfg.Table); err != nil {
		return nil, err
	}
	return f(ctx, cfg)
}
