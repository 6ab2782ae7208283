package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// dialector wraps the repository's existing pool; gorm never opens its own.
func dialector(repo storage.Repository) (gorm.Dialector, error) {
	db := repo.DB()
	switch repo.Kind() {
	case "postgres":
		return postgres.New(postgres.Config{Conn: db}), nil
	case "sqlite":
		return sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: db}), nil
	case "mssql":
		return sqlserver.New(sqlserver.Config{Conn: db}), nil
	case "mysql":
		return mysql.New(mysql.Config{Conn: db}), nil
	default:
		return nil, fmt.Errorf("lookup: unsupported storage kind %q", repo.Kind())
	}
}

// openGorm opens a read-only gorm session over repo.
func openGorm(repo storage.Repository, log zerolog.Logger) (*gorm.DB, error) {
	d, err := dialector(repo)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger:                 gormLogger{log: log},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup: open gorm: %w", err)
	}
	return db, nil
}

// gormLogger routes gorm's output through zerolog. Level filtering is left
// to the zerolog logger.
type gormLogger struct {
	log zerolog.Logger
}

func (l gormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l gormLogger) Info(_ context.Context, msg string, args ...any) {
	l.log.Info().Msgf(msg, args...)
}

func (l gormLogger) Warn(_ context.Context, msg string, args ...any) {
	l.log.Warn().Msgf(msg, args...)
}

func (l gormLogger) Error(_ context.Context, msg string, args ...any) {
	l.log.Error().Msgf(msg, args...)
}

const maxSQLLength = 200

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

// Trace logs failed queries at error level. A missing row is the normal
// result of a lookup and is logged with the successful queries at debug.
func (l gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		l.log.Error().Err(err).Str("sql", truncateSQL(sql)).Int64("rows", rows).Dur("duration", elapsed).Msg("query failed")
		return
	}
	if l.log.GetLevel() > zerolog.DebugLevel {
		return
	}
	sql, rows := fc()
	l.log.Debug().Str("sql", truncateSQL(sql)).Int64("rows", rows).Dur("duration", elapsed).Msg("query")
}
