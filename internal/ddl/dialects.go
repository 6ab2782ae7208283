package ddl

import (
	"fmt"
	"strings"
)

func quoteDouble(id string) string  { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
func quoteBracket(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }
func quoteTick(id string) string    { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func createIfNotExists(_, quoted, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoted, body)
}

func indexIfNotExists(_, quotedTable, quotedIndex, cols string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quotedIndex, quotedTable, cols)
}

// Postgres dialect.
var Postgres = Dialect{
	Name:          "postgres",
	Quote:         quoteDouble,
	KeyType:       "TEXT",
	TextType:      "TEXT",
	DateType:      "DATE",
	TimestampType: "TIMESTAMPTZ",
	TextDefault:   "''",
	CreateTable:   createIfNotExists,
	CreateIndex:   indexIfNotExists,
}

// SQLite dialect. Dates are stored as TEXT/TIMESTAMP affinity by the driver.
var SQLite = Dialect{
	Name:          "sqlite",
	Quote:         quoteDouble,
	KeyType:       "TEXT",
	TextType:      "TEXT",
	DateType:      "DATE",
	TimestampType: "TIMESTAMP",
	TextDefault:   "''",
	CreateTable:   createIfNotExists,
	CreateIndex:   indexIfNotExists,
}

// MSSQL dialect. SQL Server has no IF NOT EXISTS for tables or indexes.
var MSSQL = Dialect{
	Name:          "mssql",
	Quote:         quoteBracket,
	KeyType:       "NVARCHAR(64)",
	TextType:      "NVARCHAR(MAX)",
	DateType:      "DATE",
	TimestampType: "DATETIME2",
	TextDefault:   "''",
	CreateTable: func(raw, quoted, body string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
			strings.ReplaceAll(raw, "'", "''"), quoted, body)
	},
	CreateIndex: func(raw, quotedTable, quotedIndex, cols string) string {
		name := strings.Trim(quotedIndex, "[]")
		return fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s')) CREATE INDEX %s ON %s (%s)",
			strings.ReplaceAll(name, "'", "''"), strings.ReplaceAll(raw, "'", "''"), quotedIndex, quotedTable, cols)
	},
}

// MySQL dialect. The index is declared inline because MySQL lacks
// CREATE INDEX IF NOT EXISTS. Text columns are TEXT to stay under the row
// size limit, and TEXT cannot carry a literal default.
var MySQL = Dialect{
	Name:          "mysql",
	Quote:         quoteTick,
	KeyType:       "VARCHAR(64)",
	TextType:      "TEXT",
	DateType:      "DATE",
	TimestampType: "DATETIME(6)",
	CreateTable: func(_, quoted, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) DEFAULT CHARSET=utf8mb4", quoted, body)
	},
	InlineIndex: func(quotedIndex, cols string) string {
		return fmt.Sprintf("INDEX %s (%s)", quotedIndex, cols)
	},
}
