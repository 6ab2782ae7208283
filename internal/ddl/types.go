package ddl

// ColumnDef describes a single column. Name is unquoted; quoting happens at
// render time. Default is a raw SQL expression.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// IndexDef is a secondary, non-unique index.
type IndexDef struct {
	Name    string
	Columns []string // may carry a direction suffix, e.g. "expiry_date DESC"
}

// TableDef holds the table name in dotted form ("schema.table" or "table")
// and its ordered columns and indexes.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
	Indexes []IndexDef
}

// Dialect captures the per-backend differences the renderer needs.
type Dialect struct {
	Name  string
	Quote func(ident string) string

	// Column types used for the registry table.
	KeyType       string // certificate number; must be indexable
	TextType      string
	DateType      string
	TimestampType string
	// TextDefault is the default of text columns; empty means none.
	TextDefault string

	// CreateTable wraps "CREATE TABLE <name> (<body>)" so re-running it is
	// harmless. rawName is the unquoted FQN.
	CreateTable func(rawName, quotedName, body string) string

	// CreateIndex renders an idempotent CREATE INDEX. Nil means indexes are
	// declared inline in CREATE TABLE.
	CreateIndex func(rawTable, quotedTable, quotedIndex, cols string) string

	// InlineIndex renders an index clause inside CREATE TABLE.
	InlineIndex func(quotedIndex, cols string) string
}
