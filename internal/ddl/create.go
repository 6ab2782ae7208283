// Package ddl is a small model for the registry table's DDL and a renderer
// that adapts it to each supported SQL dialect.
package ddl

import (
	"fmt"
	"strings"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

// RegistryTable returns the definition of the registry table named fqn using
// the column types of d.
func RegistryTable(fqn string, d Dialect) TableDef {
	cols := make([]ColumnDef, 0, len(registry.Columns))
	for _, name := range registry.Columns {
		c := ColumnDef{Name: name, SQLType: d.TextType, Default: d.TextDefault}
		switch name {
		case "certificate_number":
			c = ColumnDef{Name: name, SQLType: d.KeyType}
		case "expiry_date":
			c = ColumnDef{Name: name, SQLType: d.DateType, Nullable: true}
		case "last_updated_at":
			c = ColumnDef{Name: name, SQLType: d.TimestampType}
		}
		cols = append(cols, c)
	}

	base := fqn
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		base = fqn[i+1:]
	}
	return TableDef{
		FQN:     fqn,
		Columns: cols,
		Indexes: []IndexDef{
			{Name: "ix_" + base + "_certificate", Columns: []string{"certificate_number", "expiry_date"}},
			{Name: "ix_" + base + "_updated", Columns: []string{"last_updated_at"}},
		},
	}
}

// BuildCreateTableSQL renders t for dialect d. Index statements that cannot be
// inlined are returned after the CREATE TABLE, one statement per element.
func BuildCreateTableSQL(t TableDef, d Dialect) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("ddl: at least one column is required")
	}
	if d.Quote == nil || d.CreateTable == nil {
		return nil, fmt.Errorf("ddl: dialect %q is incomplete", d.Name)
	}

	quoted := QuoteFQN(fqn, d.Quote)
	defs := make([]string, 0, len(t.Columns)+len(t.Indexes))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		defs = append(defs, sb.String())
	}

	var after []string
	for _, ix := range t.Indexes {
		cols := indexColumns(ix.Columns, d.Quote)
		switch {
		case d.CreateIndex != nil:
			after = append(after, d.CreateIndex(fqn, quoted, d.Quote(ix.Name), cols))
		case d.InlineIndex != nil:
			defs = append(defs, d.InlineIndex(d.Quote(ix.Name), cols))
		}
	}

	body := "\n  " + strings.Join(defs, ",\n  ") + "\n"
	return append([]string{d.CreateTable(fqn, quoted, body)}, after...), nil
}

func indexColumns(cols []string, quote func(string) string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		name, dir, _ := strings.Cut(strings.TrimSpace(c), " ")
		out[i] = quote(name)
		if dir != "" {
			out[i] += " " + strings.ToUpper(strings.TrimSpace(dir))
		}
	}
	return strings.Join(out, ", ")
}

// QuoteFQN quotes each segment of a dotted name with quote.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}
