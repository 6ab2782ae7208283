package ddl

import (
	"strings"
	"testing"
)

func TestBuildCreateTableSQL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		errContains string
	}{
		{"empty FQN", TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}}, "FQN must not be empty"},
		{"no columns", TableDef{FQN: "t"}, "at least one column"},
		{"empty column name", TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}}, "empty name"},
		{"empty column type", TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}}, "missing SQLType"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildCreateTableSQL(tt.def, SQLite)
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Fatalf("err = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestRegistryTable_Columns(t *testing.T) {
	td := RegistryTable("ca_registry", Postgres)
	if len(td.Columns) != 20 {
		t.Fatalf("columns = %d, want 20", len(td.Columns))
	}
	if td.Columns[0].Nullable || td.Columns[0].Default != "" {
		t.Fatalf("certificate_number must be NOT NULL without default: %+v", td.Columns[0])
	}
	if !td.Columns[1].Nullable {
		t.Fatalf("expiry_date must be nullable")
	}
	if len(td.Indexes) != 2 || td.Indexes[0].Name != "ix_ca_registry_certificate" || td.Indexes[1].Name != "ix_ca_registry_updated" {
		t.Fatalf("indexes = %+v", td.Indexes)
	}
}

func TestBuildCreateTableSQL_Dialects(t *testing.T) {
	tests := []struct {
		d        Dialect
		fqn      string
		stmts    int
		contains []string
	}{
		{Postgres, "public.ca_registry", 3, []string{
			`CREATE TABLE IF NOT EXISTS "public"."ca_registry"`,
			`"certificate_number" TEXT NOT NULL,`,
			`"expiry_date" DATE,`,
			`"brand" TEXT NOT NULL DEFAULT ''`,
			`"last_updated_at" TIMESTAMPTZ NOT NULL`,
			`CREATE INDEX IF NOT EXISTS "ix_ca_registry_certificate" ON "public"."ca_registry" ("certificate_number", "expiry_date")`,
			`CREATE INDEX IF NOT EXISTS "ix_ca_registry_updated" ON "public"."ca_registry" ("last_updated_at")`,
		}},
		{SQLite, "ca_registry", 3, []string{`CREATE TABLE IF NOT EXISTS "ca_registry"`}},
		{MSSQL, "dbo.ca_registry", 3, []string{
			`IF OBJECT_ID(N'dbo.ca_registry', N'U') IS NULL CREATE TABLE [dbo].[ca_registry]`,
			`[certificate_number] NVARCHAR(64) NOT NULL`,
			`WHERE name = N'ix_ca_registry_certificate'`,
		}},
		{MySQL, "ca_registry", 1, []string{
			"CREATE TABLE IF NOT EXISTS `ca_registry`",
			"INDEX `ix_ca_registry_certificate` (`certificate_number`, `expiry_date`)",
			"`brand` TEXT NOT NULL,",
			"INDEX `ix_ca_registry_updated` (`last_updated_at`)",
			"DEFAULT CHARSET=utf8mb4",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name, func(t *testing.T) {
			stmts, err := BuildCreateTableSQL(RegistryTable(tt.fqn, tt.d), tt.d)
			if err != nil {
				t.Fatalf("BuildCreateTableSQL: %v", err)
			}
			if len(stmts) != tt.stmts {
				t.Fatalf("got %d statements, want %d: %q", len(stmts), tt.stmts, stmts)
			}
			all := strings.Join(stmts, "\n")
			for _, want := range tt.contains {
				if !strings.Contains(all, want) {
					t.Errorf("missing %q in:\n%s", want, all)
				}
			}
		})
	}
}

func TestIndexColumns_Direction(t *testing.T) {
	got := indexColumns([]string{"a", "b desc"}, quoteDouble)
	if got != `"a", "b DESC"` {
		t.Fatalf("indexColumns = %q", got)
	}
}
