package storage

import (
	"fmt"
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTable accepts "table" or "schema.table" made of plain identifiers.
// Table names are interpolated into SQL, so nothing else is allowed.
func ValidateTable(table string) error {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return fmt.Errorf("storage: invalid table name %q", table)
	}
	for _, p := range parts {
		if !identRe.MatchString(p) {
			return fmt.Errorf("storage: invalid table name %q", table)
		}
	}
	return nil
}

// BaseName returns the table segment of a possibly schema-qualified name.
func BaseName(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
