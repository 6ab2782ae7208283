package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// Quarantined is a row that could not be brought to the expected width.
type Quarantined struct {
	Line   int    // physical line the row starts on
	Fields int    // field count as read
	Raw    string // logical line, verbatim
}

// WriteQuarantine writes one raw line per entry to path, replacing any previous
// file. An empty list still produces an empty file so each run leaves a fresh
// audit trail.
func WriteQuarantine(path string, rows []Quarantined) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("quarantine: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("quarantine: create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	for _, q := range rows {
		if _, err := w.WriteString(q.Raw + "\n"); err != nil {
			_ = f.Close()
			return fmt.Errorf("quarantine: write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("quarantine: flush: %w", err)
	}
	return f.Close()
}
