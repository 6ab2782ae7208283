package normalize

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

// DateLayout is how dates are written to the snapshot.
const DateLayout = "2006-01-02"

// WriteSnapshot writes records to path as a CSV checkpoint with one column per
// registry field. The batch timestamp is not part of the snapshot.
func WriteSnapshot(path string, recs []registry.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(registry.Columns[:registry.FieldCount]); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: header: %w", err)
	}

	line := make([]string, registry.FieldCount)
	for i := range recs {
		r := &recs[i]
		line[0] = r.CertificateNumber
		line[1] = ""
		if r.ExpiryDate != nil {
			line[1] = r.ExpiryDate.Format(DateLayout)
		}
		for j, p := range r.TextFields() {
			line[j+2] = *p
		}
		if err := w.Write(line); err != nil {
			_ = f.Close()
			return fmt.Errorf("snapshot: write: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	return f.Close()
}

// ReadSnapshot loads records written by WriteSnapshot.
func ReadSnapshot(path string) ([]registry.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = registry.FieldCount
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	recs := make([]registry.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := registry.Record{CertificateNumber: row[0]}
		if row[1] != "" {
			d, err := time.Parse(DateLayout, row[1])
			if err != nil {
				return nil, fmt.Errorf("snapshot: certificate %s: %w", row[0], err)
			}
			rec.ExpiryDate = &d
		}
		for j, p := range rec.TextFields() {
			*p = row[j+2]
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
