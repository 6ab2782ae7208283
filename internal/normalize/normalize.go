// Package normalize maps parsed CAEPI rows onto registry records: positional
// columns become named fields, text is cleaned, the expiry date is parsed
// day-first, and rows without a certificate number are dropped.
package normalize

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

// Stats counts normalizer outcomes.
type Stats struct {
	HeaderSkipped bool // rows[0] was the export's label row
	Rows          int  // data rows seen, header excluded
	Records       int
	DroppedNoKey  int
	InvalidDates  int // non-blank dates that did not parse; stored as NULL
}

// Result holds the normalized records in input order.
type Result struct {
	Records []registry.Record
	Stats   Stats
}

// Normalizer converts parsed rows to records.
type Normalizer struct {
	Logger zerolog.Logger
}

// Normalize skips rows[0] when it is the export's label row. If the parser
// quarantined the label row, rows[0] is already data and is kept. Rows are
// expected to be registry.FieldCount wide; missing trailing columns read as
// blank.
func (n Normalizer) Normalize(rows [][]string) Result {
	var res Result
	if len(rows) == 0 {
		return res
	}
	if isHeader(rows[0]) {
		res.Stats.HeaderSkipped = true
		rows = rows[1:]
	} else {
		n.Logger.Warn().Str("first_cell", field(rows[0], 0)).Msg("first row is not a header; keeping it as data")
	}

	res.Records = make([]registry.Record, 0, len(rows))
	for i, row := range rows {
		res.Stats.Rows++

		rec := registry.Record{CertificateNumber: CleanText(field(row, 0))}
		if !rec.HasKey() {
			res.Stats.DroppedNoKey++
			n.Logger.Debug().Int("row", i+1).Msg("dropped row without certificate number")
			continue
		}

		rawDate := CleanText(field(row, registry.ExpiryColumn))
		rec.ExpiryDate = ParseDate(rawDate)
		if rec.ExpiryDate == nil && rawDate != "" {
			res.Stats.InvalidDates++
			n.Logger.Debug().Int("row", i+1).Str("value", rawDate).Msg("unparseable expiry date")
		}

		for j, dst := range rec.TextFields() {
			*dst = CleanText(field(row, j+2))
		}
		res.Records = append(res.Records, rec)
	}
	res.Stats.Records = len(res.Records)

	n.Logger.Info().
		Bool("header_skipped", res.Stats.HeaderSkipped).
		Int("rows", res.Stats.Rows).
		Int("records", res.Stats.Records).
		Int("dropped_no_key", res.Stats.DroppedNoKey).
		Int("invalid_dates", res.Stats.InvalidDates).
		Msg("normalize complete")
	return res
}

// isHeader reports whether row is the label row. Certificate numbers always
// carry digits; the label of the first column never does.
func isHeader(row []string) bool {
	first := CleanText(field(row, 0))
	return first != "" && !strings.ContainsAny(first, "0123456789")
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// missingMarkers are values the export (or earlier tabular tooling) uses for
// "no value".
var missingMarkers = map[string]struct{}{
	"NULL": {}, "null": {}, "NaN": {}, "nan": {}, "None": {}, "NaT": {},
}

// CleanText trims, replaces non-breaking spaces, applies NFC and maps
// missing-value markers to "".
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.TrimSpace(s)
	if _, ok := missingMarkers[s]; ok {
		return ""
	}
	return norm.NFC.String(s)
}

var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-1-2",
	"2006/1/2",
}

// ParseDate parses a day-first date, ignoring any time-of-day suffix. Blank or
// invalid values (including impossible calendar dates) return nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}
