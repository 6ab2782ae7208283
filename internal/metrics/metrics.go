// Package metrics counts what each ingestion run did to the CA registry feed:
// step outcomes and timings, what the parser and normalizer made of the rows,
// and what the load wrote to the registry table.
//
// Helpers write to a process-wide Backend. The default discards everything;
// cmd/caepi installs prompush or datadog from configuration.
package metrics

import (
	"time"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/normalize"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/parser"
)

// Metric names.
const (
	StepTotal           = "caepi_step_total"
	StepDurationSeconds = "caepi_step_duration_seconds"
	// RecordsTotal is labelled by kind: raw, blank, repaired, padded,
	// quarantined, normalized, dropped_no_key, invalid_date.
	RecordsTotal = "caepi_records_total"
	// BatchesTotal counts insert chunks written by the loader.
	BatchesTotal = "caepi_batches_total"
	// LoadRowsTotal is labelled by mode (replace, append) and op (deleted,
	// inserted).
	LoadRowsTotal = "caepi_load_rows_total"
)

// Labels are attached to a single observation.
type Labels map[string]string

// Backend receives observations. Flush is called once at process exit.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type discard struct{}

func (discard) IncCounter(string, float64, Labels)       {}
func (discard) ObserveHistogram(string, float64, Labels) {}
func (discard) Flush() error                             { return nil }

var backend Backend = discard{}

// SetBackend replaces the current backend; nil is ignored.
func SetBackend(b Backend) {
	if b != nil {
		backend = b
	}
}

// Flush flushes the current backend.
func Flush() error { return backend.Flush() }

// RecordStep counts one run of a pipeline step and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordParse reports the row outcomes of one parse.
func RecordParse(job string, s parser.Stats) {
	records(job, "raw", s.Lines)
	records(job, "blank", s.Blank)
	records(job, "repaired", s.Repaired)
	records(job, "padded", s.Padded)
	records(job, "quarantined", s.Quarantined)
}

// RecordNormalize reports the outcomes of one normalize pass.
func RecordNormalize(job string, s normalize.Stats) {
	records(job, "normalized", s.Records)
	records(job, "dropped_no_key", s.DroppedNoKey)
	records(job, "invalid_date", s.InvalidDates)
}

// RecordLoad reports the rows a committed load removed and wrote.
func RecordLoad(job, mode string, deleted, inserted int64) {
	count(LoadRowsTotal, deleted, Labels{"job": job, "mode": mode, "op": "deleted"})
	count(LoadRowsTotal, inserted, Labels{"job": job, "mode": mode, "op": "inserted"})
}

// RecordBatches counts insert chunks written by the loader.
func RecordBatches(job string, delta int64) {
	count(BatchesTotal, delta, Labels{"job": job})
}

func records(job, kind string, n int) {
	count(RecordsTotal, int64(n), Labels{"job": job, "kind": kind})
}

// count drops non-positive deltas; counters only go up.
func count(name string, delta int64, lbls Labels) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(name, float64(delta), lbls)
}
