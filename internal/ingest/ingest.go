// Package ingest runs the CA registry pipeline end to end: fetch the archive,
// parse and repair the raw rows, normalize them into records and, when asked
// to, load them into the registry table as one batch.
//
// The run is sequential. Fetch and load failures are fatal and returned;
// row-level problems are absorbed into the parse and normalize stats.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/fetch"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/logging"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/metrics"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/normalize"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/parser"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// ErrEmptyBatch is returned when a replace load would leave the registry
// empty, which almost always means a broken feed.
var ErrEmptyBatch = errors.New("refusing to replace the registry with an empty batch")

// Step names used in logs and metrics.
const (
	StepFetch     = "fetch"
	StepParse     = "parse"
	StepNormalize = "normalize"
	StepLoad      = "load"
)

// Function variables used as test seams.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}
	loadFn = storage.Load
)

// Options drives one run.
type Options struct {
	Config config.Config
	Source datasource.Source

	// Insert loads the records; otherwise the run stops after normalizing.
	Insert bool
	// KeepExisting appends instead of replacing the table.
	KeepExisting bool

	Logger zerolog.Logger
	// Now stamps the batch; time.Now when nil.
	Now func() time.Time
}

// Summary reports what a run did.
type Summary struct {
	Artifact  fetch.Artifact
	Parse     parser.Stats
	Normalize normalize.Stats
	Records   []registry.Record

	// Batch and Load are zero unless the run inserted.
	Batch registry.Batch
	Load  storage.LoadResult
	Table string

	Durations map[string]time.Duration
}

// Inserted is the number of records written to the table.
func (s Summary) Inserted() int64 { return s.Load.Inserted }

// Run executes the pipeline.
func Run(ctx context.Context, opts Options) (Summary, error) {
	cfg := opts.Config
	log := logging.Component(opts.Logger, "ingest")
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	job := cfg.Metrics.Job
	sum := Summary{Table: cfg.Storage.Table, Durations: map[string]time.Duration{}}

	step := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		d := time.Since(start)
		sum.Durations[name] = d
		metrics.RecordStep(job, name, err, d)
		if err != nil {
			log.Error().Err(err).Str("step", name).Dur("elapsed", d).Msg("step failed")
			return err
		}
		log.Info().Str("step", name).Dur("elapsed", d).Msg("step done")
		return nil
	}

	// 1) Fetch.
	err := step(StepFetch, func() error {
		f := fetch.Fetcher{
			Source:  opts.Source,
			RawPath: cfg.RawPath(),
			Entry:   cfg.Source.Entry,
			Logger:  log,
		}
		var err error
		sum.Artifact, err = f.Fetch(ctx)
		return err
	})
	if err != nil {
		return sum, err
	}

	// 2) Parse + quarantine.
	var rows [][]string
	err = step(StepParse, func() error {
		p, err := parser.New(parser.Options{
			ExpectedFields: cfg.Parser.ExpectedFields,
			Delimiter:      cfg.Parser.DelimiterByte(),
			Encoding:       cfg.Parser.Encoding,
			Logger:         log,
		})
		if err != nil {
			return err
		}
		res, err := p.ParseFile(ctx, sum.Artifact.Path)
		if err != nil {
			return err
		}
		if err := parser.WriteQuarantine(cfg.QuarantinePath(), res.Quarantine); err != nil {
			return err
		}
		rows, sum.Parse = res.Rows, res.Stats
		metrics.RecordParse(job, res.Stats)
		return nil
	})
	if err != nil {
		return sum, err
	}

	// 3) Normalize + snapshot.
	err = step(StepNormalize, func() error {
		res := normalize.Normalizer{Logger: log}.Normalize(rows)
		if err := normalize.WriteSnapshot(cfg.SnapshotPath(), res.Records); err != nil {
			return err
		}
		sum.Records, sum.Normalize = res.Records, res.Stats
		metrics.RecordNormalize(job, res.Stats)
		return nil
	})
	if err != nil {
		return sum, err
	}

	log.Info().
		Str("raw", humanize.Comma(int64(sum.Parse.Lines))).
		Bool("header_skipped", sum.Normalize.HeaderSkipped).
		Int("repaired", sum.Parse.Repaired).
		Int("quarantined", sum.Parse.Quarantined).
		Int("dropped_no_key", sum.Normalize.DroppedNoKey).
		Str("records", humanize.Comma(int64(len(sum.Records)))).
		Msg("records ready")

	if !opts.Insert {
		return sum, nil
	}

	// 4) Load.
	mode := registry.ModeReplace
	if opts.KeepExisting {
		mode = registry.ModeAppend
	}
	if len(sum.Records) == 0 {
		if mode == registry.ModeReplace {
			return sum, ErrEmptyBatch
		}
		log.Warn().Msg("no records to append")
		return sum, nil
	}

	err = step(StepLoad, func() error {
		repo, err := newRepositoryFn(ctx, storage.Config{
			Kind:   cfg.Storage.Kind,
			DSN:    cfg.Storage.DSN,
			Table:  cfg.Storage.Table,
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("%w: open storage: %w", storage.ErrLoad, err)
		}
		defer repo.Close()

		if cfg.Storage.AutoCreate {
			if err := repo.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("%w: %w", storage.ErrLoad, err)
			}
		}

		sum.Batch = registry.NewBatch(mode, now(), sum.Artifact.Fingerprint)
		sum.Load, err = loadFn(ctx, repo, sum.Batch, sum.Records, storage.LoadOptions{
			ChunkSize: cfg.Storage.ChunkSize,
			Job:       job,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		metrics.RecordLoad(job, mode.String(), sum.Load.Deleted, sum.Load.Inserted)
		return nil
	})
	return sum, err
}
