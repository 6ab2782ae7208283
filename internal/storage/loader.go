package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/metrics"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

// CopyFn abstracts a backend's bulk insert. It returns the number of rows
// inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches splits rows into chunks of batchSize and calls copyFn for each.
// It returns the rows reported by copyFn, the number of successful chunks and
// the first error. Progress is logged per chunk.
func LoadBatches(
	ctx context.Context,
	logger zerolog.Logger,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (total, batches int64, err error) {
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, 0, fmt.Errorf("copyFn must not be nil")
	}

	start := time.Now()
	last := start
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, batches, err
		}
		hi := min(lo+batchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			logger.Error().Err(err).Int64("batch", batches+1).Int64("total", total).Msg("copy failed")
			return total, batches, err
		}
		batches++

		now := time.Now()
		rps := 0.0
		if d := now.Sub(last); d > 0 {
			rps = float64(n) / d.Seconds()
		}
		logger.Debug().
			Int64("batch", batches).
			Int64("inserted", n).
			Int64("total_inserted", total).
			Float64("rps", rps).
			Dur("elapsed", now.Sub(start)).
			Msg("batch flushed")
		last = now
	}
	return total, batches, nil
}

// LoadOptions tunes Load.
type LoadOptions struct {
	ChunkSize int    // DefaultChunkSize when <= 0
	Job       string // metrics job label
	Logger    zerolog.Logger
}

// LoadResult summarizes a committed load.
type LoadResult struct {
	Deleted  int64
	Inserted int64
	Chunks   int64
}

// Load writes records as one batch inside a single transaction: take the load
// lock, clear the table in replace mode, insert in chunks, commit. Every record
// is stamped with batch.StartedAt first. Any failure rolls the transaction back
// and returns an error wrapping ErrLoad, leaving the table untouched.
func Load(ctx context.Context, repo Repository, batch registry.Batch, recs []registry.Record, opts LoadOptions) (LoadResult, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	logger := opts.Logger.With().
		Str("table", repo.Table()).
		Str("batch", batch.ID.String()).
		Str("mode", batch.Mode.String()).
		Logger()

	batch.Stamp(recs)
	rows := make([][]any, len(recs))
	for i := range recs {
		rows[i] = recs[i].Values()
	}

	var res LoadResult
	tx, err := repo.Begin(ctx)
	if err != nil {
		return LoadResult{}, fmt.Errorf("%w: begin: %w", ErrLoad, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Error().Err(rbErr).Msg("rollback failed")
		}
	}()

	if err := tx.Lock(ctx); err != nil {
		return LoadResult{}, fmt.Errorf("%w: lock: %w", ErrLoad, err)
	}

	if batch.Mode == registry.ModeReplace {
		if res.Deleted, err = tx.Clear(ctx); err != nil {
			return LoadResult{}, fmt.Errorf("%w: clear: %w", ErrLoad, err)
		}
		logger.Info().Int64("deleted", res.Deleted).Msg("existing rows cleared")
	}

	inserted, chunks, err := LoadBatches(ctx, logger, registry.Columns, rows, opts.ChunkSize, tx.Copy)
	if err != nil {
		return LoadResult{}, fmt.Errorf("%w: insert: %w", ErrLoad, err)
	}
	if inserted != int64(len(rows)) {
		return LoadResult{}, fmt.Errorf("%w: inserted %d of %d rows", ErrLoad, inserted, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return LoadResult{}, fmt.Errorf("%w: commit: %w", ErrLoad, err)
	}
	committed = true

	res.Inserted, res.Chunks = inserted, chunks
	metrics.RecordBatches(opts.Job, chunks)
	logger.Info().Int64("inserted", inserted).Int64("chunks", chunks).Msg("load committed")
	return res, nil
}
