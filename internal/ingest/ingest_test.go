package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource/file"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/fetch"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/sqlite"
)

// line builds a feed line, padding to 19 fields.
func line(fields ...string) string {
	for len(fields) < registry.FieldCount {
		fields = append(fields, "x")
	}
	return strings.Join(fields, "|")
}

func header() string {
	labels := make([]string, registry.FieldCount)
	for i := range labels {
		labels[i] = "COL" + string(rune('A'+i))
	}
	return strings.Join(labels, "|")
}

func writeArchive(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "tgg_export_caepi.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("tgg_export_caepi.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func testConfig(dir string) config.Config {
	return config.Config{
		WorkDir: dir,
		Source:  config.SourceConfig{RawFile: "raw.txt"},
		Parser: config.ParserConfig{
			ExpectedFields: registry.FieldCount,
			Delimiter:      "|",
			Encoding:       "latin1",
			QuarantineFile: "linhas_problematicas.txt",
			SnapshotFile:   "caepi_normalizado.csv",
		},
		Storage: config.StorageConfig{
			Kind:       sqlite.Kind,
			DSN:        filepath.Join(dir, "caepi.db"),
			Table:      registry.DefaultTable,
			ChunkSize:  2,
			AutoCreate: true,
		},
		Metrics: config.MetricsConfig{Job: "test"},
	}
}

func run(t *testing.T, cfg config.Config, archive string, insert, keep bool) (Summary, error) {
	t.Helper()
	return Run(context.Background(), Options{
		Config:       cfg,
		Source:       file.NewLocal(archive),
		Insert:       insert,
		KeepExisting: keep,
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC) },
	})
}

func storedNumbers(t *testing.T, cfg config.Config) []string {
	t.Helper()
	repo, err := sqlite.Open(context.Background(), storage.Config{DSN: cfg.Storage.DSN, Table: cfg.Storage.Table})
	require.NoError(t, err)
	defer repo.Close()

	rows, err := repo.DB().Query(`SELECT certificate_number FROM ca_registry ORDER BY certificate_number`)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		out = append(out, n)
	}
	require.NoError(t, rows.Err())
	return out
}

func sampleFeed() []string {
	return []string{
		header(),
		line("123", "31/12/2025", "VALIDO", "P1", "00.000.000/0001-00", "ACME", "Nacional", "LUVA", "LUVA DE RASPA", "3M"),
		// stray pipe after a space inside the description
		line("456", "2027-01-15", "VALIDO", "P2", "1", "ACME", "Nacional", "BOTA", "BOTA |CANO LONGO", "Bracol"),
		// 25 fields, nothing to repair
		strings.Repeat("z|", 24) + "z",
		line("", "01/01/2030", "VALIDO"),
		"",
		line("555", "31/31/2025", "VALIDO", "P5", "2", "CAL\xc7ADOS SA"),
	}
}

func TestRun_PreviewDoesNotTouchStorage(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	archive := writeArchive(t, dir, sampleFeed()...)

	sum, err := run(t, cfg, archive, false, false)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Parse.Repaired)
	assert.Equal(t, 1, sum.Parse.Quarantined)
	assert.Equal(t, 1, sum.Normalize.DroppedNoKey)
	require.Len(t, sum.Records, 3)
	assert.Equal(t, "BOTA |CANO LONGO", sum.Records[1].EquipmentDescription)
	assert.Nil(t, sum.Records[2].ExpiryDate)
	assert.Equal(t, "CALÇADOS SA", sum.Records[2].IssuerName)
	assert.Zero(t, sum.Inserted())

	_, err = os.Stat(cfg.Storage.DSN)
	assert.True(t, os.IsNotExist(err))

	q, err := os.ReadFile(cfg.QuarantinePath())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("z|", 24)+"z\n", string(q))

	snap, err := os.ReadFile(cfg.SnapshotPath())
	require.NoError(t, err)
	assert.Contains(t, string(snap), "123,2025-12-31,")
	for _, step := range []string{StepFetch, StepParse, StepNormalize} {
		assert.Contains(t, sum.Durations, step)
	}
}

func TestRun_InsertReplacesThenAppends(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	first := writeArchive(t, dir, sampleFeed()...)
	sum, err := run(t, cfg, first, true, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.Inserted())
	assert.EqualValues(t, 2, sum.Load.Chunks)
	assert.Equal(t, registry.ModeReplace, sum.Batch.Mode)
	assert.Equal(t, sum.Artifact.Fingerprint, sum.Batch.SourceFingerprint)
	assert.Equal(t, []string{"123", "456", "555"}, storedNumbers(t, cfg))

	second := writeArchive(t, dir, header(), line("999", "01/01/2031"))
	sum, err = run(t, cfg, second, true, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.Load.Deleted)
	assert.Equal(t, []string{"999"}, storedNumbers(t, cfg))

	third := writeArchive(t, dir, header(), line("999", "01/01/2032"), line("1000", ""))
	sum, err = run(t, cfg, third, true, true)
	require.NoError(t, err)
	assert.Equal(t, registry.ModeAppend, sum.Batch.Mode)
	assert.Zero(t, sum.Load.Deleted)
	assert.Equal(t, []string{"1000", "999", "999"}, storedNumbers(t, cfg))
}

func TestRun_EmptyReplaceRefused(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	archive := writeArchive(t, dir, header(), line("", "01/01/2030"))

	_, err := run(t, cfg, archive, true, false)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = run(t, cfg, archive, true, true)
	assert.NoError(t, err)
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	_, err := run(t, cfg, filepath.Join(dir, "missing.zip"), true, false)
	assert.ErrorIs(t, err, fetch.ErrFetch)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_LoadFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	archive := writeArchive(t, dir, sampleFeed()...)

	orig := loadFn
	loadFn = func(context.Context, storage.Repository, registry.Batch, []registry.Record, storage.LoadOptions) (storage.LoadResult, error) {
		return storage.LoadResult{}, errors.Join(storage.ErrLoad, errors.New("disk full"))
	}
	t.Cleanup(func() { loadFn = orig })

	_, err := run(t, cfg, archive, true, false)
	assert.ErrorIs(t, err, storage.ErrLoad)
}

func TestRun_StorageOpenFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	archive := writeArchive(t, dir, sampleFeed()...)

	orig := newRepositoryFn
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { newRepositoryFn = orig })

	_, err := run(t, cfg, archive, true, false)
	assert.ErrorIs(t, err, storage.ErrLoad)
	assert.Contains(t, err.Error(), "connection refused")
}
