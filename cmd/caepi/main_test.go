package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

func feedLine(fields ...string) string {
	for len(fields) < registry.FieldCount {
		fields = append(fields, "")
	}
	return strings.Join(fields, "|")
}

func writeArchive(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("tgg_export_caepi.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "caepi.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_InsertThenLookupAndSearch(t *testing.T) {
	dir := t.TempDir()
	future := time.Now().AddDate(1, 0, 0).Format("02/01/2006")
	archive := writeArchive(t, dir,
		feedLine("NR_CA", "DATA_VALIDADE"),
		feedLine("123", future, "VALIDO", "", "", "ACME", "", "LUVA", "LUVA DE RASPA", "3M"),
		feedLine("456", "01/01/2001", "VENCIDO", "", "", "ACME", "", "BOTA", "", "Bracol"),
	)
	common := []string{"--work-dir", dir, "--storage", "sqlite", "--dsn", filepath.Join(dir, "caepi.db")}

	out, err := execute(t, append([]string{"--insert", "--source", "file", "--archive", archive}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted 2 records into ca_registry")

	out, err = execute(t, append([]string{"lookup", "123"}, common...)...)
	require.NoError(t, err)
	var fill map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &fill))
	assert.Equal(t, true, fill["found"])
	assert.Equal(t, "LUVA", fill["equipment_name"])

	_, err = execute(t, append([]string{"lookup", "456"}, common...)...)
	assert.EqualError(t, err, "certificate expired")

	out, err = execute(t, append([]string{"search", "luva", "--brand", "3m"}, common...)...)
	require.NoError(t, err)
	var page struct {
		Items []registry.Record `json:"items"`
		Total int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "123", page.Items[0].CertificateNumber)
}

func TestRoot_PreviewWithoutInsert(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir,
		feedLine("NR_CA"),
		feedLine("1", "31/12/2030", "", "", "", "ACME", "", "LUVA", "", "3M"),
		feedLine("2", "", "", "", "", "ACME", "", "BOTA", "", "Bracol"),
	)
	dbPath := filepath.Join(dir, "caepi.db")

	out, err := execute(t, "--source", "file", "--archive", archive, "--work-dir", dir, "--dsn", dbPath, "--preview", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2030-12-31")
	assert.NotContains(t, out, "BOTA")
	assert.Contains(t, out, "1 of 2 records")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRoot_KeepExistingWithoutInsertPreviews(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir,
		feedLine("NR_CA"),
		feedLine("1", "31/12/2030", "", "", "", "ACME", "", "LUVA", "", "3M"),
	)
	dbPath := filepath.Join(dir, "caepi.db")

	out, err := execute(t, "--keep-existing", "--source", "file", "--archive", archive, "--work-dir", dir, "--dsn", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 records")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRoot_InvalidConfig(t *testing.T) {
	_, err := execute(t, "--source", "gopher", "--work-dir", t.TempDir())
	assert.EqualError(t, err, "configuration is invalid")
}

func TestBuildSource(t *testing.T) {
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	src, err := buildSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ftp://ftp.mtps.gov.br:21/portal/fiscalizacao/seguranca-e-saude-no-trabalho/caepi/tgg_export_caepi.zip",
		datasource.Describe(src))

	cfg.Source.Kind, cfg.Source.URL = config.SourceHTTP, "https://mirror.example/caepi.zip"
	src, err = buildSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/caepi.zip", datasource.Describe(src))

	cfg.Source.Kind, cfg.Source.Archive = config.SourceFile, "/data/caepi.zip"
	src, err = buildSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, "file:///data/caepi.zip", datasource.Describe(src))

	cfg.Source.Kind = "smb"
	_, err = buildSource(cfg)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	var cfg config.Config
	applyGlobal(&cfg, globalFlags{workDir: "/w", storage: "postgres", dsn: "postgres://x", table: "public.ca", verbose: true})
	ingestFlags{source: "http", url: "https://m/x.zip", preview: 0}.apply(&cfg)

	assert.Equal(t, "/w", cfg.WorkDir)
	assert.Equal(t, "postgres", cfg.Storage.Kind)
	assert.Equal(t, "postgres://x", cfg.Storage.DSN)
	assert.Equal(t, "public.ca", cfg.Storage.Table)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http", cfg.Source.Kind)
	assert.Equal(t, "https://m/x.zip", cfg.Source.URL)
	assert.Equal(t, 0, cfg.PreviewRows)
}

func TestPrintPreview(t *testing.T) {
	d := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	recs := []registry.Record{
		{CertificateNumber: "10", ExpiryDate: &d, EquipmentName: "LUVA", Brand: "3M", IssuerName: "ACME"},
		{CertificateNumber: "20", EquipmentName: "BOTA"},
	}
	var buf bytes.Buffer
	printPreview(&buf, recs, 10)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "CA"))
	assert.Contains(t, lines[1], "2027-03-01")
	assert.Contains(t, lines[2], "-")
	assert.Equal(t, "2 of 2 records", lines[3])
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "caepi version dev")
}
