package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, SourceFTP, cfg.Source.Kind)
	assert.Equal(t, "ftp.mtps.gov.br:21", cfg.Source.FTPAddr)
	assert.Equal(t, "tgg_export_caepi.zip", cfg.Source.Archive)
	assert.Equal(t, 60*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 19, cfg.Parser.ExpectedFields)
	assert.Equal(t, byte('|'), cfg.Parser.DelimiterByte())
	assert.Equal(t, 2000, cfg.Storage.ChunkSize)
	assert.Equal(t, []string{"*"}, cfg.API.AllowedOrigins)
	assert.Empty(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("CAEPI_STORAGE_KIND", "postgres")
	t.Setenv("CAEPI_STORAGE_DSN", "postgres://u@localhost/db")
	t.Setenv("CAEPI_STORAGE_CHUNK_SIZE", "500")
	t.Setenv("CAEPI_SOURCE_KIND", "http")
	t.Setenv("CAEPI_SOURCE_URL", "https://mirror.example/caepi.zip")
	t.Setenv("CAEPI_WORK_DIR", "/tmp/caepi")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Kind)
	assert.Equal(t, 500, cfg.Storage.ChunkSize)
	assert.Equal(t, SourceHTTP, cfg.Source.Kind)
	assert.Equal(t, filepath.Join("/tmp/caepi", "tgg_export_caepi.txt"), cfg.RawPath())
	assert.Equal(t, filepath.Join("/tmp/caepi", "linhas_problematicas.txt"), cfg.QuarantinePath())
	assert.Equal(t, filepath.Join("/tmp/caepi", "caepi_normalizado.csv"), cfg.SnapshotPath())
	assert.Empty(t, cfg.Validate())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CAEPI_STORAGE_TABLE=from_file\nCAEPI_PREVIEW_ROWS=3\n"), 0o644))
	t.Setenv("CAEPI_STORAGE_TABLE", "from_env")
	t.Cleanup(func() { os.Unsetenv("CAEPI_PREVIEW_ROWS") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Storage.Table)
	assert.Equal(t, 3, cfg.PreviewRows)
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestValidate_Errors(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	cfg.Source.Kind = "gopher"
	cfg.Parser.Delimiter = "||"
	cfg.Parser.Encoding = "ebcdic"
	cfg.Storage.DSN = ""
	cfg.Storage.ChunkSize = 0
	cfg.Storage.Table = "ca; DROP TABLE x"

	issues := cfg.Validate()
	assert.True(t, HasErrors(issues))
	assert.True(t, hasIssue(issues, SeverityError, "source.kind", "unknown source kind"))
	assert.True(t, hasIssue(issues, SeverityError, "parser.delimiter", "single ASCII character"))
	assert.True(t, hasIssue(issues, SeverityError, "parser.encoding", "unsupported"))
	assert.True(t, hasIssue(issues, SeverityError, "storage.dsn", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "storage.chunk_size", "> 0"))
	assert.True(t, hasIssue(issues, SeverityError, "storage.table", "identifier"))
}

func TestValidate_Warnings(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	cfg.Parser.ExpectedFields = 20
	cfg.Metrics.Backend = "statsd"

	issues := cfg.Validate()
	assert.False(t, HasErrors(issues))
	assert.True(t, hasIssue(issues, SeverityWarning, "parser.expected_fields", "19 columns"))
	assert.True(t, hasIssue(issues, SeverityWarning, "metrics.backend", "statsd"))
}

func TestValidate_HTTPSourceNeedsURL(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	cfg.Source.Kind = SourceHTTP
	cfg.Source.URL = "ftp://nope"

	assert.True(t, hasIssue(cfg.Validate(), SeverityError, "source.url", "http(s) URL"))
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "storage.dsn", Message: "dsn must not be empty"}
	assert.Equal(t, "error at storage.dsn: dsn must not be empty", iss.Error())
}
