// Package config defines the configuration of the CA registry pipeline.
//
// Values come from the process environment (prefix CAEPI_), optionally seeded
// from a .env file, and are then overridden by command-line flags in cmd/caepi.
// Nested sections map to underscore-delimited names, e.g. CAEPI_SOURCE_KIND or
// CAEPI_STORAGE_DSN.
package config

import (
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "CAEPI"

// Source kinds.
const (
	SourceFTP  = "ftp"
	SourceHTTP = "http"
	SourceFile = "file"
)

// Config is the full pipeline configuration.
type Config struct {
	// WorkDir holds the raw file, the normalized snapshot and the quarantine file.
	WorkDir string `envconfig:"WORK_DIR" default:"."`

	// PreviewRows is the number of records printed when not inserting.
	PreviewRows int `envconfig:"PREVIEW_ROWS" default:"10"`

	Source  SourceConfig  `envconfig:"SOURCE"`
	Parser  ParserConfig  `envconfig:"PARSER"`
	Storage StorageConfig `envconfig:"STORAGE"`
	Metrics MetricsConfig `envconfig:"METRICS"`
	Log     LogConfig     `envconfig:"LOG"`
	API     APIConfig     `envconfig:"API"`
}

// SourceConfig locates the published archive.
type SourceConfig struct {
	// Kind is one of "ftp", "http" or "file".
	Kind string `envconfig:"KIND" default:"ftp"`

	FTPAddr string `envconfig:"FTP_ADDR" default:"ftp.mtps.gov.br:21"`
	FTPDir  string `envconfig:"FTP_DIR" default:"portal/fiscalizacao/seguranca-e-saude-no-trabalho/caepi"`

	// Timeout bounds the FTP dial and each HTTP attempt.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"60s"`

	// Archive is the remote archive file name (ftp) or local path (file).
	Archive string `envconfig:"ARCHIVE" default:"tgg_export_caepi.zip"`

	// URL is the archive URL for the http kind.
	URL string `envconfig:"URL"`

	// Entry names the archive member to extract. Empty picks the first .txt.
	Entry string `envconfig:"ENTRY"`

	// RawFile is the name of the extracted text file inside WorkDir.
	RawFile string `envconfig:"RAW_FILE" default:"tgg_export_caepi.txt"`
}

// ParserConfig controls row parsing and the transform artifacts.
type ParserConfig struct {
	ExpectedFields int    `envconfig:"EXPECTED_FIELDS" default:"19"`
	Delimiter      string `envconfig:"DELIMITER" default:"|"`

	// Encoding of the raw file: "latin1", "cp1252", "utf8" or "auto".
	Encoding string `envconfig:"ENCODING" default:"latin1"`

	QuarantineFile string `envconfig:"QUARANTINE_FILE" default:"linhas_problematicas.txt"`
	SnapshotFile   string `envconfig:"SNAPSHOT_FILE" default:"caepi_normalizado.csv"`
}

// StorageConfig selects the registry backend.
type StorageConfig struct {
	// Kind is one of "postgres", "sqlite", "mssql" or "mysql".
	Kind       string `envconfig:"KIND" default:"sqlite"`
	DSN        string `envconfig:"DSN" default:"caepi.db"`
	Table      string `envconfig:"TABLE" default:"ca_registry"`
	ChunkSize  int    `envconfig:"CHUNK_SIZE" default:"2000"`
	AutoCreate bool   `envconfig:"AUTO_CREATE" default:"true"`
}

// MetricsConfig selects an optional metrics backend.
type MetricsConfig struct {
	// Backend is one of "none", "pushgateway" or "datadog".
	Backend        string   `envconfig:"BACKEND" default:"none"`
	Job            string   `envconfig:"JOB" default:"caepi_ingest"`
	PushgatewayURL string   `envconfig:"PUSHGATEWAY_URL" default:"http://localhost:9091"`
	DatadogAddr    string   `envconfig:"DATADOG_ADDR" default:"127.0.0.1:8125"`
	DatadogTags    []string `envconfig:"DATADOG_TAGS"`
}

// LogConfig controls logger verbosity and output format.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"`
}

// APIConfig configures the lookup HTTP server.
type APIConfig struct {
	Addr           string   `envconfig:"ADDR" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// CacheSize bounds the by-number lookup cache; negative disables it.
	CacheSize int           `envconfig:"CACHE_SIZE" default:"1024"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

// LoadFromEnv reads the configuration from the environment only.
func LoadFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RawPath is the location of the extracted raw text file.
func (c Config) RawPath() string { return filepath.Join(c.WorkDir, c.Source.RawFile) }

// QuarantinePath is the location of the quarantined-lines audit file.
func (c Config) QuarantinePath() string { return filepath.Join(c.WorkDir, c.Parser.QuarantineFile) }

// SnapshotPath is the location of the normalized CSV checkpoint.
func (c Config) SnapshotPath() string { return filepath.Join(c.WorkDir, c.Parser.SnapshotFile) }

// DelimiterByte returns the configured single-byte delimiter, or '|'.
func (p ParserConfig) DelimiterByte() byte {
	if p.Delimiter == "" {
		return '|'
	}
	return p.Delimiter[0]
}
