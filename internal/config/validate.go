package config

import (
	"fmt"
	"regexp"
	"strings"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the operator but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is the dotted configuration path
// (e.g. "storage.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over c. It never mutates c.
func (c Config) Validate() []Issue {
	var issues []Issue
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateParser(c.Parser)...)
	issues = append(issues, validateStorage(c.Storage)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	if c.PreviewRows < 0 {
		issues = append(issues, Issue{SeverityError, "preview_rows", "must be >= 0"})
	}
	return issues
}

func validateSource(s SourceConfig) []Issue {
	var issues []Issue
	switch s.Kind {
	case SourceFTP:
		if strings.TrimSpace(s.FTPAddr) == "" {
			issues = append(issues, Issue{SeverityError, "source.ftp_addr", "ftp source requires a host:port"})
		}
		if strings.TrimSpace(s.Archive) == "" {
			issues = append(issues, Issue{SeverityError, "source.archive", "ftp source requires an archive file name"})
		}
	case SourceHTTP:
		if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			issues = append(issues, Issue{SeverityError, "source.url", "http source requires an http(s) URL"})
		}
	case SourceFile:
		if strings.TrimSpace(s.Archive) == "" {
			issues = append(issues, Issue{SeverityError, "source.archive", "file source requires an archive path"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q", s.Kind)})
	}
	if strings.TrimSpace(s.RawFile) == "" {
		issues = append(issues, Issue{SeverityError, "source.raw_file", "raw file name must not be empty"})
	}
	return issues
}

func validateParser(p ParserConfig) []Issue {
	var issues []Issue
	if p.ExpectedFields <= 0 {
		issues = append(issues, Issue{SeverityError, "parser.expected_fields", "must be > 0"})
	} else if p.ExpectedFields != 19 {
		issues = append(issues, Issue{SeverityWarning, "parser.expected_fields",
			fmt.Sprintf("the published export has 19 columns; got %d", p.ExpectedFields)})
	}
	if len(p.Delimiter) != 1 {
		issues = append(issues, Issue{SeverityError, "parser.delimiter", "delimiter must be a single ASCII character"})
	} else if p.Delimiter == " " || p.Delimiter == `"` {
		issues = append(issues, Issue{SeverityError, "parser.delimiter", "delimiter cannot be a space or a quote"})
	}
	switch strings.ToLower(p.Encoding) {
	case "latin1", "latin-1", "iso-8859-1", "cp1252", "windows-1252", "utf8", "utf-8", "auto":
	default:
		issues = append(issues, Issue{SeverityError, "parser.encoding", fmt.Sprintf("unsupported encoding %q", p.Encoding)})
	}
	return issues
}

func validateStorage(s StorageConfig) []Issue {
	var issues []Issue
	switch s.Kind {
	case "postgres", "sqlite", "mssql", "mysql":
	case "":
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	default:
		issues = append(issues, Issue{SeverityWarning, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind)})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "dsn must not be empty"})
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.table", "table must not be empty"})
	} else if !tableNameRe.MatchString(s.Table) {
		issues = append(issues, Issue{SeverityError, "storage.table",
			fmt.Sprintf("table %q must be an identifier, optionally schema-qualified", s.Table)})
	}
	if s.ChunkSize <= 0 {
		issues = append(issues, Issue{SeverityError, "storage.chunk_size", "must be > 0"})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "", "none", "pushgateway", "datadog":
		return nil
	default:
		return []Issue{{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)}}
	}
}
