package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource/file"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource/ftpds"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource/httpds"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/logging"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/metrics"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/metrics/datadog"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/metrics/prompush"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// Function variables used as test seams.
var (
	loadConfigFn = config.Load

	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}
)

// loadConfig loads .env and the environment, applies the global flag
// overrides and validates the result. Warnings are logged; errors abort.
func loadConfig(g globalFlags, override func(*config.Config)) (config.Config, zerolog.Logger, error) {
	cfg, err := loadConfigFn(g.envFile)
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	applyGlobal(&cfg, g)
	if override != nil {
		override(&cfg)
	}

	log := newLogger(os.Stderr, cfg)
	issues := cfg.Validate()
	for _, iss := range issues {
		ev := log.Warn()
		if iss.Severity == config.SeverityError {
			ev = log.Error()
		}
		ev.Str("path", iss.Path).Msg(iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Config{}, log, fmt.Errorf("configuration is invalid")
	}
	return cfg, log, nil
}

func applyGlobal(cfg *config.Config, g globalFlags) {
	if g.workDir != "" {
		cfg.WorkDir = g.workDir
	}
	if g.storage != "" {
		cfg.Storage.Kind = g.storage
	}
	if g.dsn != "" {
		cfg.Storage.DSN = g.dsn
	}
	if g.table != "" {
		cfg.Storage.Table = g.table
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
}

func newLogger(w io.Writer, cfg config.Config) zerolog.Logger {
	return logging.New(w, cfg.Log.Level, cfg.Log.Format)
}

// buildSource returns the archive source selected by cfg.Source.Kind.
func buildSource(cfg config.Config) (datasource.Source, error) {
	s := cfg.Source
	switch s.Kind {
	case config.SourceFTP:
		return ftpds.NewSource(ftpds.Config{
			Addr:    s.FTPAddr,
			Dir:     s.FTPDir,
			File:    path.Base(s.Archive),
			Timeout: s.Timeout,
		}), nil
	case config.SourceHTTP:
		client := httpds.NewClient(httpds.Config{
			Timeout:   s.Timeout,
			UserAgent: "caepi/" + version,
		})
		return httpds.NewSource(client, s.URL), nil
	case config.SourceFile:
		return file.NewLocal(s.Archive), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Kind)
	}
}

// setupMetrics installs the configured metrics backend and returns a flush
// function to defer. Backend init failures leave metrics disabled.
func setupMetrics(cfg config.Config, log zerolog.Logger) func() {
	m := cfg.Metrics
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(m.Backend) {
	case "pushgateway":
		b, err = prompush.NewBackend(m.Job, m.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			GlobalTags: append([]string{"job:" + m.Job}, m.DatadogTags...),
		})
	default:
		log.Debug().Str("backend", m.Backend).Msg("metrics disabled")
		return func() {}
	}
	if err != nil {
		log.Warn().Err(err).Str("backend", m.Backend).Msg("metrics backend init failed; using nop")
		return func() {}
	}

	metrics.SetBackend(b)
	log.Debug().Str("backend", m.Backend).Str("job", m.Job).Msg("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics flush failed")
		}
	}
}

func storageConfig(cfg config.Config, log zerolog.Logger) storage.Config {
	return storage.Config{
		Kind:   cfg.Storage.Kind,
		DSN:    cfg.Storage.DSN,
		Table:  cfg.Storage.Table,
		Logger: log,
	}
}
