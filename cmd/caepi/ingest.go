package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/ingest"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

type ingestFlags struct {
	insert       bool
	keepExisting bool
	source       string
	archive      string
	url          string
	preview      int
}

func (f ingestFlags) apply(cfg *config.Config) {
	if f.source != "" {
		cfg.Source.Kind = f.source
	}
	if f.archive != "" {
		cfg.Source.Archive = f.archive
	}
	if f.url != "" {
		cfg.Source.URL = f.url
	}
	if f.preview >= 0 {
		cfg.PreviewRows = f.preview
	}
}

var runPipelineFn = ingest.Run

func runIngest(cmd *cobra.Command, g globalFlags, f ingestFlags) error {
	cfg, log, err := loadConfig(g, f.apply)
	if err != nil {
		return err
	}
	if f.keepExisting && !f.insert {
		log.Warn().Msg("--keep-existing has no effect without --insert")
	}
	flush := setupMetrics(cfg, log)
	defer flush()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	sum, err := runPipelineFn(ctx, ingest.Options{
		Config:       cfg,
		Source:       src,
		Insert:       f.insert,
		KeepExisting: f.keepExisting,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("records", humanize.Comma(int64(len(sum.Records)))).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond)).
		Msg("pipeline completed")

	out := cmd.OutOrStdout()
	if !f.insert {
		printPreview(out, sum.Records, cfg.PreviewRows)
		return nil
	}
	fmt.Fprintf(out, "Inserted %d records into %s\n", sum.Inserted(), sum.Table)
	return nil
}

// printPreview prints the first n records as an aligned table.
func printPreview(w io.Writer, recs []registry.Record, n int) {
	n = min(n, len(recs))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CA\tVALIDADE\tEQUIPAMENTO\tMARCA\tFABRICANTE")
	for _, r := range recs[:n] {
		expiry := "-"
		if r.ExpiryDate != nil {
			expiry = r.ExpiryDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.CertificateNumber, expiry, r.EquipmentName, r.Brand, r.IssuerName)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d of %d records\n", n, len(recs))
}
