// Command caepi downloads the published CA (Certificado de Aprovação) export,
// repairs and normalizes it, and loads it into the shared registry table. The
// lookup, search and serve subcommands read that table.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// register all backends with the storage factory.
	_ "github.com/Cemag-pcp/projeto-epi-sub000/internal/storage/all"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand and override the environment.
type globalFlags struct {
	envFile string
	workDir string
	storage string
	dsn     string
	table   string
	verbose bool
}

func rootCmd() *cobra.Command {
	var (
		g    globalFlags
		opts ingestFlags
	)

	cmd := &cobra.Command{
		Use:   "caepi",
		Short: "Ingest the CA registry export",
		Long: `Fetch the published CAEPI archive, repair and normalize its rows and,
with --insert, replace the registry table with the new batch.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables (prefix CAEPI_)
  4. Command line flags`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, g, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	pf.StringVar(&g.workDir, "work-dir", "", "Directory for the raw file, snapshot and quarantine file")
	pf.StringVar(&g.storage, "storage", "", "Storage backend: postgres, sqlite, mssql, mysql")
	pf.StringVar(&g.dsn, "dsn", "", "Storage DSN")
	pf.StringVar(&g.table, "table", "", "Registry table name")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logs")

	f := cmd.Flags()
	f.BoolVar(&opts.insert, "insert", false, "Load the records into the registry table")
	f.BoolVar(&opts.keepExisting, "keep-existing", false, "Append instead of replacing the table; ignored without --insert")
	f.StringVar(&opts.source, "source", "", "Archive source: ftp, http, file")
	f.StringVar(&opts.archive, "archive", "", "Archive file name (ftp) or path (file)")
	f.StringVar(&opts.url, "url", "", "Archive URL (http source)")
	f.IntVar(&opts.preview, "preview", -1, "Records to print when not inserting")

	cmd.AddCommand(lookupCmd(&g))
	cmd.AddCommand(searchCmd(&g))
	cmd.AddCommand(serveCmd(&g))
	cmd.AddCommand(versionCmd())

	return cmd
}
