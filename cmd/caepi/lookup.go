package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/lookup"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

// openLookup opens the configured repository and a lookup service over it.
// The caller closes the repository.
func openLookup(cmd *cobra.Command, g globalFlags) (*lookup.Service, storage.Repository, error) {
	cfg, log, err := loadConfig(g, nil)
	if err != nil {
		return nil, nil, err
	}
	repo, err := newRepositoryFn(cmd.Context(), storageConfig(cfg, log))
	if err != nil {
		return nil, nil, err
	}
	svc, err := lookup.New(repo, lookupOptions(cfg, log))
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}
	return svc, repo, nil
}

func lookupOptions(cfg config.Config, log zerolog.Logger) lookup.Options {
	return lookup.Options{CacheSize: cfg.API.CacheSize, CacheTTL: cfg.API.CacheTTL, Logger: log}
}

func lookupCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <number>",
		Short: "Validate a certificate number and print its autofill data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, repo, err := openLookup(cmd, *g)
			if err != nil {
				return err
			}
			defer repo.Close()

			fill, err := svc.Validate(cmd.Context(), args[0], time.Now())
			if err != nil && !errors.Is(err, lookup.ErrCertificateExpired) {
				return err
			}
			if encErr := writeIndented(cmd, fill); encErr != nil {
				return encErr
			}
			if !fill.Found {
				fmt.Fprintln(cmd.ErrOrStderr(), "certificate not found in the registry; enter the data manually")
			}
			return err
		},
	}
}

func searchCmd(g *globalFlags) *cobra.Command {
	var (
		brand    string
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search the registry by number, equipment, description or issuer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, repo, err := openLookup(cmd, *g)
			if err != nil {
				return err
			}
			defer repo.Close()

			q := lookup.Query{Brand: brand, Page: page, PageSize: pageSize}
			if len(args) == 1 {
				q.Text = args[0]
			}
			res, err := svc.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeIndented(cmd, res)
		},
	}
	cmd.Flags().StringVar(&brand, "brand", "", "Case-insensitive brand filter")
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", lookup.DefaultPageSize, "Results per page (max 100)")
	return cmd
}

func writeIndented(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
