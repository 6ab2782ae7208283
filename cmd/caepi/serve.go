package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/api"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/config"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/lookup"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry lookup API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*g, func(c *config.Config) {
				if addr != "" {
					c.API.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			repo, err := newRepositoryFn(cmd.Context(), storageConfig(cfg, log))
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := lookup.New(repo, lookupOptions(cfg, log))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(api.Config{Addr: cfg.API.Addr, AllowedOrigins: cfg.API.AllowedOrigins}, svc, log)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8080)")
	return cmd
}
