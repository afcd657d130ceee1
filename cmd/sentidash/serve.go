package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/sentidash/api"
	"github.com/seenimoa/sentidash/internal/auth"
	"github.com/seenimoa/sentidash/internal/watchlist"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newApp(ctx)
		defer a.Close()

		store, err := watchlist.Open(cfg.Watchlist.DBPath)
		if err != nil {
			return fmt.Errorf("open watchlist: %w", err)
		}
		defer store.Close()

		srv := api.NewServer(api.Deps{
			Config:   cfg,
			Service:  a.svc,
			Store:    store,
			Verifier: auth.NewFromConfig(cfg),
			LLM:      a.router,
			Logger:   logger,
			Version:  version,
		})
		logger.Info("starting sentidash", "version", version, "addr", cfg.API.Addr())
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}
