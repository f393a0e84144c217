package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flowshare/internal/config"
	"flowshare/internal/hub"
	"flowshare/internal/logger"
	"flowshare/internal/store"
)

const janitorInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "runs the flowshare hub",
	Long: `runs the hub that peers connect to: the websocket coordination endpoint,
			the content store and the HTTP API. Configured through FLOWSHARE_* environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadServer()
		if err != nil {
			cobra.CheckErr(err)
		}

		log := logger.New(config.ParseLevel(cfg.LogLevel))

		st, err := store.NewStore(store.Config{
			DBPath:  cfg.DBPath,
			DataDir: cfg.DataDir,
			Logger:  log,
		})
		if err != nil {
			log.Error("Failed to open content store", "error", err)
			cobra.CheckErr(err)
		}

		srv, err := hub.NewServer(hub.Config{
			Addr:   cfg.Addr,
			Store:  st,
			Logger: log,
		})
		if err != nil {
			log.Error("Failed to start hub", "error", err)
			cobra.CheckErr(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st.StartJanitor(ctx, janitorInterval)

		if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("Hub stopped", "error", err)
			cobra.CheckErr(err)
		}
	},
}
