package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agrisense/maizeguard/internal/ingest"
	"github.com/agrisense/maizeguard/pkg/customvision"
	"github.com/agrisense/maizeguard/pkg/nasa"
	"github.com/agrisense/maizeguard/pkg/openmeteo"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		a := &api{
			svc: ingest.New(st),
			classifier: customvision.NewClient(
				cfg.Vision.Endpoint,
				cfg.Vision.Key,
				cfg.Vision.ProjectID,
				cfg.Vision.Iteration,
			),
			weather: openmeteo.NewClient(
				openmeteo.WithBaseURL(cfg.Weather.BaseURL),
				openmeteo.WithRateLimit(cfg.Weather.RateLimitRPS, cfg.Weather.RateLimitBurst),
			),
			satellite: nasa.NewClient(cfg.NASA.Key),
			upload:    cfg.Upload,
			cors:      cfg.Server.CORSOrigins,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: a.router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
