package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/transport/httpapi"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := app.Config.RequireJWTSecret(); err != nil {
			return err
		}
		if version, err := app.SchemaVersion(ctx); err != nil {
			return errs.Wrap(err, "read schema version")
		} else if version == "" {
			logging.Warn(ctx, "database schema not initialized; run init-db first")
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		server := httpapi.NewServer(app.Tracker, httpapi.Options{
			RateLimit:      app.Config.HTTP.RateLimit,
			RateBurst:      app.Config.HTTP.RateBurst,
			RequestTimeout: app.Config.HTTP.RequestTimeout,
			Metrics:        app.Metrics.Handler(),
			Observer:       app.Metrics,
		})
		httpServer := httpapi.NewHTTPServer(addr, server.Routes())

		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			serveErr <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errs.Wrap(err, "listen and serve")
		case <-runCtx.Done():
		}

		logging.Info(ctx, "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default http.addr from config)")
}
