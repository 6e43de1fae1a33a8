package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reviewflow/internal/bootstrap"
	"reviewflow/internal/bootstrap/logging"
	"reviewflow/internal/errs"
	"reviewflow/internal/usecase/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the GitHub webhook receiver and the read API",
	RunE: withIngest(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.Server.Addr()
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Requests outlive the signal so Shutdown can drain them.
		requestCtx := context.WithoutCancel(ctx)
		server := &http.Server{
			Addr: addr,
			Handler: newHTTPHandler(svc, httpHandlerConfig{
				WebhookPath: app.Config.Webhook.Path,
			}),
			ReadHeaderTimeout: app.Config.Server.ReadTimeout,
			ReadTimeout:       app.Config.Server.ReadTimeout,
			WriteTimeout:      app.Config.Server.WriteTimeout,
			BaseContext:       func(net.Listener) context.Context { return requestCtx },
		}

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.ListenAndServe()
		}()

		logging.Info(
			ctx,
			"webhook server started",
			slog.String("addr", addr),
			slog.String("webhook_path", app.Config.Webhook.Path),
		)

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "webhook server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve webhook")
			}
			return nil
		case <-ctx.Done():
		}

		logging.Info(ctx, "shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(requestCtx, app.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown webhook server")
		}
		logging.Info(ctx, "webhook server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to :<server.port>)")
}
