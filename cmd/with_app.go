package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewflow/internal/bootstrap"
	"reviewflow/internal/bootstrap/logging"
	"reviewflow/internal/errs"
	"reviewflow/internal/usecase/ingest"
)

const (
	fxStartTimeout = 15 * time.Second
	fxStopTimeout  = 15 * time.Second
)

// withApp starts only the config and database graph.
func withApp(run func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		var app *bootstrap.App
		return runWithFx(cmd, func() error { return run(cmd, app) }, &app)
	}
}

// withIngest additionally connects the queue and builds the ingest service.
func withIngest(run func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		var app *bootstrap.App
		var svc *ingest.Service
		return runWithFx(cmd, func() error { return run(cmd, app, svc) }, &app, &svc)
	}
}

func runWithFx(cmd *cobra.Command, run func() error, targets ...any) error {
	ctx := logging.WithAttrs(
		cmd.Context(),
		slog.String("command", cmd.CommandPath()),
		slog.String("config_file", cfgFile),
	)

	var app *bootstrap.App
	fxApp := fx.New(
		bootstrap.Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return cfgFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(&app),
		fx.Populate(targets...),
	)

	startCtx, cancelStart := context.WithTimeout(ctx, fxStartTimeout)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "start fx application")
	}

	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), fxStopTimeout)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	// Loaded config decides the final log level and format.
	logger := logging.New(cmd.ErrOrStderr(), app.Config.Log.Format, app.Config.Log.Level)
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))

	if err := run(); err != nil {
		return errs.Wrap(err, "run command")
	}
	return nil
}
