package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"reviewflow/internal/bootstrap/config"
	"reviewflow/internal/bootstrap/database"
	"reviewflow/internal/bootstrap/logging"
	"reviewflow/internal/bootstrap/queue"
	"reviewflow/internal/infrastructure/persistence/repository"
	"reviewflow/internal/infrastructure/persistence/uow"
	"reviewflow/internal/ports"
	"reviewflow/internal/usecase/ingest"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(providePublisher),
	fx.Provide(
		fx.Annotate(
			repository.NewReviewRepository,
			fx.As(new(ports.ReviewRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideIngestService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			logging.Info(logCtx, "database connection closed")
			return sqlDB.Close()
		},
	})

	return db, nil
}

func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.JobPublisher, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	publisher, closeFn, err := queue.Open(logCtx, cfg.Queue)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logging.Info(logCtx, "queue connection closed", slog.String("driver", cfg.Queue.Driver))
			return closeFn()
		},
	})

	return publisher, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideIngestService(
	cfg config.Config,
	repo ports.ReviewRepository,
	unitOfWork ports.UnitOfWork,
	publisher ports.JobPublisher,
) (*ingest.Service, error) {
	return ingest.NewService(repo, unitOfWork, publisher, ingest.Options{
		WebhookSecret: cfg.Webhook.Secret,
	})
}
