package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"reviewflow/internal/bootstrap/config"
	"reviewflow/internal/bootstrap/logging"
	"reviewflow/internal/errs"
	queueinfra "reviewflow/internal/infrastructure/queue"
	"reviewflow/internal/ports"
)

// CloseFunc releases the broker connection behind a publisher.
type CloseFunc func() error

// Open connects to the configured broker and returns a publisher for it.
func Open(ctx context.Context, cfg config.QueueConfig) (ports.JobPublisher, CloseFunc, error) {
	if ctx == nil {
		return nil, nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.queue"))

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "redis":
		return openRedis(logCtx, cfg)
	case "nats":
		return openNATS(logCtx, cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}

func openRedis(ctx context.Context, cfg config.QueueConfig) (ports.JobPublisher, CloseFunc, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, errs.Wrap(err, "parse redis url")
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)

	// The broker may come up after us; publish failures surface per delivery.
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout(cfg))
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logging.Warn(ctx, "redis ping failed", slog.String("addr", opts.Addr), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Info(ctx, "redis connected", slog.String("addr", opts.Addr), slog.String("queue", cfg.Name))
	}

	return queueinfra.NewRedisPublisher(client, cfg.Name), client.Close, nil
}

func openNATS(ctx context.Context, cfg config.QueueConfig) (ports.JobPublisher, CloseFunc, error) {
	nc, err := nats.Connect(
		cfg.NATSURL,
		nats.Name("reviewflow"),
		nats.Timeout(dialTimeout(cfg)),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, errs.Wrap(err, "connect nats")
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, errs.Wrap(err, "open jetstream")
	}

	publisher, err := queueinfra.NewNATSPublisher(ctx, js, cfg.NATSStream, cfg.Name)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	logging.Info(
		ctx,
		"nats connected",
		slog.String("url", nc.ConnectedUrlRedacted()),
		slog.String("stream", cfg.NATSStream),
		slog.String("subject", cfg.Name),
	)
	return publisher, nc.Drain, nil
}

func dialTimeout(cfg config.QueueConfig) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}
	return 5 * time.Second
}
