package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/core/services"
	"github.com/SscSPs/procure_to_pay/internal/platform/audit"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/SscSPs/procure_to_pay/internal/platform/lock"
	"github.com/SscSPs/procure_to_pay/internal/platform/notify"
	"github.com/SscSPs/procure_to_pay/internal/repositories/database/pgsql"
	"github.com/SscSPs/procure_to_pay/internal/repositories/memory"
	"github.com/SscSPs/procure_to_pay/pkg/database"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// application is the wired process: configuration, adapters and the service container.
type application struct {
	cfg         *config.Config
	logger      *slog.Logger
	repos       portsrepo.RepositoryProvider
	deps        services.Dependencies
	services    *portssvc.ServiceContainer
	redisClient *redis.Client

	closers []func()
}

// newApplication connects the configured backends. Redis and NATS are optional;
// without them locks stay in-process and notifications go to the log.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	for _, connect := range []func() error{
		func() error { return app.connectStorage(ctx) },
		func() error { return app.connectRedis(ctx) },
		app.connectNATS,
	} {
		if err := connect(); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.deps.Audit = audit.NewRecorder(app.repos.AuditRepo)
	app.deps.Clock = time.Now
	app.services = services.NewServiceContainer(cfg, app.repos, app.deps)
	return app, nil
}

func (a *application) connectStorage(ctx context.Context) error {
	if a.cfg.StorageDriver == config.StorageDriverMemory {
		a.repos = memory.NewRepositoryProvider(memory.NewStore())
		a.logger.Info("Using in-memory storage.")
		return nil
	}

	dbPool, err := database.NewPgxPool(ctx, a.cfg.DatabaseURL, a.cfg.EnableDBCheck)
	if err != nil {
		return fmt.Errorf("failed to initialize database pool: %w", err)
	}
	a.closers = append(a.closers, func() { database.ClosePgxPool(dbPool) })
	a.repos = pgsql.NewRepositoryProvider(dbPool)
	a.logger.Info("Database connection pool established.")
	return nil
}

func (a *application) connectRedis(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		a.deps.Locker = lock.NewLocalLocker()
		a.logger.Warn("REDIS_URL not set, budget line locks are local to this process.")
		return nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, func() {
		if cerr := client.Close(); cerr != nil {
			a.logger.Error("Error closing redis client", slog.String("error", cerr.Error()))
		}
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	a.redisClient = client
	a.deps.Locker = lock.NewRedisLocker(client, lock.DefaultOptions())
	a.logger.Info("Redis connected, using distributed budget line locks.")
	return nil
}

func (a *application) connectNATS() error {
	if a.cfg.NATSURL == "" {
		a.deps.Notifier = notify.LogNotifier{}
		return nil
	}

	nc, err := nats.Connect(a.cfg.NATSURL,
		nats.Name("p2p_backend"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				a.logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			a.logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.closers = append(a.closers, func() {
		if derr := nc.Drain(); derr != nil && !errors.Is(derr, nats.ErrConnectionClosed) {
			a.logger.Error("Error draining NATS connection", slog.String("error", derr.Error()))
		}
	})

	a.deps.Notifier = notify.NewNATSNotifier(nc, notify.DefaultBreakerSettings())
	a.logger.Info("NATS connected, notifications are published.")
	return nil
}

// Close releases the adapters in reverse order of connection.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadApplication reads the configuration and wires the application.
func loadApplication(ctx context.Context, logger *slog.Logger) (*application, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApplication(ctx, cfg, logger)
}
