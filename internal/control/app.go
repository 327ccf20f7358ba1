// Package control wires configuration into a running client, dead letter
// store and health server.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/esguard/internal/core/config"
	"github.com/vietddude/esguard/internal/core/worker"
	"github.com/vietddude/esguard/internal/health"
	"github.com/vietddude/esguard/internal/infra/es"
	"github.com/vietddude/esguard/internal/infra/es/retry"
	"github.com/vietddude/esguard/internal/infra/es/transport"
	redisclient "github.com/vietddude/esguard/internal/infra/redis"
	"github.com/vietddude/esguard/internal/infra/storage"
	"github.com/vietddude/esguard/internal/infra/storage/memory"
	"github.com/vietddude/esguard/internal/infra/storage/postgres"
)

// App owns every long-lived component built from an AppConfig.
type App struct {
	cfg          *config.AppConfig
	transport    transport.Transport
	exec         *retry.Executor
	client       *es.Client
	deadLetters  storage.DeadLetterRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	healthMon    *health.Monitor
	healthServer *health.Server
	replayer     *worker.Replayer
	log          *slog.Logger
}

// New builds the application. The cluster is not contacted; dead letter
// backends are connected and migrated.
func New(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	app := &App{cfg: cfg, log: log}

	tr, err := newTransport(ctx, cfg.Cluster, log)
	if err != nil {
		return nil, err
	}
	app.transport = tr

	// One throttle per process: the overload warning is shared by every chain.
	app.exec = retry.NewExecutor(cfg.Retry.Policy(),
		retry.WithLogger(log),
		retry.WithThrottle(retry.NewWarnThrottle(cfg.Retry.WarnInterval)),
	)

	if err := app.initDeadLetters(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []es.ClientOption{es.WithReader(cfg.Reader), es.WithLogger(log)}
	if app.deadLetters != nil {
		opts = append(opts, es.WithDeadLetter(app.deadLetters))
	}
	app.client = es.NewClient(tr, app.exec, opts...)

	var backlog health.Backlog
	if app.deadLetters != nil {
		backlog = app.deadLetters
	}
	app.healthMon = health.NewMonitor(tr, backlog, cfg.DeadLetter.Backend)
	app.healthServer = health.NewServer(app.healthMon, cfg.Server.Port)

	if app.deadLetters != nil && cfg.DeadLetter.ReplayInterval > 0 {
		app.replayer = worker.NewReplayer(app.client, app.deadLetters,
			cfg.DeadLetter.ReplayInterval, cfg.DeadLetter.ReplayLimit, log)
	}

	return app, nil
}

func newTransport(ctx context.Context, cfg config.ClusterConfig, log *slog.Logger) (*transport.Elastic, error) {
	opts := transport.Options{
		URLs:     cfg.URLs,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
		Gzip:     cfg.Gzip,
		Logger:   log,
	}

	if cfg.AWS.Enabled {
		rt, err := transport.NewSigV4RoundTripper(ctx, cfg.AWS.Region, cfg.AWS.Service, transport.NewHTTPTransport())
		if err != nil {
			return nil, fmt.Errorf("failed to init request signing: %w", err)
		}
		opts.RoundTripper = rt
		log.Info("Signing cluster requests with SigV4", "region", cfg.AWS.Region, "service", cfg.AWS.Service)
	}

	tr, err := transport.NewElastic(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to init transport: %w", err)
	}
	return tr, nil
}

func (a *App) initDeadLetters(ctx context.Context) error {
	switch a.cfg.DeadLetter.Backend {
	case config.BackendMemory:
		a.deadLetters = memory.NewDeadLetterRepo()
		a.log.Info("Using memory dead letter store")

	case config.BackendRedis:
		rc, err := redisclient.NewClient(ctx, a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = rc
		a.deadLetters = redisclient.NewDeadLetterRepo(rc, a.cfg.DeadLetter.TTL)
		a.log.Info("Using Redis dead letter store")

	case config.BackendPostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.deadLetters = postgres.NewDeadLetterRepo(db)
		a.log.Info("Using PostgreSQL dead letter store")

	default:
		a.log.Debug("Dead lettering disabled")
	}
	return nil
}

// Client returns the resilient cluster client.
func (a *App) Client() *es.Client {
	return a.client
}

// DeadLetters returns the dead letter store, or nil when disabled.
func (a *App) DeadLetters() storage.DeadLetterRepository {
	return a.deadLetters
}

// Health returns the health monitor.
func (a *App) Health() *health.Monitor {
	return a.healthMon
}

// HealthHandler returns the health and metrics endpoints.
func (a *App) HealthHandler() http.Handler {
	return a.healthServer.Handler()
}

// Start starts the health server, background collectors and the scheduled
// dead letter replay.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	if a.replayer != nil {
		go a.replayer.Start(ctx)
		a.log.Info("Dead letter replay scheduled", "interval", a.cfg.DeadLetter.ReplayInterval)
	}

	a.log.Info("Health server listening", "port", a.cfg.Server.Port)
	return nil
}

// Stop stops the health server and releases every connection.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping esguard...")
	err := a.healthServer.Stop(ctx)
	return errors.Join(err, a.Close())
}

// Close releases connections without touching the health server.
func (a *App) Close() error {
	var errs []error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
			errs = append(errs, err)
		}
	}
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	return errors.Join(errs...)
}
