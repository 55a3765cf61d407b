package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	summaryservice "txengine/contexts/assistant/summary-service"
	summaryazopenai "txengine/contexts/assistant/summary-service/adapters/azopenai"
	summarymemory "txengine/contexts/assistant/summary-service/adapters/memory"
	summarypostgres "txengine/contexts/assistant/summary-service/adapters/postgres"
	summaryports "txengine/contexts/assistant/summary-service/ports"
	transactionservice "txengine/contexts/finance-core/transaction-service"
	"txengine/contexts/finance-core/transaction-service/adapters/broadcast"
	"txengine/contexts/finance-core/transaction-service/adapters/events"
	"txengine/contexts/finance-core/transaction-service/adapters/memory"
	postgresadapter "txengine/contexts/finance-core/transaction-service/adapters/postgres"
	"txengine/contexts/finance-core/transaction-service/adapters/redislock"
	"txengine/contexts/finance-core/transaction-service/application"
	"txengine/contexts/finance-core/transaction-service/application/workers"
	"txengine/internal/platform/config"
	"txengine/internal/platform/db"
	"txengine/internal/platform/httpserver"
	"txengine/internal/platform/messaging"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server          *httpserver.Server
	transactions    transactionservice.Module
	database        *db.Database
	redis           *redis.Client
	publisher       *messaging.AMQPPublisher
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func BuildAPI(cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "api")
	app := &APIApp{
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	app.database = database

	transactionDeps := transactionservice.Dependencies{
		Simulator: application.DelaySimulator{Delay: cfg.ProcessingDelay},
		Logger:    logger,
	}
	var summaryRepo summaryports.Repository
	summaryStore := summarymemory.NewStore()
	if database != nil {
		repo := postgresadapter.NewRepository(database.DB, logger)
		summaries := summarypostgres.NewRepository(database.DB)
		// A local SQLite file has no separate migrate step.
		if database.Driver == config.StoreDriverSQLite {
			if err := migrateAll(context.Background(), repo, summaries); err != nil {
				_ = app.Close()
				return nil, err
			}
		}
		transactionDeps.Repository = repo
		transactionDeps.Clock = postgresadapter.SystemClock{}
		transactionDeps.IDGen = postgresadapter.UUIDGenerator{}
		summaryRepo = summaries
	} else {
		store := memory.NewStore()
		transactionDeps.Repository = store
		transactionDeps.Clock = store
		transactionDeps.IDGen = store
		summaryRepo = summaryStore
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			_ = app.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		app.redis = client
		transactionDeps.Locker = redislock.NewLocker(client, redislock.DefaultOptions(), logger)
	} else {
		transactionDeps.Locker = memory.NewKeyLocker()
	}

	registry := broadcast.NewRegistry(cfg.SubscriberBuffer, logger)
	transactionDeps.Registry = registry
	transactionDeps.Dispatcher = workers.NewDispatcher(logger)
	if cfg.AMQPURL != "" {
		publisher, err := messaging.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.ServiceName, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.publisher = publisher
		transactionDeps.Notifier = events.FanoutNotifier{
			Local:     registry,
			Publisher: publisher,
			Logger:    logger,
		}
	}
	app.transactions = transactionservice.NewModule(transactionDeps)

	summaryDeps := summaryservice.Dependencies{
		Repository:  summaryRepo,
		Clock:       summaryStore,
		IDGenerator: summaryStore,
		Logger:      logger,
	}
	if cfg.SummarizerEnabled() {
		client, err := summaryazopenai.NewClient(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIAPIKey, cfg.AzureOpenAIDeployment, nil)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		summaryDeps.Summarizer = client
	} else {
		logger.Warn("summarizer disabled",
			"event", "bootstrap_summarizer_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	summaries := summaryservice.NewModule(summaryDeps)

	app.server = httpserver.New(app.transactions, summaries, logger, normalizeAddr(cfg.HTTPPort), httpserver.Options{
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		StreamWriteTimeout: cfg.StreamWriteTimeout,
		StreamPingInterval: cfg.StreamPingInterval,
	})
	return app, nil
}

// Run serves until ctx is cancelled or the listener fails, then drains
// background processing and closes every open stream.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Start()
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return a.shutdown()
	})
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *APIApp) shutdown() error {
	timeout := a.shutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Streams stay open across http.Server.Shutdown, so end them first.
	a.transactions.Registry.Close()
	shutdownErr := a.server.Shutdown(ctx)
	if err := a.transactions.Dispatcher.Wait(ctx); err != nil {
		a.logger.Warn("background processing still running at shutdown",
			"event", "bootstrap_dispatcher_drain_timeout",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}
	a.logger.Info("api app stopped",
		"event", "bootstrap_api_stopped",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return shutdownErr
}

func (a *APIApp) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	return errors.Join(errs...)
}

// Migrate creates or updates the SQL schema for the configured driver.
func Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if database == nil {
		return errors.New("migrate requires STORE_DRIVER=postgres or STORE_DRIVER=sqlite")
	}
	defer func() { _ = database.Close() }()

	if err := migrateAll(ctx, postgresadapter.NewRepository(database.DB, logger), summarypostgres.NewRepository(database.DB)); err != nil {
		return err
	}
	logger.Info("schema migrated",
		"event", "bootstrap_schema_migrated",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"driver", database.Driver,
	)
	return nil
}

func migrateAll(ctx context.Context, transactions *postgresadapter.Repository, summaries *summarypostgres.Repository) error {
	if err := transactions.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate transactions: %w", err)
	}
	if err := summaries.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate summaries: %w", err)
	}
	return nil
}

// openDatabase returns nil for the in-memory driver.
func openDatabase(cfg config.Config) (*db.Database, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return db.Connect(cfg.PostgresDSN)
	case config.StoreDriverSQLite:
		return db.ConnectSQLite(cfg.SQLitePath)
	case config.StoreDriverMemory, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8000"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
