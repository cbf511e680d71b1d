package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"movies-etl/internal/app"
	elastic "movies-etl/internal/elastic_search"
	"movies-etl/internal/etl"
	"movies-etl/internal/handlers"
	"movies-etl/internal/kafka"
	"movies-etl/internal/middleware"
	"movies-etl/internal/migrate"
	"movies-etl/internal/orchestrator"
	"movies-etl/internal/retry"
	"movies-etl/internal/source"
	"movies-etl/internal/state"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"
)

const (
	cfgPath         = "config/config.yaml"
	shutdownTimeout = 5 * time.Second
)

func main() {
	// парсим конфиг
	c, err := app.NewConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error to parsing config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	zapLogger, err := newLogger(c.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error to init logger: %v\n", err)
		os.Exit(1)
	}
	logger := zapLogger.Sugar()

	if err := c.Validate(); err != nil {
		logger.Errorw("Invalid configuration", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, c, logger)
	stop()

	code := 0
	if err != nil {
		logger.Errorw("ETL stopped with error", zap.Error(err))
		code = 1
	} else {
		logger.Infow("ETL stopped")
	}

	_ = zapLogger.Sync()
	os.Exit(code)
}

func newLogger(logFile string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	return cfg.Build()
}

func run(ctx context.Context, c *app.Config, logger *zap.SugaredLogger) error {
	// init db
	db, err := sql.Open("postgres", c.CfgDB.DSN())
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(c.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		logger.Infof("Failed to get response to ping: %v", err)
	}

	sqliteDB, err := source.Open(c.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer sqliteDB.Close()

	metrics := middleware.NewMetrics()

	policy := retry.NewPolicy(c.CfgRetry.Start, c.CfgRetry.Factor, c.CfgRetry.Border, logger)
	policy.OnRetry = metrics.ObserveRetry

	store, closeStore, err := newStateStore(c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// init elasticsearch
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{c.CfgES.Address()},
	})
	if err != nil {
		return fmt.Errorf("create elasticsearch client: %w", err)
	}
	indexer := elastic.NewService(esClient, logger, c.CfgES.Index, c.BatchSize)

	var producer kafka.EventProducer = kafka.NopProducer{}
	if len(c.CfgKafka.Brokers) > 0 {
		producer = kafka.NewProducer(c.CfgKafka.Brokers, c.CfgKafka.Topic, logger)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warnw("Failed to close kafka producer", zap.Error(err))
		}
	}()

	// bootstrap migration
	reader := source.NewSQLiteReader(sqliteDB, logger, c.BatchSize, migrate.SourceTables())
	transformer := migrate.NewTransformer(logger, metrics)
	migrator := migrate.NewMigrator(
		db,
		reader,
		transformer,
		migrate.NewBulkLoader(logger, metrics, migrate.DestinationSchema),
		migrate.NewConsistencyChecker(reader, transformer, logger, migrate.DestinationSchema, c.BatchSize),
		logger,
	)

	// sync pipeline
	pipeline := etl.NewPipeline(
		etl.NewPostgresExtractor(db, logger),
		etl.NewTransformer(logger),
		etl.NewElasticLoader(indexer, producer, policy, metrics, logger),
		store,
		policy,
		metrics,
		logger,
		c.BatchSize,
	)

	orch := orchestrator.New(migrator, pipeline, store, policy, logger, c.SleepInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	g.Go(func() error {
		metrics.CollectRuntime(gctx)
		return nil
	})

	if c.OpsAddr != "" {
		srv := &http.Server{
			Addr:         c.OpsAddr,
			Handler:      handlers.NewRouter(logger, orch, metrics),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		g.Go(func() error {
			logger.Infow("starting ops server",
				"type", "START",
				"addr", c.OpsAddr,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func newStateStore(c *app.Config, logger *zap.SugaredLogger) (state.Store, func(), error) {
	switch c.CfgState.Backend {
	case app.StateBackendRedis:
		// init redis
		redisClient := redis.NewClient(&redis.Options{
			Addr:     c.CfgRedis.Addr,
			Password: c.CfgRedis.Password,
			DB:       c.CfgRedis.DB,
		})
		closeFn := func() {
			if err := redisClient.Close(); err != nil {
				logger.Warnw("Failed to close redis client", zap.Error(err))
			}
		}

		return state.NewRedisStore(redisClient, logger, ""), closeFn, nil
	default:
		store, err := state.NewFileStore(c.CfgState.File, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open state file: %w", err)
		}

		return store, func() {}, nil
	}
}
