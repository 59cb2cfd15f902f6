package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"storefinder/internal/adapters/events"
	web "storefinder/internal/adapters/http"
	"storefinder/internal/adapters/http/perf"
	"storefinder/internal/adapters/lock"
	"storefinder/internal/adapters/storage"
	outboxStore "storefinder/internal/adapters/storage/outbox"
	storeRepo "storefinder/internal/adapters/storage/store"
	"storefinder/internal/application/orchestrators"
	"storefinder/internal/config"
	"storefinder/internal/domain/outbox"
	"storefinder/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The outbox always lives in SQLite, whichever store driver is selected.
	db, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.MigrateDB(ctx, db); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery).WithMetrics(metrics)

	var repo storeRepo.Repository
	switch cfg.DBDriver {
	case config.DriverMongo:
		mongoRepo, closeMongo, err := openMongoStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeMongo()
		if err := mongoRepo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate mongo: %w", err)
		}
		repo = mongoRepo
	case config.DriverMemory:
		repo = storeRepo.NewMemoryStore()
	default:
		repo = storeRepo.NewSQLiteStore(timedDB)
	}

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
	}
	var locker orchestrators.Locker = lock.NewLocalLocker()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, lock.DefaultLockTTL, lock.DefaultRetryWait)
	}

	broker, closeBroker, err := openBroker(cfg, rdb)
	if err != nil {
		return err
	}
	defer closeBroker()

	outboxEntries := outboxStore.NewSQLiteStore(timedDB)
	var sink orchestrators.EventSink = events.DirectPublisher{Broker: broker}
	if cfg.EventsOutbox {
		sink = events.OutboxPublisher{Store: outboxEntries}
	}
	processor := orchestrators.NewOutboxProcessor(outboxEntries, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeRoleUpdate: orchestrators.RoleUpdateExecutor{Sender: broker},
	}, orchestrators.OutboxConfig{BatchSize: cfg.OutboxBatchSize, Metrics: metrics})

	handler := web.NewMux(ctx, web.Deps{
		Stores:      repo,
		Events:      sink,
		Locker:      locker,
		Outbox:      outboxEntries,
		Processor:   processor,
		Metrics:     metrics,
		Collector:   collector,
		Health:      db.PingContext,
		RateLimit:   cfg.RateLimit,
		SlowRequest: cfg.SlowRequest,
	})
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server_starting",
			"version", version, "addr", cfg.ServerAddr, "env", cfg.Env,
			"driver", cfg.DBDriver, "transport", cfg.EventsTransport,
			"outbox", cfg.EventsOutbox, "schema", storage.LatestSchemaVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("server_stopping")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.EventsOutbox {
		g.Go(func() error {
			return processor.Run(gctx, cfg.OutboxInterval)
		})
	}
	return g.Wait()
}

// openMongoStore connects to cfg.MongoURI; the returned func disconnects.
func openMongoStore(ctx context.Context, cfg config.Config) (*storeRepo.MongoStore, func(), error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			slog.Warn("mongo_disconnect_failed", "error", err)
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		disconnect()
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return storeRepo.NewMongoStore(client.Database(cfg.MongoDatabase)), disconnect, nil
}

// openBroker builds the configured transport; the returned func releases it.
func openBroker(cfg config.Config, rdb *goredis.Client) (events.Broker, func(), error) {
	switch cfg.EventsTransport {
	case config.TransportAMQP:
		b, err := events.NewAMQPBroker(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				slog.Warn("amqp_close_failed", "error", err)
			}
		}, nil
	case config.TransportRedis:
		return events.NewRedisStreamBroker(rdb, ""), func() {}, nil
	default:
		return events.LogBroker{}, func() {}, nil
	}
}
