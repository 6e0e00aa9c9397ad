package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/catalog-fulfillment/internal/adapter/handler"
	"github.com/rl1809/catalog-fulfillment/internal/adapter/messaging"
	"github.com/rl1809/catalog-fulfillment/internal/adapter/storage"
	"github.com/rl1809/catalog-fulfillment/internal/config"
	"github.com/rl1809/catalog-fulfillment/internal/core/service"
	"github.com/rl1809/catalog-fulfillment/internal/pkg/logging"
	"github.com/rl1809/catalog-fulfillment/internal/pkg/telemetry"
	"github.com/rl1809/catalog-fulfillment/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.MustNewLogger(config.ServiceName, cfg.Env)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OtelEndpoint, config.ServiceName, config.ServiceVersion)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	// Initialize database
	dialect, err := storage.ParseDialect(cfg.DBDriver)
	if err != nil {
		logger.Fatal("invalid database driver", zap.Error(err))
	}
	dsn := cfg.DBDSN
	if dialect == storage.DialectSQLite {
		dsn = storage.SQLiteDSN(cfg.DBDSN)
	}
	db, err := storage.Open(ctx, dialect, dsn, storage.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	store := storage.NewSQLStore(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}
	logger.Info("connected to database", zap.String("driver", string(dialect)))

	checks := map[string]handler.HealthCheck{"database": store.Ping}
	opts := []service.Option{
		service.WithEvents(cfg.QueueSize),
		service.WithLogger(logger),
		service.WithMetrics(metrics),
		service.WithTxRetries(cfg.TxRetries),
	}

	// Initialize Redis
	var (
		rdb   *redis.Client
		cache port.CacheRepository
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		redisAdapter := storage.NewRedisAdapter(rdb)
		cache = redisAdapter
		opts = append(opts, service.WithCache(redisAdapter))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	// Initialize publisher
	var publisher port.EventPublisher = messaging.NopPublisher{}
	if cfg.KafkaBroker != "" {
		publisher = messaging.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		logger.Info("publishing stock events", zap.String("broker", cfg.KafkaBroker), zap.String("topic", cfg.KafkaTopic))
	}

	orderService := service.NewOrderService(store, opts...)

	// Start notification workers
	notifier := service.NewNotifier(cache, publisher, logger, metrics)
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			notifier.Run(id, orderService.Events())
		}(i)
	}
	logger.Info("started notification workers", zap.Int("count", cfg.WorkerCount))

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLoggingInterceptor(logger),
		handler.UnaryTimeoutInterceptor(cfg.OrderTimeout),
	))
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHTTPHandler(checks, logger), reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	// GracefulStop waits for in-flight orders, so closing the queue after it is safe
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	orderService.Close()
	wg.Wait()
	logger.Info("workers stopped")

	if err := publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("shutdown tracing", zap.Error(err))
	}
	logger.Info("connections closed")
}
