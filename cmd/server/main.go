package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/pizzeria/internal/adapter/handler"
	"github.com/rl1809/pizzeria/internal/adapter/notify"
	"github.com/rl1809/pizzeria/internal/adapter/simulator"
	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/config"
	"github.com/rl1809/pizzeria/internal/core/service"
)

const (
	reconcileInterval = 10 * time.Second
	sweepInterval     = time.Minute
	webhookTimeout    = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	cfg, loaded, err := config.Load(".env")
	logger := newLogger(cfg.Env)
	defer logger.Sync()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if loaded {
		logger.Info("loaded environment overrides from .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the order database
	db, err := sql.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	sqlAdapter, err := storage.NewSQLAdapter(db, cfg.DBDriver)
	if err != nil {
		logger.Fatal("unsupported database", zap.Error(err))
	}
	if err := sqlAdapter.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	logger.Info("connected to database", zap.String("driver", cfg.DBDriver))

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	redisAdapter := storage.NewRedisAdapter(rdb, logger)

	// Initialize services
	kitchen := simulator.New(simulator.Timings{
		Preparing: cfg.SimPreparingAfter,
		Dispatch:  cfg.SimDispatchAfter,
		Complete:  cfg.SimCompleteAfter,
	}, logger.Named("simulator"))

	orderService := service.NewOrderService(sqlAdapter, redisAdapter, redisAdapter, logger, cfg.QueueSize).
		WithStatusFeed(kitchen).
		WithChangeFeed(redisAdapter)
	if err := orderService.SyncOrderNumbers(ctx); err != nil {
		logger.Fatal("failed to sync order numbers", zap.Error(err))
	}

	menuService := service.NewMenuService(sqlAdapter, redisAdapter, redisAdapter, cfg.MenuCacheTTL, logger)
	board := service.NewAdminBoard(sqlAdapter, orderService, redisAdapter, cfg.AdminPollInterval, logger.Named("admin"))
	board.OnNewOrders = func(added int) {
		logger.Info("admin board: new orders", zap.Int("added", added))
	}
	sessions := service.NewSessionStore(menuService, cfg.SessionTTL, logger)

	// Start notification workers
	notifier := notify.Multi{notify.NewLog(logger.Named("orders"))}
	if cfg.DiscordWebhookURL != "" {
		notifier = append(notifier, notify.NewDiscord(cfg.DiscordWebhookURL, webhookTimeout, logger))
	}
	var workers sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			orderService.DispatchNotifications(context.Background(), id, notifier)
		}(i)
	}
	logger.Info("started notification workers", zap.Int("count", cfg.WorkerCount))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		orderService.ConsumeFeed(gctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				orderService.Reconcile(gctx)
			}
		}
	})
	g.Go(func() error {
		board.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := menuService.Watch(gctx); err != nil {
			logger.Warn("menu change feed unavailable", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		sessions.Run(gctx, sweepInterval)
		return nil
	})

	// gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterOrderTrackingServer(grpcServer, handler.NewGRPCHandler(orderService, board, cfg.AdminToken, logger))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	// HTTP server
	httpHandler := handler.NewHTTPHandler(sessions, orderService, menuService, board, cfg.AdminToken, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		logger.Info("HTTP server stopped")
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("shutting down...")

	kitchen.Stop()

	// Close the queue and let workers drain it
	orderService.Close()
	workers.Wait()
	logger.Info("workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
