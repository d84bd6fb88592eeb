package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/engagement-score/internal/auth"
	"github.com/example/engagement-score/internal/azureface"
	"github.com/example/engagement-score/internal/config"
	"github.com/example/engagement-score/internal/handlers"
	"github.com/example/engagement-score/internal/health"
	"github.com/example/engagement-score/internal/logging"
	"github.com/example/engagement-score/internal/middleware"
	"github.com/example/engagement-score/internal/repository"
	"github.com/example/engagement-score/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo usecase.ScoreRepository
	if cfg.DatabaseDSN != "" {
		scoreRepo := repository.NewScoreRepository(initDatabase(ctx, cfg.DatabaseDSN, logger), logger)
		if err := scoreRepo.AutoMigrate(ctx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		repo = scoreRepo
	} else {
		logger.Info("DATABASE_DSN not set, score history and metrics disabled")
	}

	var cache usecase.Cache
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		cache = usecase.NewRedisCache(initRedis(redisCtx, cfg.RedisAddr, logger))
		redisCancel()
	}

	detector, err := azureface.New(azureface.Options{
		Endpoint:         cfg.FaceAPI.Endpoint,
		SubscriptionKey:  cfg.FaceAPI.SubscriptionKey,
		DetectionModel:   cfg.FaceAPI.DetectionModel,
		RecognitionModel: cfg.FaceAPI.RecognitionModel,
		ReturnLandmarks:  cfg.FaceAPI.ReturnLandmarks,
		MaxImageBytes:    cfg.MaxImageBytes,
		Timeout:          cfg.FaceAPI.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("invalid face API configuration", zap.Error(err))
	}

	uc := usecase.NewEngagementUseCase(detector, cfg.FaceAPI.Attributes, repo, cache, logger, usecase.WithResultTTL(cfg.ResultTTL))

	r := newRouter(cfg, uc, logger)

	if cfg.GRPCHealthAddr != "" {
		listener, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			logger.Fatal("failed to listen for gRPC health", zap.Error(err))
		}
		healthServer := health.NewServer(logger)
		go func() {
			if err := healthServer.Serve(listener); err != nil {
				logger.Error("gRPC health server failed", zap.Error(err))
			}
		}()
		defer healthServer.Stop()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("engagement score API listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newRouter installs request IDs and access logging on every route, and auth
// and rate limiting on the engagement routes when configured.
func newRouter(cfg *config.Config, svc handlers.Service, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(logger))

	var protect []gin.HandlerFunc
	if cfg.JWTSecret != "" {
		protect = append(protect, auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience))
	}
	if cfg.RateLimitRPS > 0 {
		protect = append(protect, middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	}
	handlers.RegisterRoutes(r, svc, logger, cfg.MaxImageBytes, protect...)
	return r
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
