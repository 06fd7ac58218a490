package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/config"
	"github.com/kursadbilgin/pair-notify/internal/infra/postgresql"
	"github.com/kursadbilgin/pair-notify/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/pair-notify/internal/infra/redis"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/provider"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"github.com/kursadbilgin/pair-notify/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime holds the dependencies shared by every command.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	location *time.Location

	db  *gorm.DB
	rdb *redis.Client

	notifications *repository.GormNotificationRepo
	relationships *repository.GormRelationshipRepo
	sender        *service.PushSender
}

// withRuntime loads config, connects storage and runs fn until SIGINT or SIGTERM.
func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		return err
	}
	defer logger.Sync() //nolint:errcheck

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer rt.close()

	if err := fn(ctx, rt); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *runtime, err error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.NewMetrics(),
		location: location,
	}
	defer func() {
		if err != nil {
			rt.close()
		}
	}()

	rt.db, err = postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(rt.db); err != nil {
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	rt.rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	limiter, err := infraredis.NewRedisRateLimiter(rt.rdb, cfg.RateLimitPerSec)
	if err != nil {
		return nil, err
	}

	pushProvider, err := provider.NewPushGatewayProvider(cfg.PushGatewayURL, cfg.PushGatewayKey)
	if err != nil {
		return nil, err
	}

	rt.notifications = repository.NewGormNotificationRepo(rt.db)
	rt.relationships = repository.NewGormRelationshipRepo(rt.db)

	rt.sender, err = service.NewPushSender(
		repository.NewGormTokenRepo(rt.db),
		pushProvider,
		limiter,
		cfg.SendTimeout(),
		logger,
	)
	if err != nil {
		return nil, err
	}
	rt.sender.SetMetrics(rt.metrics)

	return rt, nil
}

func (rt *runtime) newSweeper(limit int) (*service.RetrySweeper, error) {
	sweeper, err := service.NewRetrySweeper(rt.notifications, rt.sender, rt.cfg.SweepInterval(), limit, rt.logger)
	if err != nil {
		return nil, err
	}
	sweeper.SetMetrics(rt.metrics)
	return sweeper, nil
}

func (rt *runtime) newCountdownService() (*service.CountdownService, error) {
	guard, err := infraredis.NewDailyGuard(rt.rdb, 0)
	if err != nil {
		return nil, err
	}
	return service.NewCountdownService(rt.relationships, rt.sender, guard, rt.location, rt.logger)
}

func (rt *runtime) close() {
	if rt.rdb != nil {
		if err := rt.rdb.Close(); err != nil {
			rt.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if err := postgresql.Close(rt.db); err != nil {
		rt.logger.Warn("failed to close postgres pool", zap.Error(err))
	}
}
