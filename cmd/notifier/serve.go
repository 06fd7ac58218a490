package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/pair-notify/internal/handler"
	"github.com/kursadbilgin/pair-notify/internal/queue"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"github.com/kursadbilgin/pair-notify/internal/service"
	"github.com/kursadbilgin/pair-notify/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, dispatcher, retry sweeper and daily countdown scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(serve)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	rabbit, err := queue.NewRabbitMQ(ctx, rt.cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, rt.cfg.WorkerConcurrency, rt.logger)

	records, err := service.NewRecordService(rt.notifications, publisher, rt.logger)
	if err != nil {
		return err
	}

	dispatcher, err := service.NewDispatcher(rt.notifications, rt.sender, consumer, rt.cfg.WorkerConcurrency, rt.logger)
	if err != nil {
		return err
	}
	dispatcher.SetMetrics(rt.metrics)

	sweeper, err := rt.newSweeper(rt.cfg.SweepLimit)
	if err != nil {
		return err
	}

	countdown, err := rt.newCountdownService()
	if err != nil {
		return err
	}

	hour, minute, err := rt.cfg.CountdownClock()
	if err != nil {
		return err
	}
	scheduler, err := service.NewDailyScheduler("countdown", func(ctx context.Context) error {
		_, err := countdown.RunDaily(ctx)
		return err
	}, hour, minute, rt.location, rt.logger)
	if err != nil {
		return err
	}

	app, err := newHTTPApp(rt, rabbit, records)
	if err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Start(groupCtx) })
	g.Go(func() error { return sweeper.Start(groupCtx) })
	g.Go(func() error { return scheduler.Start(groupCtx) })
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", rt.cfg.APIPort)
		rt.logger.Info("pair-notify api started", zap.String("addr", addr))
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-groupCtx.Done()
		rt.logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}

func newHTTPApp(rt *runtime, rabbit *queue.RabbitMQ, records *service.RecordService) (*fiber.App, error) {
	sqlDB, err := rt.db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(rt.logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(rt.metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(rt.metrics.Handler()))
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rt.rdb),
		handler.ReadinessCheck{Name: "rabbitmq", Ping: rabbit.Ping},
	)
	if err := handler.RegisterNotificationRoutes(app, records); err != nil {
		return nil, err
	}
	if err := handler.RegisterTokenRoutes(app, repository.NewGormTokenRepo(rt.db)); err != nil {
		return nil, err
	}

	return app, nil
}
