package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/packhouse-erp/packhouse-erp/internal/app"
	"github.com/packhouse-erp/packhouse-erp/internal/calendar"
	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/observability"
	"github.com/packhouse-erp/packhouse-erp/internal/platform/cache"
	"github.com/packhouse-erp/packhouse-erp/internal/platform/db"
	"github.com/packhouse-erp/packhouse-erp/internal/standing"
	"github.com/packhouse-erp/packhouse-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, calendar cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	notifyRepo := notify.NewRepository(pool)
	notifier := notify.NewService(notifyRepo, logger)

	calendarRepo := calendar.NewRepository(pool)
	calendarCache := calendar.NewCache(redisClient, cfg.CalendarCacheTTL)
	calendarService := calendar.NewService(calendarRepo, calendarRepo, calendarCache, logger, cfg.CalendarHorizonDays)

	productsService := products.NewService(products.NewRepository(pool))
	customersService := customers.NewService(customers.NewRepository(pool))

	standingRepo := standing.NewRepository(pool)
	standingService := standing.NewService(standingRepo, calendarService,
		customersService, productsService, notifier, metrics, logger)

	standingJob := jobs.NewStandingOrdersJob(standingService, logger)
	housekeepingJob := jobs.NewHousekeepingJob(notifier, logger)

	processTask, err := jobs.NewStandingProcessTask(time.Time{}, false)
	if err != nil {
		logger.Error("build standing process task", slog.Any("error", err))
		os.Exit(1)
	}
	housekeepingTask, err := jobs.NewHousekeepingTask(cfg.NotificationRetention)
	if err != nil {
		logger.Error("build housekeeping task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStandingProcess, Handler: standingJob.Handle},
			{Type: jobs.TaskHousekeeping, Handler: housekeepingJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.StandingOrdersCron, Task: processTask},
			{Spec: cfg.HousekeepingCron, Task: housekeepingTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	health := &http.Server{
		Addr: cfg.WorkerAddr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting worker", slog.String("queue", jobs.QueueDefault))
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting worker health endpoint", slog.String("addr", cfg.WorkerAddr))
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return health.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
