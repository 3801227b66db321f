package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/packhouse-erp/packhouse-erp/internal/app"
	"github.com/packhouse-erp/packhouse-erp/internal/batches"
	"github.com/packhouse-erp/packhouse-erp/internal/calendar"
	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/observability"
	"github.com/packhouse-erp/packhouse-erp/internal/orders"
	"github.com/packhouse-erp/packhouse-erp/internal/platform/cache"
	"github.com/packhouse-erp/packhouse-erp/internal/platform/db"
	"github.com/packhouse-erp/packhouse-erp/internal/standing"
	"github.com/packhouse-erp/packhouse-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)

	batchesRepo := batches.NewRepository(pool)
	batchesService := batches.NewService(batchesRepo, metrics, logger)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, customersService, productsService,
		batchesService, notifier, metrics, logger)

	standingRepo := standing.NewRepository(pool)
	standingService := standing.NewService(standingRepo, calendarService,
		customersService, productsService, notifier, metrics, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	enqueueRun := func(r *http.Request) error {
		_, err := jobClient.EnqueueStandingProcess(r.Context(), time.Now().UTC())
		return err
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		ProductsHandler:     products.NewHandler(logger, productsService),
		CustomersHandler:    customers.NewHandler(logger, customersService),
		CalendarHandler:     calendar.NewHandler(logger, calendarService),
		OrdersHandler:       orders.NewHandler(logger, ordersService),
		StandingHandler:     standing.NewHandler(logger, standingService, enqueueRun),
		BatchesHandler:      batches.NewHandler(logger, batchesService),
		NotificationHandler: notify.NewHandler(logger, notifier),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
