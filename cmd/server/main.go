package main // worker process: audit consumer plus health endpoints

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/rental-booking/internal/config"
	"github.com/iliyamo/rental-booking/internal/database"
	"github.com/iliyamo/rental-booking/internal/handler"
	"github.com/iliyamo/rental-booking/internal/logger"
	"github.com/iliyamo/rental-booking/internal/queue"
	"github.com/iliyamo/rental-booking/internal/repository"
	"github.com/iliyamo/rental-booking/internal/router"
)

func main() {
	cfg := config.MustLoad()

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ready := handler.NewReadinessHandler(2 * time.Second)

	store, probe, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		lg.Fatal("open booking store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()
	if probe != nil {
		ready.Add("store", probe)
	}
	lg.Info("booking store ready", zap.String("driver", cfg.StoreDriver))

	audit, closeAudit := logger.NewRotatingFile(logger.RotatingFileConfig{
		Path:       cfg.EventLogPath,
		MaxSizeMB:  cfg.EventLogMaxMB,
		MaxBackups: cfg.EventLogBackups,
		MaxAgeDays: cfg.EventLogMaxDays,
		Compress:   true,
	})
	defer func() { _ = closeAudit() }()

	// A memory store is private to this process and never holds the
	// bookings behind the events, so only durable stores enrich the audit.
	var lookup repository.BookingStore
	if cfg.StoreDriver != config.StoreMemory {
		lookup = store
	}
	consumer := queue.NewConsumer(cfg.RabbitURL, cfg.EventExchange, cfg.EventQueue, lookup, audit, lg.Named("consumer"))
	ready.Add("broker", consumer.Ready)
	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Run(ctx) }()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, ready)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		lg.Warn("consumer did not stop before shutdown timeout")
	}
}

// openStore builds the booking store selected by STORE_DRIVER, along with
// a readiness probe and a closer.
func openStore(ctx context.Context, cfg config.Config) (repository.BookingStore, handler.Probe, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := repository.NewMySQLBookingRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return repo, db.PingContext, func() { _ = db.Close() }, nil
	case config.StoreRedis:
		rdb, err := config.NewRedisClient(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		probe := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return repository.NewRedisBookingRepo(rdb, cfg.RedisPrefix), probe, func() { _ = rdb.Close() }, nil
	default:
		return repository.NewMemoryBookingRepo(), nil, func() {}, nil
	}
}
