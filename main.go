package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"api_pos/api"
	"api_pos/internal/auth"
	"api_pos/internal/config"
	"api_pos/internal/database"
	"api_pos/internal/inventory"
	"api_pos/internal/logger"
	"api_pos/internal/metrics"
	"api_pos/internal/reports"
	"api_pos/internal/sales"
	"api_pos/internal/seed"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const serviceName = "pos-backend"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error trying to start server: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDev(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	if cfg.DB.AutoMigrate {
		if err := store.Migrate(&auth.User{}, &inventory.Category{}, &inventory.Product{}, &sales.Sale{}, &sales.LineItem{}); err != nil {
			return err
		}
	}

	m := metrics.New()
	authService := auth.NewService(store, auth.NewTokens(cfg.JWT), cfg.Auth.BcryptCost, log)
	if err := seed.Run(ctx, store, authService, cfg.Seed, log); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	if cfg.App.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	api.InitRoutes(r, api.Dependencies{
		Store:     store,
		Auth:      authService,
		Inventory: inventory.NewService(store, log),
		Sales: sales.NewService(sales.NewDBStorage(store), log,
			sales.WithMetrics(m),
			sales.WithRetry(cfg.Sales.MaxAttempts, cfg.Sales.RetryBackoff),
		),
		Reports: reports.NewService(store, cfg.Report.LowStockThreshold, log),
		Metrics: m,
		Logger:  log,
		HTTP:    cfg.HTTP,
		Version: cfg.App.Version,
	})

	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
