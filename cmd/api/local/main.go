//go:build !lambda
// +build !lambda

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taxrates/taxrates-api/internal/app"
	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/helpers"
	"github.com/taxrates/taxrates-api/internal/logger"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"github.com/taxrates/taxrates-api/internal/middleware"
	"github.com/taxrates/taxrates-api/internal/server"
	"github.com/taxrates/taxrates-api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger.InitLogger(cfg.Stage)
	defer func() { _ = logger.Sync() }()

	if cfg.Stage == helpers.StageProd || cfg.Stage == helpers.StageDev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, metrics.NewWithRuntime())
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	holder := a.Holder()
	if _, err := holder.Reload(ctx); err != nil {
		logger.Fatal("Failed to load committed data", zap.Error(err))
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitMinute, cfg.RateLimitHour,
		middleware.WithLimiterMetrics(a.Metrics))

	router := server.NewRouter(server.Options{
		Rates:   a.RateService(holder),
		Holder:  holder,
		Metrics: a.Metrics,
		Limiter: limiter,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return limiter.Cleanup(gctx)
	})
	if cfg.WatchData && store.Driver(cfg.StoreDriver) == store.DriverFilesystem {
		g.Go(func() error {
			return holder.Watch(gctx, cfg.DataDir)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
