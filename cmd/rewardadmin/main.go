// Package main запускает HTTP-сервер административного API наград.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/reward-admin/internal/config"
	"github.com/mmeshcher/reward-admin/internal/handler"
	"github.com/mmeshcher/reward-admin/internal/locker"
	"github.com/mmeshcher/reward-admin/internal/middleware"
	"github.com/mmeshcher/reward-admin/internal/repository"
	"github.com/mmeshcher/reward-admin/internal/service"
	"github.com/mmeshcher/reward-admin/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	images, err := storage.NewImageStore(cfg.Storage())
	if err != nil {
		sugar.Fatalw("image store initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var locks locker.Locker
	if cfg.RedisURL != "" {
		redisLocks, client, err := locker.NewRedisLocker(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer client.Close()
		locks = redisLocks
		sugar.Info("using redis purchase locks")
	} else {
		locks = locker.NewLocalLocker()
		sugar.Info("using in-process purchase locks")
	}

	svc := service.NewService(repo, images, locks, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AdminSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Повторное зачисление возвратов, если включено
	g.Go(func() error {
		svc.StartRefundSweeper(ctx, cfg.RefundSweepInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting reward admin server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
