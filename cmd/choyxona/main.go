// Package main запускает Telegram-бота чайханы и HTTP-сервер Web App.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/choyxona-bot/internal/bot"
	"github.com/mmeshcher/choyxona-bot/internal/config"
	"github.com/mmeshcher/choyxona-bot/internal/handler"
	"github.com/mmeshcher/choyxona-bot/internal/menu"
	"github.com/mmeshcher/choyxona-bot/internal/middleware"
	"github.com/mmeshcher/choyxona-bot/internal/repository"
	"github.com/mmeshcher/choyxona-bot/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	svc := service.NewService(repo, menu.Default(), cfg.Location)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.BotToken)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tg, err := bot.New(ctx, cfg.BotToken, cfg.WebAppURL, svc, logger)
	if err != nil {
		sugar.Fatalw("telegram bot initialization error", "error", err.Error())
	}

	g, ctx := errgroup.WithContext(ctx)

	// Long polling Telegram до отмены контекста
	g.Go(func() error {
		tg.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting web app server", "addr", cfg.Addr(), "timezone", cfg.Location.String())
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
