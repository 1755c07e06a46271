// Package main запускает HTTP-сервер маркетплейса Atom Point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/atompoint/internal/auth"
	"github.com/mmeshcher/atompoint/internal/config"
	"github.com/mmeshcher/atompoint/internal/handler"
	"github.com/mmeshcher/atompoint/internal/metrics"
	"github.com/mmeshcher/atompoint/internal/middleware"
	"github.com/mmeshcher/atompoint/internal/notify"
	"github.com/mmeshcher/atompoint/internal/repository"
	"github.com/mmeshcher/atompoint/internal/repository/sqlite"
	"github.com/mmeshcher/atompoint/internal/service"
)

// store объединяет всё, что процесс использует от хранилища.
type store interface {
	service.Store
	service.OrderStore
	Close() error
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	repo, err := openStore(cfg, logger)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	dispatcher := notify.NewDispatcher(repo, logger, m, cfg.NotifyWorkers, cfg.NotifyQueue)
	defer dispatcher.Close()

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		sugar.Fatalw("token manager initialization error", "error", err.Error())
	}
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT secret is not configured, tokens will not survive a restart")
	}

	svc := service.NewService(repo, tokens, dispatcher, logger)

	adminRecipient := cfg.AdminNotifyUserID
	if cfg.AdminLogin != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		admin, err := svc.EnsureAdmin(initCtx, cfg.AdminLogin, cfg.AdminPassword)
		cancel()
		if err != nil {
			sugar.Fatalw("bootstrap admin error", "error", err.Error())
		}
		if adminRecipient == 0 {
			adminRecipient = admin.ID
		}
	}
	if adminRecipient == 0 {
		sugar.Warn("no admin notification recipient configured, order alerts are disabled")
	}

	workflow := service.NewWorkflow(repo, dispatcher, logger, m, adminRecipient)

	authMiddleware := middleware.NewAuthMiddleware(tokens, repo, logger)
	h := handler.NewHandler(svc, workflow, logger, authMiddleware, m, prometheus.DefaultGatherer)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting atompoint server", "addr", cfg.RunAddress)
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
		sugar.Errorw("application terminated with error", "error", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = lvl

	return zcfg.Build()
}

func openStore(cfg *config.Config, logger *zap.Logger) (store, error) {
	kind, dsn := cfg.Storage()

	switch kind {
	case config.StorageSQLite:
		logger.Info("using sqlite storage", zap.String("path", dsn))
		return sqlite.New(dsn, logger)
	default:
		logger.Info("using postgres storage")
		return repository.NewPostgresRepository(dsn, logger)
	}
}
