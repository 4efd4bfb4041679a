package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitecopy/api/internal/app"
	"sitecopy/api/internal/gitrepo"
	"sitecopy/api/internal/metrics"
	"sitecopy/api/internal/search"
	"sitecopy/api/internal/session"
	"sitecopy/api/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.EditorConfigured() {
		logger.Warn("no editor password configured; operator logins will be refused")
	}
	ctx := cmd.Context()

	db, dialect, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for operator sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		sessions = redisStore
	} else {
		logger.Info("using in-memory operator sessions")
		sessions = session.NewMemoryStore()
	}
	defer sessions.Close()

	var history *gitrepo.Service
	if strings.TrimSpace(cfg.HistoryDir) != "" {
		if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
		history = gitrepo.New(cfg.HistoryDir)
	}

	var primary search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meili.Close()
		primary = meili
	}

	service := app.New(cfg, app.Deps{
		Store:    store.NewContentStore(db, dialect),
		Sessions: sessions,
		History:  history,
		Search:   search.NewService(primary, logger),
		Metrics:  metrics.New(),
		Logger:   logger,
	})
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap error", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sitecopy API listening", zap.String("addr", cfg.Addr), zap.String("store", string(dialect)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	return nil
}
