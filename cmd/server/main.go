package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/config"
	transport "stockroom-server/internal/http"
	"stockroom-server/internal/http/middleware"
	"stockroom-server/internal/services"
	"stockroom-server/internal/store"
	"stockroom-server/internal/store/couchbase"
	"stockroom-server/internal/store/couchdb"
	"stockroom-server/internal/store/syncgateway"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Env)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var mirror services.UserMirror
	if cfg.SyncGateway.Enabled {
		mirror = syncgateway.New(syncgateway.Config{
			URL:      cfg.SyncGateway.URL,
			Database: cfg.SyncGateway.Database,
			Username: cfg.SyncGateway.Username,
			Password: cfg.SyncGateway.Password,
			Timeout:  cfg.RequestTimeout,
		})
	}

	authService := services.NewAuthService(st, mirror, cfg)
	itemService := services.NewItemService(st)

	if err := authService.EnsureFirstSuperuser(ctx); err != nil {
		logger.Error("failed to bootstrap first superuser", "error", err)
		os.Exit(1)
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:      cfg,
		AuthService: authService,
		ItemService: itemService,
		Logger:      logger,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.RequestTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr, "env", cfg.Env, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrors:
		logger.Error("http server stopped unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("http server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendCouchbase:
		return couchbase.Connect(ctx, couchbase.Config{
			ConnStr:   cfg.Couchbase.ConnStr,
			Username:  cfg.Couchbase.Username,
			Password:  cfg.Couchbase.Password,
			Bucket:    cfg.Couchbase.Bucket,
			ItemIndex: cfg.Couchbase.ItemIndex,
			UserIndex: cfg.Couchbase.UserIndex,
			PersistTo: cfg.Couchbase.PersistTo,
			OpTimeout: cfg.Couchbase.OpTimeout,
		})
	case config.BackendCouchDB:
		return couchdb.Connect(ctx, couchdb.Config{
			URL:           cfg.CouchDB.URL,
			AppDatabase:   cfg.CouchDB.AppDatabase,
			UsersDatabase: cfg.CouchDB.UsersDatabase,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env != "prod" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
