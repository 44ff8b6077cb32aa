package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"burn.note/config"
	"burn.note/internal/api"
	"burn.note/internal/logger"
	"burn.note/internal/service"
	"burn.note/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config error: ", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatal("logger error: ", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("store init failed", zap.String("store", cfg.Store.Type), zap.Error(err))
	}
	defer st.Close()

	secrets := service.NewSecrets(st, service.Options{
		DefaultTTL:  cfg.Secrets.DefaultTTL,
		MaxTTL:      cfg.Secrets.MaxTTL,
		MaxFileSize: cfg.Secrets.MaxFileSize,
	}, zl.Named("secrets"))

	router := api.SetupRouter(api.NewHandler(secrets, cfg, zl.Named("api")), zl.Named("http"))

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zl.Info("server starting",
		zap.String("addr", cfg.Addr()),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.String("store", cfg.Store.Type),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zl.Error("shutdown failed", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (store.Store, error) {
	switch cfg.Store.Type {
	case config.StoreRedis:
		if cfg.Store.Redis.URL != "" {
			return store.NewRedisStoreFromURL(cfg.Store.Redis.URL)
		}
		return store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
	case config.StoreREST:
		return store.NewRESTStore(cfg.Store.REST.URL, cfg.Store.REST.Token, cfg.Store.REST.Timeout)
	case config.StorePostgres:
		return store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN, cfg.Store.Postgres.SweepInterval, zl.Named("postgres"))
	case config.StoreMemory:
		zl.Warn("using in-memory store, secrets will not survive a restart")
		return store.NewMemoryStore(30 * time.Second), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}
