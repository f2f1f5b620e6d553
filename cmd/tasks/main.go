package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tasks/internal/config"
	"tasks/internal/logger"
	"tasks/internal/server"
	"tasks/internal/storage/gormstore"
	"tasks/internal/storage/rediscache"
	"tasks/internal/util"
)

func main() {
	configFlag := flag.String("config", util.EnvOrDefault("TASKS_CONFIG", ""), "Path to a config file (toml, yaml or json)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.New(logger.DefaultConfig()).Fatal("unable to load config", zap.Error(err))
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = log.Sync() }()

	log.Info("starting tasks server",
		zap.String("env", cfg.App.Env),
		zap.String("driver", cfg.Database.Driver))

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.SQLLevel), 200*time.Millisecond)
	store, err := gormstore.Open(cfg.Database, log, gormLog)
	if err != nil {
		log.Fatal("unable to open database", zap.Error(err))
	}
	defer store.Close()

	var tasks server.TaskStore = store
	if cfg.Redis.Addr != "" {
		cached, err := rediscache.New(store, cfg.Redis, log.Named("cache"))
		if err != nil {
			log.Warn("redis unavailable, serving without list cache", zap.Error(err))
		} else {
			defer cached.Close()
			tasks = cached
			log.Info("task list cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
		}
	}

	srv := server.New(tasks, log, server.Options{
		StaticDir:        cfg.App.StaticDir,
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.App.Addr,
		Handler:      srv.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server", zap.Error(err))
	}

	log.Info("server stopped")
}
