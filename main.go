package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"irisnet/config"
	"irisnet/db"
	"irisnet/form"
	qhttp "irisnet/http"
	"irisnet/logger"
	"irisnet/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, level, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize database
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()
	zlog.Info("database initialized", zap.String("path", cfg.Database.Path))

	hub := monitoring.NewHub(zlog.Named("ws"))
	go hub.Run(ctx)

	api := qhttp.NewAPI(qhttp.APIConfig{
		StrictInput: cfg.Form.StrictInput,
		Language:    form.ParseLanguage(cfg.Form.Language),
		CacheSize:   cfg.Cache.Size,
	}, store, hub, zlog.Named("http"))

	// 3. Train before serving anything
	result, err := api.Train(ctx, cfg.ML)
	if err != nil {
		zlog.Fatal("training failed", zap.Error(err))
	}
	zlog.Info("model ready",
		zap.Int("iterations", result.Iterations),
		zap.Float64("error", result.Error),
		zap.Float64("accuracy", result.Accuracy))

	go func() {
		err := config.Watch(ctx, *configPath, zlog, func(c *config.Config) {
			if err := logger.SetLevel(level, c.Log.Level); err != nil {
				zlog.Warn("ignoring log level", zap.Error(err))
			}
		})
		if err != nil {
			zlog.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	// 4. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, api, hub, zlog.Named("http"))
	go func() {
		if err := server.Start(); err != nil {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown
	<-ctx.Done()
	zlog.Info("shutting down")
	if err := server.Stop(); err != nil {
		zlog.Warn("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("exiting")
}
