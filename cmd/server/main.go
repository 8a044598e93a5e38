package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leakwatchio/api/internal/config"
	"github.com/leakwatchio/api/internal/infra/http"
	"github.com/leakwatchio/api/internal/infra/http/routes"
	"github.com/leakwatchio/api/internal/infra/jobs"
	"github.com/leakwatchio/api/internal/infra/postgres"
	"github.com/leakwatchio/api/internal/infra/redis"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	jobClient := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	defer closeWithLog(jobClient, "job client", log)

	repos := NewRepositories(db)
	log.Info("repositories initialized")

	services := NewServices(&ServiceDeps{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Repos:     repos,
		JobClient: jobClient,
	})
	log.Info("services initialized")

	handlers := NewHandlers(&HandlerDeps{
		Log:       log,
		Validator: validator.New(),
		DB:        db,
		Redis:     redisClient,
		Services:  services,
	})

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers)

	workers := NewWorkers(cfg, services, db, repos, log)
	if err := workers.Start(log); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	workers.Stop(log)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
