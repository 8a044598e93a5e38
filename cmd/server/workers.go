package main

import (
	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/internal/config"
	"github.com/leakwatchio/api/internal/infra/jobs"
	"github.com/leakwatchio/api/pkg/logger"
)

// Workers bundles the background workers started alongside the HTTP server.
type Workers struct {
	queue   *jobs.Worker
	sweeper *app.ScanSweeper
}

// NewWorkers wires the asynq worker and the scan timeout sweeper.
func NewWorkers(cfg *config.Config, services *Services, db app.Transactor, repos *Repositories, log *logger.Logger) *Workers {
	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
	}, services.Reconcile, log)

	sweeper := app.NewScanSweeper(db, repos.Scan, cfg.Sweeper, log)

	return &Workers{queue: worker, sweeper: sweeper}
}

// Start starts all background workers.
func (w *Workers) Start(log *logger.Logger) error {
	if err := w.queue.Start(); err != nil {
		return err
	}
	log.Info("job worker started")

	w.sweeper.Start()
	log.Info("scan sweeper started")
	return nil
}

// Stop stops all background workers.
func (w *Workers) Stop(log *logger.Logger) {
	w.sweeper.Stop()
	log.Info("scan sweeper stopped")

	w.queue.Stop()
	log.Info("job worker stopped")
}
