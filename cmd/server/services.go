package main

import (
	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/internal/config"
	"github.com/leakwatchio/api/internal/infra/engine"
	"github.com/leakwatchio/api/internal/infra/jobs"
	"github.com/leakwatchio/api/internal/infra/postgres"
	"github.com/leakwatchio/api/pkg/logger"
)

// Services holds all application services.
type Services struct {
	Project   *app.ProjectService
	Scan      *app.ScanService
	Results   *app.ResultsService
	Reconcile *app.ReconcileService
	Review    *app.ReviewService
	Counter   *app.CounterService
}

// ServiceDeps holds the dependencies needed to construct services.
type ServiceDeps struct {
	Config    *config.Config
	Log       *logger.Logger
	DB        *postgres.DB
	Repos     *Repositories
	JobClient *jobs.Client
}

// NewServices wires all application services.
func NewServices(deps *ServiceDeps) *Services {
	engineClient := engine.NewClient(&deps.Config.Engine)
	counters := app.NewCounterService(deps.Repos.Scan, deps.Repos.Finding, deps.Log)

	return &Services{
		Project: app.NewProjectService(deps.Repos.Project, deps.Log),
		Scan: app.NewScanService(
			deps.Repos.Scan,
			deps.Repos.MultiScan,
			deps.Repos.Project,
			deps.Repos.Finding,
			engineClient,
			deps.Config.Server.PublicBaseURL,
			deps.Log,
		),
		Results: app.NewResultsService(deps.DB, deps.Repos.Scan, deps.JobClient, deps.Log),
		Reconcile: app.NewReconcileService(
			deps.DB,
			deps.Repos.Scan,
			deps.Repos.Finding,
			counters,
			deps.Config.Reconcile,
			deps.Log,
		),
		Review:  app.NewReviewService(deps.Repos.Finding, counters, deps.Log),
		Counter: counters,
	}
}
