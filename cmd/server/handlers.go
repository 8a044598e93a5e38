package main

import (
	"github.com/leakwatchio/api/internal/infra/http/handler"
	"github.com/leakwatchio/api/internal/infra/http/routes"
	"github.com/leakwatchio/api/internal/infra/postgres"
	"github.com/leakwatchio/api/internal/infra/redis"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/validator"
)

// HandlerDeps holds the dependencies needed to construct handlers.
type HandlerDeps struct {
	Log       *logger.Logger
	Validator *validator.Validator
	DB        *postgres.DB
	Redis     *redis.Client
	Services  *Services
}

// NewHandlers wires all HTTP handlers for route registration.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	return routes.Handlers{
		Health:  handler.NewHealthHandler(handler.PingerFunc(deps.DB.HealthCheck), deps.Redis),
		Project: handler.NewProjectHandler(deps.Services.Project, deps.Validator, deps.Log),
		Scan:    handler.NewScanHandler(deps.Services.Scan, deps.Validator, deps.Log),
		Finding: handler.NewFindingHandler(deps.Services.Review, deps.Validator, deps.Log),
		Results: handler.NewResultsHandler(deps.Services.Results, deps.Log),
	}
}
