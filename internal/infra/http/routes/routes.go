// Package routes registers all HTTP routes for the API.
package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leakwatchio/api/internal/infra/http/handler"
)

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health  *handler.HealthHandler
	Project *handler.ProjectHandler
	Scan    *handler.ScanHandler
	Finding *handler.FindingHandler
	Results *handler.ResultsHandler
}

// Register registers all application routes. Route definitions live in the
// infrastructure layer, not in main.
func Register(r chi.Router, h Handlers) {
	// Probes and metrics sit outside the API prefix.
	r.Get("/healthz", h.Health.Live)
	r.Get("/readyz", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.Project.Create)
			r.Get("/", h.Project.List)
			r.Get("/{project_name}", h.Project.Get)
			r.Patch("/{project_name}", h.Project.Update)
			r.Delete("/{project_name}", h.Project.Delete)
		})

		r.Route("/scans", func(r chi.Router) {
			r.Post("/", h.Scan.Start)
			r.Get("/", h.Scan.List)
			r.Get("/{scan_id}", h.Scan.Get)
			r.Delete("/{scan_id}", h.Scan.Delete)
			r.Get("/{scan_id}/findings", h.Finding.ListByScan)
			r.Post("/{scan_id}/findings", h.Finding.AddManual)
		})

		r.Route("/multi_scans", func(r chi.Router) {
			r.Post("/", h.Scan.StartMulti)
			r.Get("/", h.Scan.ListMulti)
			r.Get("/{multi_scan_id}", h.Scan.GetMulti)
		})

		r.Route("/findings", func(r chi.Router) {
			r.Put("/status", h.Finding.BulkUpdateStatus)
			r.Get("/{finding_id}", h.Finding.Get)
			r.Put("/{finding_id}/status", h.Finding.UpdateStatus)
			r.Delete("/{finding_id}", h.Finding.Delete)
		})

		// Engine callback. The engine addresses scans by project name and id,
		// mirroring the callback URL handed out at dispatch time.
		r.Post("/get_results/{project_name}/{scan_id}", h.Results.Receive)
	})
}
