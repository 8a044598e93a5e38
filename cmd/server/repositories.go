package main

import (
	"github.com/leakwatchio/api/internal/infra/postgres"
	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/multiscan"
	"github.com/leakwatchio/api/pkg/domain/project"
	"github.com/leakwatchio/api/pkg/domain/scan"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Project   project.Repository
	Scan      scan.Repository
	MultiScan multiscan.Repository
	Finding   finding.Repository
}

// NewRepositories creates all PostgreSQL-backed repositories.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Project:   postgres.NewProjectRepository(db),
		Scan:      postgres.NewScanRepository(db),
		MultiScan: postgres.NewMultiScanRepository(db),
		Finding:   postgres.NewFindingRepository(db),
	}
}
