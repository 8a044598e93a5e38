// Package project defines the scannable repository identity.
package project

import (
	"net/url"
	"strings"
	"time"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

// Project is a scannable repository. The core treats it as a read-only lookup
// keyed by name; creation and renames come from the UI/API layer.
type Project struct {
	ID        shared.ID
	Name      string // unique
	RepoURL   string // normalized, unique
	CreatedBy string
	CreatedAt time.Time
}

// New creates a project with a normalized repository URL.
func New(name, repoURL, createdBy string) (*Project, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "project name is required", shared.ErrValidation)
	}
	normalized, err := NormalizeRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	return &Project{
		ID:        shared.NewID(),
		Name:      name,
		RepoURL:   normalized,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}, nil
}

// Rename changes the project name.
func (p *Project) Rename(name string) error {
	if name == "" {
		return shared.NewDomainError("VALIDATION", "project name is required", shared.ErrValidation)
	}
	p.Name = name
	return nil
}

// UpdateRepoURL replaces the repository URL, normalizing it.
func (p *Project) UpdateRepoURL(repoURL string) error {
	normalized, err := NormalizeRepoURL(repoURL)
	if err != nil {
		return err
	}
	p.RepoURL = normalized
	return nil
}

// NormalizeRepoURL canonicalizes a repository URL so equivalent spellings
// collide on the unique constraint: lowercased host, no trailing slash,
// no trailing ".git".
func NormalizeRepoURL(raw string) (string, error) {
	if raw == "" {
		return "", shared.NewDomainError("VALIDATION", "repository url is required", shared.ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", shared.NewDomainError("VALIDATION", "invalid repository url", shared.ErrValidation)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), ".git")
	u.Fragment = ""
	u.RawQuery = ""
	return u.String(), nil
}
