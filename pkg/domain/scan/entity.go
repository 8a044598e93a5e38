// Package scan defines the scan execution entity and its state machine.
package scan

import (
	"time"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

// Status represents the scan lifecycle status.
type Status string

const (
	StatusPending   Status = "pending"   // Record exists, engine has not confirmed acceptance
	StatusRunning   Status = "running"   // Engine accepted the job
	StatusCompleted Status = "completed" // Results ingested and reconciled
	StatusFailed    Status = "failed"    // Dispatch or ingestion failure
	StatusTimeout   Status = "timeout"   // Sweeper reclaimed a stuck running scan
)

// IsValid checks if the status is a valid status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// IsTerminal returns true if the status is a terminal (final) state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// RefType identifies what kind of git reference a scan targets.
type RefType string

const (
	RefTypeCommit RefType = "commit"
	RefTypeBranch RefType = "branch"
	RefTypeTag    RefType = "tag"
)

// IsValid checks if the ref type is valid.
func (r RefType) IsValid() bool {
	switch r {
	case RefTypeCommit, RefTypeBranch, RefTypeTag:
		return true
	}
	return false
}

// String returns the string representation of the ref type.
func (r RefType) String() string {
	return string(r)
}

// Scan represents one execution of the detection engine against one
// (project, reference) pair.
type Scan struct {
	ID shared.ID

	// Target
	ProjectName string
	RefType     RefType
	Ref         string
	RepoCommit  string // resolved commit hash, set once known

	// Lifecycle
	Status       Status
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time

	// Progress / metadata reported by the engine
	FilesScanned       int
	ExcludedFilesCount int
	ExcludedFiles      []string
	DetectedLanguages  []string
	DetectedFrameworks []string

	// Denormalized active-finding counters, maintained after every
	// reconciliation and review mutation.
	HighCount      int
	PotentialCount int

	Initiator string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewScan creates a new scan in pending state.
func NewScan(projectName string, refType RefType, ref, initiator string) (*Scan, error) {
	if projectName == "" {
		return nil, shared.NewDomainError("VALIDATION", "project name is required", shared.ErrValidation)
	}
	if !refType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION", "invalid ref type", shared.ErrValidation)
	}
	if ref == "" {
		return nil, shared.NewDomainError("VALIDATION", "ref is required", shared.ErrValidation)
	}

	now := time.Now()
	return &Scan{
		ID:          shared.NewID(),
		ProjectName: projectName,
		RefType:     refType,
		Ref:         ref,
		Status:      StatusPending,
		Initiator:   initiator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MarkRunning transitions pending -> running once the engine accepts the job.
// A non-empty resolvedRef from the engine overwrites the stored reference.
func (s *Scan) MarkRunning(resolvedRef string) error {
	if s.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "can only start a pending scan", shared.ErrConflict)
	}
	now := time.Now()
	s.Status = StatusRunning
	s.StartedAt = &now
	if resolvedRef != "" {
		s.Ref = resolvedRef
	}
	s.UpdatedAt = now
	return nil
}

// MarkFailed transitions pending/running -> failed. A failed scan always
// carries a non-empty human-readable message.
func (s *Scan) MarkFailed(message string) error {
	if s.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "cannot fail a finished scan", shared.ErrConflict)
	}
	if message == "" {
		message = "scan failed"
	}
	now := time.Now()
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// MarkCompleted transitions running -> completed after reconciliation.
func (s *Scan) MarkCompleted() error {
	if s.Status != StatusRunning {
		return shared.NewDomainError("INVALID_STATE", "can only complete a running scan", shared.ErrConflict)
	}
	now := time.Now()
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// MarkTimeout transitions running -> timeout. The message area stays empty:
// from the engine's point of view the scan is indistinguishable from one
// still silently running.
func (s *Scan) MarkTimeout() error {
	if s.Status != StatusRunning {
		return shared.NewDomainError("INVALID_STATE", "can only time out a running scan", shared.ErrConflict)
	}
	now := time.Now()
	s.Status = StatusTimeout
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// SetRepoCommit records the resolved commit hash. Set once; later callbacks
// never reset it.
func (s *Scan) SetRepoCommit(commit string) {
	if s.RepoCommit != "" || commit == "" {
		return
	}
	s.RepoCommit = commit
	s.UpdatedAt = time.Now()
}

// SetProgress overwrites the file-count progress fields. Intermediate counts
// are replaced, not accumulated.
func (s *Scan) SetProgress(filesScanned, excludedCount int, excludedFiles []string) {
	s.FilesScanned = filesScanned
	s.ExcludedFilesCount = excludedCount
	s.ExcludedFiles = excludedFiles
	s.UpdatedAt = time.Now()
}

// SetDetected records the language/framework summaries from the final payload.
func (s *Scan) SetDetected(languages, frameworks []string) {
	s.DetectedLanguages = languages
	s.DetectedFrameworks = frameworks
	s.UpdatedAt = time.Now()
}

// SetCounters updates the denormalized severity counters.
func (s *Scan) SetCounters(high, potential int) {
	s.HighCount = high
	s.PotentialCount = potential
	s.UpdatedAt = time.Now()
}

// IsFinished returns true once the scan reached a terminal state.
func (s *Scan) IsFinished() bool {
	return s.Status.IsTerminal()
}
