// Package finding defines reported secret occurrences and their review state.
package finding

import (
	"strings"
	"time"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityHigh      Severity = "High"
	SeverityPotential Severity = "Potential"
)

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return s == SeverityHigh || s == SeverityPotential
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ReviewStatus is the human triage decision on a finding.
type ReviewStatus string

const (
	StatusNone      ReviewStatus = "No status"
	StatusConfirmed ReviewStatus = "Confirmed"
	StatusRefuted   ReviewStatus = "Refuted"
)

// IsValid checks if the review status is valid.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case StatusNone, StatusConfirmed, StatusRefuted:
		return true
	}
	return false
}

// String returns the string representation of the review status.
func (s ReviewStatus) String() string {
	return string(s)
}

// Manual finding markers. A manually added finding keeps the fixed suffix on
// its value so it survives identity matching across rescans.
const (
	TypeManual        = "Manually Added"
	ManualValueSuffix = " (manual)"
)

// Identity is the natural identity of a finding across scans. Two findings
// with equal identity tuples are "the same finding" for review-history
// purposes, regardless of which scan reported them.
//
// Matching is by exact line number: a finding that merely moved between
// commits is treated as new and loses its review history.
type Identity struct {
	FilePath   string
	LineNumber int
	RawValue   string
	Type       string
}

// Finding is one reported occurrence of a potential secret within one scan.
type Finding struct {
	ID     shared.ID
	ScanID shared.ID

	FilePath   string
	LineNumber int
	RawValue   string
	Type       string

	Severity   Severity
	Confidence float64
	Context    string

	Status           ReviewStatus
	IsException      bool // true iff Status == StatusRefuted
	ExceptionComment string
	RefutedAt        *time.Time
	ReviewedBy       string

	CreatedAt time.Time
}

// New creates an unreviewed finding.
func New(scanID shared.ID, filePath string, line int, rawValue, findingType string, severity Severity, confidence float64, context string) (*Finding, error) {
	if filePath == "" {
		return nil, shared.NewDomainError("VALIDATION", "file path is required", shared.ErrValidation)
	}
	if rawValue == "" {
		return nil, shared.NewDomainError("VALIDATION", "raw value is required", shared.ErrValidation)
	}
	if !severity.IsValid() {
		return nil, shared.NewDomainError("VALIDATION", "invalid severity", shared.ErrValidation)
	}
	if confidence < 0 || confidence > 1 {
		return nil, shared.NewDomainError("VALIDATION", "confidence must be within [0, 1]", shared.ErrValidation)
	}

	return &Finding{
		ID:         shared.NewID(),
		ScanID:     scanID,
		FilePath:   filePath,
		LineNumber: line,
		RawValue:   rawValue,
		Type:       findingType,
		Severity:   severity,
		Confidence: confidence,
		Context:    context,
		Status:     StatusNone,
		CreatedAt:  time.Now(),
	}, nil
}

// NewManual creates a human-asserted finding for a scan. The fixed suffix is
// appended to the value; the engine will never re-detect it, so reconciliation
// re-inserts it on every rescan until a human removes it.
func NewManual(scanID shared.ID, filePath string, line int, rawValue string, severity Severity, reviewer string) (*Finding, error) {
	if !strings.HasSuffix(rawValue, ManualValueSuffix) {
		rawValue += ManualValueSuffix
	}
	f, err := New(scanID, filePath, line, rawValue, TypeManual, severity, 1.0, "")
	if err != nil {
		return nil, err
	}
	// Manually added findings are confirmed by definition; the reviewer who
	// asserted them is recorded but not required.
	f.Status = StatusConfirmed
	f.ReviewedBy = reviewer
	return f, nil
}

// Identity returns the identity tuple of this finding.
func (f *Finding) Identity() Identity {
	return Identity{
		FilePath:   f.FilePath,
		LineNumber: f.LineNumber,
		RawValue:   f.RawValue,
		Type:       f.Type,
	}
}

// IsManual reports whether this finding was asserted by a human rather than
// detected by the engine.
func (f *Finding) IsManual() bool {
	return strings.HasSuffix(f.RawValue, ManualValueSuffix)
}

// Confirm marks the finding a true positive.
func (f *Finding) Confirm(reviewer string) error {
	if reviewer == "" && !f.IsManual() {
		return shared.NewDomainError("VALIDATION", "confirming reviewer is required", shared.ErrValidation)
	}
	f.Status = StatusConfirmed
	f.IsException = false
	f.ExceptionComment = ""
	f.RefutedAt = nil
	f.ReviewedBy = reviewer
	return nil
}

// Refute marks the finding a false positive, excluding it from active counts.
func (f *Finding) Refute(reviewer, comment string) error {
	if reviewer == "" {
		return shared.NewDomainError("VALIDATION", "refuting reviewer is required", shared.ErrValidation)
	}
	now := time.Now()
	f.Status = StatusRefuted
	f.IsException = true
	f.ExceptionComment = comment
	f.RefutedAt = &now
	f.ReviewedBy = reviewer
	return nil
}

// ClearStatus resets the finding to unreviewed.
func (f *Finding) ClearStatus() {
	f.Status = StatusNone
	f.IsException = false
	f.ExceptionComment = ""
	f.RefutedAt = nil
	f.ReviewedBy = ""
}

// CloneFor copies this finding onto another scan with a fresh id. Used to
// re-insert manual findings on rescan; all review state travels with the copy.
func (f *Finding) CloneFor(scanID shared.ID) *Finding {
	clone := *f
	clone.ID = shared.NewID()
	clone.ScanID = scanID
	clone.CreatedAt = time.Now()
	return &clone
}

// InheritDecision carries a prior human decision onto this finding. A refuted
// decision brings the comment and the original refutation timestamp along; a
// confirmed decision carries the reviewer and clears comment and timestamp.
// Severity follows the prior decision in both cases, since a reviewer may have
// re-classified it.
func (f *Finding) InheritDecision(prior *Finding) {
	switch prior.Status {
	case StatusRefuted:
		f.Status = StatusRefuted
		f.IsException = true
		f.ExceptionComment = prior.ExceptionComment
		f.RefutedAt = prior.RefutedAt
		f.ReviewedBy = prior.ReviewedBy
		f.Severity = prior.Severity
	case StatusConfirmed:
		f.Status = StatusConfirmed
		f.IsException = false
		f.ExceptionComment = ""
		f.RefutedAt = nil
		f.ReviewedBy = prior.ReviewedBy
		f.Severity = prior.Severity
	}
}
