package app

import "github.com/leakwatchio/api/pkg/domain/finding"

// ResultStatus is the status field of an engine results payload. It is a
// closed set; payloads carrying anything else are rejected at the boundary
// before reaching the services.
type ResultStatus string

const (
	// ResultStatusError reports a scan the engine could not finish.
	ResultStatusError ResultStatus = "Error"
	// ResultStatusPartial reports progress on a long-running scan.
	ResultStatusPartial ResultStatus = "partial"
	// ResultStatusCompleted delivers the final finding set.
	ResultStatusCompleted ResultStatus = "completed"
)

// IsValid checks if the result status is one the pipeline understands.
func (s ResultStatus) IsValid() bool {
	switch s {
	case ResultStatusError, ResultStatusPartial, ResultStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of the result status.
func (s ResultStatus) String() string {
	return string(s)
}

// ResultItem is one reported secret occurrence in a results payload.
// encoding/json matches field names case-insensitively, so the engine's mixed
// "severity"/"Severity" and "Type"/"type" spellings both decode.
type ResultItem struct {
	Path       string  `json:"path"`
	Line       int     `json:"line"`
	Secret     string  `json:"secret"`
	Context    string  `json:"context"`
	Severity   string  `json:"severity"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// ScanResults is the decompressed results payload the engine POSTs back to
// the callback URL.
type ScanResults struct {
	Status             ResultStatus `json:"Status"`
	Message            string       `json:"Message,omitempty"`
	AllFiles           int          `json:"AllFiles,omitempty"`
	FilesExcluded      int          `json:"FilesExcluded,omitempty"`
	SkippedFiles       []string     `json:"SkippedFiles,omitempty"`
	RepoCommit         string       `json:"RepoCommit,omitempty"`
	DetectedLanguages  []string     `json:"DetectedLanguages,omitempty"`
	DetectedFrameworks []string     `json:"DetectedFrameworks,omitempty"`
	Results            []ResultItem `json:"Results,omitempty"`
}

// severityOf maps the engine's reported severity onto the domain severity,
// defaulting anything unknown to Potential rather than dropping the finding.
func severityOf(reported string) finding.Severity {
	if finding.Severity(reported) == finding.SeverityHigh {
		return finding.SeverityHigh
	}
	return finding.SeverityPotential
}
