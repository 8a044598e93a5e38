// Package engine implements the HTTP client for the external detection engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/leakwatchio/api/internal/config"
)

// Sentinel errors for transport-level failures.
var (
	// ErrUnavailable indicates the engine could not be reached.
	ErrUnavailable = errors.New("detection engine unavailable")
	// ErrTimeout indicates the call exceeded its bounded timeout.
	ErrTimeout = errors.New("detection engine request timed out")
)

// RejectionError carries an engine-reported rejection (non-transport).
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return "detection engine rejected the request"
	}
	return "detection engine rejected the request: " + e.Message
}

// Submission statuses reported by the engine.
const (
	StatusAccepted         = "accepted"
	StatusValidationFailed = "validation_failed"
)

// CommitNotFound is the per-item marker the engine returns for an
// unresolvable reference in a multi-scan submission.
const CommitNotFound = "not_found"

// ScanRequest is a single-repository scan submission.
type ScanRequest struct {
	ProjectName string `json:"ProjectName"`
	RepoURL     string `json:"RepoUrl"`
	RefType     string `json:"RefType"`
	Ref         string `json:"Ref"`
	CallbackURL string `json:"CallbackUrl"`
}

// ScanResponse is the engine's answer to a single-scan submission.
type ScanResponse struct {
	Status  string `json:"status"`
	Ref     string `json:"Ref,omitempty"`
	Message string `json:"message,omitempty"`
}

// MultiScanRequest is a batched submission covering several repositories.
type MultiScanRequest struct {
	Repositories []ScanRequest `json:"repositories"`
}

// MultiScanItem is the per-repository resolution result, positional with the
// submitted repositories slice.
type MultiScanItem struct {
	Ref    string `json:"Ref,omitempty"`
	Commit string `json:"commit"`
}

// Resolved reports whether the engine resolved this item's reference.
func (it MultiScanItem) Resolved() bool {
	return it.Commit != "" && it.Commit != CommitNotFound
}

// MultiScanResponse is the engine's answer to a batched submission.
type MultiScanResponse struct {
	Status  string          `json:"status"`
	Data    []MultiScanItem `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client talks to the detection engine over HTTP. Each call carries its own
// bounded timeout so a hung engine never hangs the dispatch path.
type Client struct {
	baseURL string
	cfg     *config.EngineConfig
	client  *http.Client
}

// NewClient creates a detection engine client.
func NewClient(cfg *config.EngineConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		cfg:     cfg,
		// Per-call deadlines come from the context, not the client.
		client: &http.Client{},
	}
}

// Health probes the engine. A 200 response means the engine is available.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// SubmitScan submits a single scan. A nil error means the engine accepted the
// scan; the returned response carries the resolved reference.
func (c *Client) SubmitScan(ctx context.Context, reqBody ScanRequest) (*ScanResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ScanTimeout)
	defer cancel()

	var out ScanResponse
	if err := c.post(ctx, "/scan", reqBody, &out); err != nil {
		return nil, err
	}
	if out.Status != StatusAccepted {
		return nil, &RejectionError{Message: out.Message}
	}
	return &out, nil
}

// SubmitMultiScan submits a batched scan. The response is returned even when
// status is not "accepted" so the caller can inspect per-item resolution.
func (c *Client) SubmitMultiScan(ctx context.Context, reqBody MultiScanRequest) (*MultiScanResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MultiScanTimeout)
	defer cancel()

	var out MultiScanResponse
	if err := c.post(ctx, "/multi_scan", reqBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LeakWatch-API/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read engine response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The engine reports rejections in the response body when it can.
		var rejected struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &rejected) == nil && rejected.Message != "" {
			return &RejectionError{Message: rejected.Message}
		}
		return &RejectionError{Message: fmt.Sprintf("engine returned status %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}

func (c *Client) transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
