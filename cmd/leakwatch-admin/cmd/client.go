package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the LeakWatch API HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	verbose    bool
}

// NewClient creates a new API client.
func NewClient(baseURL string, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: verbose,
	}
}

// Do performs an HTTP request and returns the response body.
func (c *Client) Do(method, path string, body any) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(context.Background(), method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.verbose {
		fmt.Printf(">>> %s %s\n", method, url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if c.verbose {
		fmt.Printf("<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, parseAPIError(resp.StatusCode, respBody)
	}

	return respBody, resp.StatusCode, nil
}

// Get performs a GET request.
func (c *Client) Get(path string) ([]byte, error) {
	data, _, err := c.Do(http.MethodGet, path, nil)
	return data, err
}

// Post performs a POST request.
func (c *Client) Post(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPost, path, body)
	return data, err
}

// Put performs a PUT request.
func (c *Client) Put(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPut, path, body)
	return data, err
}

// Patch performs a PATCH request.
func (c *Client) Patch(path string, body any) ([]byte, error) {
	data, _, err := c.Do(http.MethodPatch, path, body)
	return data, err
}

// Delete performs a DELETE request.
func (c *Client) Delete(path string) error {
	_, _, err := c.Do(http.MethodDelete, path, nil)
	return err
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}

	if apiErr.Message == "" {
		switch statusCode {
		case 404:
			apiErr.Message = "resource not found"
		case 409:
			apiErr.Message = "conflict: resource already exists"
		case 503:
			apiErr.Message = "detection engine unavailable"
		default:
			apiErr.Message = fmt.Sprintf("API error: %d %s", statusCode, http.StatusText(statusCode))
		}
	}

	return apiErr
}

// Response types matching server handler structs.

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RepoURL   string `json:"repo_url"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ProjectListResponse struct {
	Data       []ProjectResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

type ScanResponse struct {
	ID                 string   `json:"id"`
	ProjectName        string   `json:"project_name"`
	RefType            string   `json:"ref_type"`
	Ref                string   `json:"ref"`
	RepoCommit         string   `json:"repo_commit,omitempty"`
	Status             string   `json:"status"`
	ErrorMessage       string   `json:"error_message,omitempty"`
	StartedAt          *string  `json:"started_at,omitempty"`
	CompletedAt        *string  `json:"completed_at,omitempty"`
	FilesScanned       int      `json:"files_scanned"`
	ExcludedFilesCount int      `json:"excluded_files_count"`
	ExcludedFiles      []string `json:"excluded_files,omitempty"`
	DetectedLanguages  []string `json:"detected_languages,omitempty"`
	DetectedFrameworks []string `json:"detected_frameworks,omitempty"`
	HighCount          int      `json:"high_secrets_count"`
	PotentialCount     int      `json:"potential_secrets_count"`
	Initiator          string   `json:"initiator,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

type ScanListResponse struct {
	Data       []ScanResponse `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
}

type MultiScanResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ScanIDs   []string `json:"scan_ids"`
	Initiator string   `json:"initiator,omitempty"`
	CreatedAt string   `json:"created_at"`
}

type MultiScanListResponse struct {
	Data       []MultiScanResponse `json:"data"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PerPage    int                 `json:"per_page"`
	TotalPages int                 `json:"total_pages"`
}

type MultiScanCreateResponse struct {
	MultiScan MultiScanResponse `json:"multi_scan"`
	Scans     []ScanResponse    `json:"scans"`
}

type FindingResponse struct {
	ID               string  `json:"id"`
	ScanID           string  `json:"scan_id"`
	FilePath         string  `json:"file_path"`
	LineNumber       int     `json:"line_number"`
	RawValue         string  `json:"raw_value"`
	Type             string  `json:"type"`
	Severity         string  `json:"severity"`
	Confidence       float64 `json:"confidence"`
	Context          string  `json:"context,omitempty"`
	Status           string  `json:"status"`
	IsException      bool    `json:"is_exception"`
	ExceptionComment string  `json:"exception_comment,omitempty"`
	RefutedAt        *string `json:"refuted_at,omitempty"`
	ReviewedBy       string  `json:"reviewed_by,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

type FindingListResponse struct {
	Data       []FindingResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}
