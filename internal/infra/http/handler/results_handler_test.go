package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// stubScanRepo serves a single scan. Methods the callback path never touches
// fall through to the embedded nil interface and panic loudly if reached.
type stubScanRepo struct {
	scan.Repository
	sc *scan.Scan
}

func (r *stubScanRepo) GetByID(_ context.Context, id shared.ID) (*scan.Scan, error) {
	if r.sc != nil && r.sc.ID == id {
		return r.sc, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubScanRepo) GetByIDTx(ctx context.Context, _ *sql.Tx, id shared.ID) (*scan.Scan, error) {
	return r.GetByID(ctx, id)
}

func (r *stubScanRepo) Update(context.Context, *scan.Scan) error { return nil }

func (r *stubScanRepo) UpdateTx(context.Context, *sql.Tx, *scan.Scan) error { return nil }

type stubTransactor struct{}

func (stubTransactor) Transaction(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type recordingEnqueuer struct {
	scanIDs []shared.ID
	results []app.ScanResults
}

func (e *recordingEnqueuer) EnqueueReconcile(_ context.Context, scanID shared.ID, results app.ScanResults) error {
	e.scanIDs = append(e.scanIDs, scanID)
	e.results = append(e.results, results)
	return nil
}

func newResultsHandler(t *testing.T) (*ResultsHandler, *scan.Scan, *recordingEnqueuer) {
	t.Helper()

	sc, err := scan.NewScan("payments", scan.RefTypeBranch, "main", "")
	require.NoError(t, err)
	require.NoError(t, sc.MarkRunning(""))

	enq := &recordingEnqueuer{}
	svc := app.NewResultsService(stubTransactor{}, &stubScanRepo{sc: sc}, enq, logger.NewNop())
	return NewResultsHandler(svc, logger.NewNop()), sc, enq
}

func callbackRequest(projectName, scanID string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/get_results/"+projectName+"/"+scanID, bytes.NewReader(body))
	req.SetPathValue("project_name", projectName)
	req.SetPathValue("scan_id", scanID)
	return req
}

// gzipEnvelope wraps a payload the way the engine does for large result sets.
func gzipEnvelope(t *testing.T, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	body, err := json.Marshal(map[string]any{
		"compressed":      true,
		"data":            base64.StdEncoding.EncodeToString(buf.Bytes()),
		"original_size":   len(payload),
		"compressed_size": buf.Len(),
	})
	require.NoError(t, err)
	return body
}

func TestReceive(t *testing.T) {
	completed := []byte(`{"Status":"completed","RepoCommit":"abc123","Results":[{"path":"src/a.go","line":7,"secret":"tok_1","severity":"High"}]}`)

	t.Run("plain payload is accepted", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), completed))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "accepted", resp.Status)

		require.Len(t, enq.results, 1)
		assert.Equal(t, "abc123", enq.results[0].RepoCommit)
		assert.Len(t, enq.results[0].Results, 1)
	})

	t.Run("compressed envelope is unwrapped transparently", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), gzipEnvelope(t, completed)))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, enq.results, 1)
		assert.Equal(t, "abc123", enq.results[0].RepoCommit)
		assert.Equal(t, "tok_1", enq.results[0].Results[0].Secret)
	})

	t.Run("invalid base64 in envelope fails closed", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		body := []byte(`{"compressed":true,"data":"!!!not-base64!!!"}`)
		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, enq.results)
	})

	t.Run("corrupt gzip in envelope fails closed", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		garbage := base64.StdEncoding.EncodeToString([]byte("definitely not gzip"))
		body := []byte(`{"compressed":true,"data":"` + garbage + `"}`)
		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, enq.results)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		h, sc, _ := newResultsHandler(t)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), []byte(`{"Status":`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unrecognized status is rejected at the boundary", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), []byte(`{"Status":"Done"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Done")
		assert.Empty(t, enq.results)
	})

	t.Run("unknown scan returns 404", func(t *testing.T) {
		h, _, _ := newResultsHandler(t)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", shared.NewID().String(), completed))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("project mismatch returns 404", func(t *testing.T) {
		h, sc, _ := newResultsHandler(t)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("billing", sc.ID.String(), completed))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing path values are rejected", func(t *testing.T) {
		h, _, _ := newResultsHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/get_results//",
			strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("partial then completed sequence", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		for _, body := range []string{
			`{"Status":"partial","AllFiles":120,"FilesExcluded":3}`,
			`{"Status":"partial","AllFiles":250,"FilesExcluded":5}`,
		} {
			rec := httptest.NewRecorder()
			h.Receive(rec, callbackRequest("payments", sc.ID.String(), []byte(body)))
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		// Progress is replaced per delivery, never summed.
		assert.Equal(t, 250, sc.FilesScanned)
		assert.Equal(t, 5, sc.ExcludedFilesCount)
		assert.Empty(t, enq.results)

		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), completed))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, enq.results, 1)
		assert.Equal(t, "abc123", enq.results[0].RepoCommit)
		assert.Equal(t, scan.StatusRunning, sc.Status)
	})

	t.Run("error payload is acknowledged", func(t *testing.T) {
		h, sc, enq := newResultsHandler(t)

		body := []byte(`{"Status":"Error","Message":"clone failed"}`)
		rec := httptest.NewRecorder()
		h.Receive(rec, callbackRequest("payments", sc.ID.String(), body))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, enq.results)
		assert.Equal(t, scan.StatusFailed, sc.Status)
	})
}
