package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakwatchio/api/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.EngineConfig{
		BaseURL:          baseURL,
		HealthTimeout:    200 * time.Millisecond,
		ScanTimeout:      200 * time.Millisecond,
		MultiScanTimeout: 200 * time.Millisecond,
	})
}

func TestHealth(t *testing.T) {
	t.Run("200 means available", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		assert.NoError(t, newTestClient(srv.URL).Health(context.Background()))
	})

	t.Run("non-200 means unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).Health(context.Background())
		assert.True(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("unreachable engine means unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		err := newTestClient(srv.URL).Health(context.Background())
		assert.True(t, errors.Is(err, ErrUnavailable))
	})
}

func TestSubmitScan(t *testing.T) {
	t.Run("accepted submission returns the resolved ref", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/scan", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req ScanRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "payments", req.ProjectName)

			_ = json.NewEncoder(w).Encode(ScanResponse{Status: StatusAccepted, Ref: "a1b2c3d4"})
		}))
		defer srv.Close()

		resp, err := newTestClient(srv.URL).SubmitScan(context.Background(), ScanRequest{
			ProjectName: "payments",
			RepoURL:     "https://git.example.com/payments",
			RefType:     "branch",
			Ref:         "main",
			CallbackURL: "https://leakwatch.example.com/api/v1/get_results/payments/x",
		})
		require.NoError(t, err)
		assert.Equal(t, "a1b2c3d4", resp.Ref)
	})

	t.Run("non-accepted status becomes a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ScanResponse{Status: "rejected", Message: "unknown reference"})
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).SubmitScan(context.Background(), ScanRequest{Ref: "nope"})
		var rejection *RejectionError
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, "unknown reference", rejection.Message)
	})

	t.Run("error status code carries the body message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"repository too large"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).SubmitScan(context.Background(), ScanRequest{})
		var rejection *RejectionError
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, "repository too large", rejection.Message)
	})

	t.Run("slow engine times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).SubmitScan(context.Background(), ScanRequest{})
		assert.True(t, errors.Is(err, ErrTimeout))
	})

	t.Run("unreachable engine is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newTestClient(srv.URL).SubmitScan(context.Background(), ScanRequest{})
		assert.True(t, errors.Is(err, ErrUnavailable))
	})
}

func TestSubmitMultiScan(t *testing.T) {
	t.Run("response is returned even when not accepted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/multi_scan", r.URL.Path)

			var req MultiScanRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Len(t, req.Repositories, 2)

			_ = json.NewEncoder(w).Encode(MultiScanResponse{
				Status: StatusValidationFailed,
				Data: []MultiScanItem{
					{Ref: "aaa111", Commit: "aaa111"},
					{Commit: CommitNotFound},
				},
			})
		}))
		defer srv.Close()

		resp, err := newTestClient(srv.URL).SubmitMultiScan(context.Background(), MultiScanRequest{
			Repositories: []ScanRequest{{Ref: "main"}, {Ref: "gone"}},
		})
		require.NoError(t, err)
		assert.Equal(t, StatusValidationFailed, resp.Status)
		require.Len(t, resp.Data, 2)
		assert.True(t, resp.Data[0].Resolved())
		assert.False(t, resp.Data[1].Resolved())
	})

	t.Run("accepted batch resolves positionally", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(MultiScanResponse{
				Status: StatusAccepted,
				Data:   []MultiScanItem{{Ref: "aaa111", Commit: "aaa111"}},
			})
		}))
		defer srv.Close()

		resp, err := newTestClient(srv.URL).SubmitMultiScan(context.Background(), MultiScanRequest{
			Repositories: []ScanRequest{{Ref: "main"}},
		})
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, resp.Status)
	})
}

func TestMultiScanItemResolved(t *testing.T) {
	assert.True(t, MultiScanItem{Commit: "abc"}.Resolved())
	assert.False(t, MultiScanItem{Commit: ""}.Resolved())
	assert.False(t, MultiScanItem{Commit: CommitNotFound}.Resolved())
}
