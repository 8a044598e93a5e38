package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// maxDecompressedSize bounds the inflated payload so a hostile or broken
// engine cannot exhaust memory with a compression bomb.
const maxDecompressedSize = 256 << 20 // 256 MB

// ResultsHandler receives result callbacks from the detection engine.
type ResultsHandler struct {
	service *app.ResultsService
	logger  *logger.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(svc *app.ResultsService, log *logger.Logger) *ResultsHandler {
	return &ResultsHandler{
		service: svc,
		logger:  log,
	}
}

// compressedEnvelope is the optional wrapper the engine puts around large
// payloads: gzipped JSON, base64-encoded.
type compressedEnvelope struct {
	Compressed     bool   `json:"compressed"`
	Data           string `json:"data"`
	OriginalSize   int64  `json:"original_size"`
	CompressedSize int64  `json:"compressed_size"`
}

// callbackResponse is the acknowledgement returned to the engine.
type callbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Receive handles POST /api/v1/get_results/{project_name}/{scan_id}.
// A "completed" payload is acknowledged once reconciliation is scheduled;
// the engine must poll scan status to observe the final state.
func (h *ResultsHandler) Receive(w http.ResponseWriter, r *http.Request) {
	projectName := r.PathValue("project_name")
	scanID := r.PathValue("scan_id")
	if projectName == "" || scanID == "" {
		h.reject(w, http.StatusBadRequest, "project name and scan id are required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.reject(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	payload, err := decodePayload(body)
	if err != nil {
		// Fails closed: a payload we cannot decode never touches the database.
		h.logger.Warn("rejecting undecodable results payload",
			"scan_id", scanID,
			"project", projectName,
			"error", err,
		)
		h.reject(w, http.StatusBadRequest, err.Error())
		return
	}

	if !payload.Status.IsValid() {
		h.reject(w, http.StatusBadRequest, fmt.Sprintf("unrecognized status %q", payload.Status))
		return
	}

	if err := h.service.ReceiveResults(r.Context(), projectName, scanID, payload); err != nil {
		switch {
		case shared.IsNotFound(err):
			h.reject(w, http.StatusNotFound, "scan not found")
		case shared.IsValidation(err), shared.IsConflict(err):
			h.reject(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to process results", "scan_id", scanID, "error", err)
			h.reject(w, http.StatusInternalServerError, "failed to process results")
		}
		return
	}

	respondJSON(w, http.StatusOK, callbackResponse{
		Status:  "accepted",
		Message: "results accepted",
	})
}

func (h *ResultsHandler) reject(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, callbackResponse{
		Status:  "error",
		Message: message,
	})
}

// decodePayload decodes a callback body, transparently unwrapping the
// compressed envelope when present. Any decode or decompression error aborts
// the whole request.
func decodePayload(body []byte) (app.ScanResults, error) {
	var envelope compressedEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Compressed {
		inflated, err := inflate(envelope.Data)
		if err != nil {
			return app.ScanResults{}, err
		}
		body = inflated
	}

	var payload app.ScanResults
	if err := json.Unmarshal(body, &payload); err != nil {
		return app.ScanResults{}, fmt.Errorf("invalid results payload: %w", err)
	}
	return payload, nil
}

// inflate base64-decodes and gunzips an envelope's data field.
func inflate(data string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip payload: %w", err)
	}
	defer zr.Close()

	inflated, err := io.ReadAll(io.LimitReader(zr, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	if int64(len(inflated)) > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", int64(maxDecompressedSize))
	}
	return inflated, nil
}
