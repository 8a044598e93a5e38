// Package jobs provides background job definitions and handlers using Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// TypeScanReconcile is the task type for reconciling a completed payload.
const TypeScanReconcile = "scan:reconcile"

// QueueReconcile is the dedicated queue for reconciliation tasks.
const QueueReconcile = "reconcile"

// ReconcilePayload carries a completed results payload to the background
// worker. The full finding set travels inside the task so the worker never
// depends on the callback request still being around.
type ReconcilePayload struct {
	ScanID  string          `json:"scan_id"`
	Results app.ScanResults `json:"results"`
}

// NewScanReconcileTask creates a reconciliation task for a scan.
func NewScanReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reconcile payload: %w", err)
	}
	return asynq.NewTask(
		TypeScanReconcile,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueReconcile),
	), nil
}

// ReconcileProcessor performs the actual reconciliation work.
type ReconcileProcessor interface {
	ProcessResults(ctx context.Context, scanID shared.ID, results app.ScanResults) error
}

// ReconcileTaskHandler handles reconciliation tasks.
type ReconcileTaskHandler struct {
	processor ReconcileProcessor
	logger    *logger.Logger
}

// NewReconcileTaskHandler creates a new ReconcileTaskHandler.
func NewReconcileTaskHandler(processor ReconcileProcessor, log *logger.Logger) *ReconcileTaskHandler {
	return &ReconcileTaskHandler{
		processor: processor,
		logger:    log.With("handler", "reconcile_task"),
	}
}

// RegisterHandlers registers the reconciliation handlers on the mux.
func (h *ReconcileTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScanReconcile, h.HandleScanReconcile)
}

// HandleScanReconcile processes one reconciliation task.
func (h *ReconcileTaskHandler) HandleScanReconcile(ctx context.Context, task *asynq.Task) error {
	var payload ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads never become valid; skip retries.
		return fmt.Errorf("failed to unmarshal reconcile payload: %w: %w", err, asynq.SkipRetry)
	}

	scanID, err := shared.IDFromString(payload.ScanID)
	if err != nil {
		return fmt.Errorf("invalid scan id %q: %w: %w", payload.ScanID, err, asynq.SkipRetry)
	}

	h.logger.Info("processing reconciliation task",
		"scan_id", payload.ScanID,
		"findings", len(payload.Results.Results),
	)

	if err := h.processor.ProcessResults(ctx, scanID, payload.Results); err != nil {
		h.logger.Error("reconciliation task failed", "scan_id", payload.ScanID, "error", err)
		return err
	}
	return nil
}
