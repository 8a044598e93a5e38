package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueReconcile enqueues reconciliation of a completed results payload.
// Implements app.ReconcileEnqueuer.
func (c *Client) EnqueueReconcile(ctx context.Context, scanID shared.ID, results app.ScanResults) error {
	task, err := NewScanReconcileTask(ReconcilePayload{
		ScanID:  scanID.String(),
		Results: results,
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue reconciliation",
			"scan_id", scanID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("reconciliation queued",
		"task_id", info.ID,
		"scan_id", scanID.String(),
		"queue", info.Queue,
	)
	return nil
}
