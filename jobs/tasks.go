// Package jobs runs the background side of the audit pipeline on Asynq.
// The HTTP process enqueues, the worker process drains.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/meridian-admin/meridian-admin/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOperaLog is the task type for persisting operation records.
	TaskTypeOperaLog = "audit:opera"
	// TaskTypeLoginLog is the task type for persisting login records.
	TaskTypeLoginLog = "audit:login"
	// TaskTypeAuditPrune is the task type for trimming old audit records.
	TaskTypeAuditPrune = "audit:prune"
)

// AuditPrunePayload bounds the retention window for scheduled pruning.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewOperaLogTask constructs an Asynq task carrying one operation record.
func NewOperaLogTask(entry audit.OperaLog) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOperaLog, data), nil
}

// NewLoginLogTask constructs an Asynq task carrying one login record.
func NewLoginLogTask(entry audit.LoginLog) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLoginLog, data), nil
}

// NewAuditPruneTask constructs the scheduled prune task.
func NewAuditPruneTask(payload AuditPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPrune, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueOperaLog enqueues an operation record for background persistence.
func (c *Client) EnqueueOperaLog(ctx context.Context, entry audit.OperaLog) error {
	task, err := NewOperaLogTask(entry)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// EnqueueLoginLog enqueues a login record for background persistence.
func (c *Client) EnqueueLoginLog(ctx context.Context, entry audit.LoginLog) error {
	task, err := NewLoginLogTask(entry)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
