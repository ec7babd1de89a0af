package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-admin/meridian-admin/internal/audit"
)

// AuditWriterJob drains queued audit entries into PostgreSQL.
type AuditWriterJob struct {
	Sink   audit.Sink
	Logger *slog.Logger
}

// NewAuditWriterJob initialises the audit writer handlers.
func NewAuditWriterJob(sink audit.Sink, logger *slog.Logger) *AuditWriterJob {
	return &AuditWriterJob{Sink: sink, Logger: logger}
}

// HandleOperaLog processes TaskTypeOperaLog tasks.
func (j *AuditWriterJob) HandleOperaLog(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sink == nil {
		return errors.New("audit writer: handler not configured")
	}
	var entry audit.OperaLog
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return asynq.SkipRetry
	}
	if err := j.Sink.InsertOpera(ctx, entry); err != nil {
		j.Logger.Warn("persist opera log", slog.Any("error", err))
		return err
	}
	return nil
}

// HandleLoginLog processes TaskTypeLoginLog tasks.
func (j *AuditWriterJob) HandleLoginLog(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sink == nil {
		return errors.New("audit writer: handler not configured")
	}
	var entry audit.LoginLog
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return asynq.SkipRetry
	}
	if err := j.Sink.InsertLogin(ctx, entry); err != nil {
		j.Logger.Warn("persist login log", slog.Any("error", err))
		return err
	}
	return nil
}

// Pruner trims aged audit rows.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPruneJob applies the retention window on a schedule.
type AuditPruneJob struct {
	Repo   Pruner
	Logger *slog.Logger
}

// NewAuditPruneJob initialises the prune handler.
func NewAuditPruneJob(repo Pruner, logger *slog.Logger) *AuditPruneJob {
	return &AuditPruneJob{Repo: repo, Logger: logger}
}

// Handle processes TaskTypeAuditPrune tasks.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -payload.RetentionDays)
	count, err := j.Repo.PruneBefore(ctx, cutoff)
	if err != nil {
		j.Logger.Warn("prune audit trails", slog.Any("error", err))
		return err
	}
	j.Logger.Info("audit trails pruned",
		slog.Int64("deleted", count),
		slog.Int("retention_days", payload.RetentionDays))
	return nil
}
