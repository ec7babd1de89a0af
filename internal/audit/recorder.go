package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink persists audit entries synchronously.
type Sink interface {
	InsertOpera(ctx context.Context, entry OperaLog) error
	InsertLogin(ctx context.Context, entry LoginLog) error
}

// Enqueuer hands audit entries to the background queue.
type Enqueuer interface {
	EnqueueOperaLog(ctx context.Context, entry OperaLog) error
	EnqueueLoginLog(ctx context.Context, entry LoginLog) error
}

// Recorder is the fire-and-forget entry point for the audit trails. It
// prefers the queue and falls back to a direct insert when enqueueing
// fails. Recording never returns an error to the caller: a lost audit
// entry must not fail the request that triggered it.
type Recorder struct {
	logger   *slog.Logger
	sink     Sink
	enqueuer Enqueuer
	timeout  time.Duration
}

// NewRecorder builds a Recorder. The enqueuer may be nil, in which case
// every record goes straight to the sink.
func NewRecorder(logger *slog.Logger, sink Sink, enqueuer Enqueuer) *Recorder {
	return &Recorder{logger: logger, sink: sink, enqueuer: enqueuer, timeout: 5 * time.Second}
}

// RecordOpera captures one API operation.
func (r *Recorder) RecordOpera(ctx context.Context, entry OperaLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if r.enqueuer != nil {
		err := r.enqueuer.EnqueueOperaLog(ctx, entry)
		if err == nil {
			return
		}
		r.logWarn("enqueue opera log", err)
	}
	r.syncInsert(func(ctx context.Context) error {
		return r.sink.InsertOpera(ctx, entry)
	})
}

// RecordLogin captures one login attempt. Implements the recorder hook the
// auth service expects.
func (r *Recorder) RecordLogin(ctx context.Context, username, ip, userAgent string, ok bool, msg string) {
	entry := LoginLog{
		Username:  username,
		IP:        ip,
		UserAgent: userAgent,
		Success:   ok,
		Msg:       msg,
		CreatedAt: time.Now().UTC(),
	}
	if r.enqueuer != nil {
		err := r.enqueuer.EnqueueLoginLog(ctx, entry)
		if err == nil {
			return
		}
		r.logWarn("enqueue login log", err)
	}
	r.syncInsert(func(ctx context.Context) error {
		return r.sink.InsertLogin(ctx, entry)
	})
}

// The fallback runs on a detached context so a cancelled request cannot
// abort the write.
func (r *Recorder) syncInsert(insert func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := insert(ctx); err != nil {
		r.logWarn("write audit entry", err)
	}
}

func (r *Recorder) logWarn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, slog.Any("error", err))
	}
}
