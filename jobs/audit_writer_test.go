package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-admin/meridian-admin/internal/audit"
)

type memorySink struct {
	operas []audit.OperaLog
	logins []audit.LoginLog
}

func (s *memorySink) InsertOpera(_ context.Context, entry audit.OperaLog) error {
	s.operas = append(s.operas, entry)
	return nil
}

func (s *memorySink) InsertLogin(_ context.Context, entry audit.LoginLog) error {
	s.logins = append(s.logins, entry)
	return nil
}

type stubPruner struct {
	cutoff time.Time
}

func (p *stubPruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 7, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleOperaLogRoundTrip(t *testing.T) {
	sink := &memorySink{}
	job := NewAuditWriterJob(sink, discardLogger())

	task, err := NewOperaLogTask(audit.OperaLog{Method: "GET", Path: "/api/v1/sys/users", Status: 200})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := job.HandleOperaLog(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.operas) != 1 || sink.operas[0].Path != "/api/v1/sys/users" {
		t.Fatalf("entry not persisted: %+v", sink.operas)
	}
}

func TestHandleLoginLogBadPayloadSkipsRetry(t *testing.T) {
	job := NewAuditWriterJob(&memorySink{}, discardLogger())

	task := asynq.NewTask(TaskTypeLoginLog, []byte("not json"))
	err := job.HandleLoginLog(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandleAuditPruneDefaultsRetention(t *testing.T) {
	pruner := &stubPruner{}
	job := NewAuditPruneJob(pruner, discardLogger())

	task, err := NewAuditPruneTask(AuditPrunePayload{})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	wantFloor := time.Now().UTC().AddDate(0, 0, -91)
	if pruner.cutoff.Before(wantFloor) {
		t.Fatalf("cutoff too old: %v", pruner.cutoff)
	}
}
