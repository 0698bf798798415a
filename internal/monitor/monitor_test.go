package monitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shuttle/internal/monitor"
	"shuttle/internal/queue"
	"shuttle/internal/spool"
	"shuttle/internal/testsupport"
)

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	failNext  bool
}

func (r *recordingNotifier) NotifyUploadCompleted(_ context.Context, clientName, remotePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("ntfy unavailable")
	}
	r.completed = append(r.completed, remotePath)
	return nil
}

func (r *recordingNotifier) NotifyUploadFailed(_ context.Context, clientName, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, reason)
	return nil
}

func (r *recordingNotifier) NotifyQueueDrained(context.Context, int, int, time.Duration) error {
	return nil
}

func (r *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed), len(r.failed)
}

func TestPollNotifiesTerminalTasksOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	completed := testsupport.NewTask(t, store, "clients/alpha/a.webm", "")
	completed.Status = queue.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	failed := testsupport.NewTask(t, store, "clients/alpha/b.webm", "")
	failed.SetError("upload rejected by storage")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	notifier := &recordingNotifier{}
	mon := monitor.New(cfg, store, nil, notifier, testsupport.NewLogger(t))

	mon.Poll(ctx)
	mon.Poll(ctx)

	gotCompleted, gotFailed := notifier.counts()
	if gotCompleted != 1 || gotFailed != 1 {
		t.Fatalf("expected one notification per task, got completed=%d failed=%d", gotCompleted, gotFailed)
	}

	remaining, err := store.UnnotifiedTerminal(ctx)
	if err != nil {
		t.Fatalf("UnnotifiedTerminal: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no unnotified tasks, got %d", len(remaining))
	}
}

func TestPollRetriesAfterNotifierFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "clients/alpha/a.webm", "")
	task.Status = queue.StatusCompleted
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	notifier := &recordingNotifier{failNext: true}
	mon := monitor.New(cfg, store, nil, notifier, testsupport.NewLogger(t))

	mon.Poll(ctx)
	gotCompleted, _ := notifier.counts()
	if gotCompleted != 0 {
		t.Fatalf("expected failed delivery to record nothing, got %d", gotCompleted)
	}

	mon.Poll(ctx)
	gotCompleted, _ = notifier.counts()
	if gotCompleted != 1 {
		t.Fatalf("expected retry to deliver notification, got %d", gotCompleted)
	}
}

func TestPurgeExpiredRemovesTasksAndPayloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	spoolManager, err := spool.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	source := filepath.Join(filepath.Dir(cfg.Paths.SpoolDir), "source.webm")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, "clients/alpha/a.webm", source)
	spoolPath, err := spoolManager.Put(ctx, task.TaskKey, source)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	task.Status = queue.StatusCompleted
	task.SpoolPath = spoolPath
	task.Notified = true
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	active := testsupport.NewTask(t, store, "clients/alpha/b.webm", source)

	mon := monitor.New(cfg, store, spoolManager, &recordingNotifier{}, testsupport.NewLogger(t))
	mon.PurgeExpired(ctx, time.Now().UTC().Add(time.Hour))

	if got, err := store.GetByID(ctx, task.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	} else if got != nil {
		t.Fatal("expected purged task to be gone")
	}
	if got, err := store.GetByID(ctx, active.ID); err != nil || got == nil {
		t.Fatalf("expected pending task to survive purge (task=%v err=%v)", got, err)
	}
	if _, err := os.Stat(spoolPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected spooled payload removed: %s", spoolPath)
	}
}
