package daemon_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shuttle/internal/daemon"
	"shuttle/internal/queue"
	"shuttle/internal/stage"
	"shuttle/internal/testsupport"
	"shuttle/internal/workflow"
)

type idleHandler struct{ name string }

func (h idleHandler) Prepare(context.Context, *queue.Task) error { return nil }
func (h idleHandler) Execute(context.Context, *queue.Task) error { return nil }
func (h idleHandler) HealthCheck(context.Context) stage.Health   { return stage.Healthy(h.name) }

// blockingHandler holds Execute open until its context is cancelled.
type blockingHandler struct {
	name     string
	started  chan int64
	released chan struct{}
}

func (h blockingHandler) Prepare(context.Context, *queue.Task) error { return nil }

func (h blockingHandler) Execute(ctx context.Context, task *queue.Task) error {
	select {
	case h.started <- task.ID:
	default:
	}
	<-ctx.Done()
	close(h.released)
	return ctx.Err()
}

func (h blockingHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(h.name) }

func newTestDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, testsupport.NewLogger(t))
	manager.ConfigureStages(workflow.StageSet{
		Transfer: idleHandler{name: "transfer"},
		Finalize: idleHandler{name: "finalize"},
	})
	d, err := daemon.New(cfg, store, testsupport.NewLogger(t), manager, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	status := d.Status(ctx)
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LockFilePath == "" || status.QueueDBPath == "" {
		t.Fatalf("expected lock and db paths, got %+v", status)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon stopped")
	}
}

func TestEnqueueValidatesSource(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{RemotePath: "clients/a/x.webm"}); err == nil {
		t.Fatal("expected missing source path to fail")
	}

	dir := t.TempDir()
	unsupported := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, unsupported, 16)
	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{SourcePath: unsupported, RemotePath: "clients/a/x.webm"}); err == nil {
		t.Fatal("expected unsupported extension to fail")
	}

	recording := filepath.Join(dir, "checkin.webm")
	testsupport.WriteFile(t, recording, 128)
	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{SourcePath: recording}); err == nil {
		t.Fatal("expected missing remote path to fail")
	}
}

func TestRemoveQueueTaskAbortsInFlightTransfer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	transferStage := blockingHandler{
		name:     "transfer",
		started:  make(chan int64, 1),
		released: make(chan struct{}),
	}
	manager := workflow.NewManager(cfg, store, testsupport.NewLogger(t))
	manager.ConfigureStages(workflow.StageSet{
		Transfer: transferStage,
		Finalize: idleHandler{name: "finalize"},
	})
	d, err := daemon.New(cfg, store, testsupport.NewLogger(t), manager, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	recording := filepath.Join(t.TempDir(), "checkin.webm")
	testsupport.WriteFile(t, recording, 128)
	task, err := d.Enqueue(ctx, daemon.EnqueueParams{
		SourcePath: recording,
		RemotePath: "clients/alpha/checkin.webm",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	select {
	case <-transferStage.started:
	case <-time.After(10 * time.Second):
		t.Fatal("transfer never started")
	}

	removed, err := d.RemoveQueueTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("RemoveQueueTask: %v", err)
	}
	if !removed {
		t.Fatal("expected in-flight task removed")
	}

	select {
	case <-transferStage.released:
	case <-time.After(10 * time.Second):
		t.Fatal("in-flight transfer was not aborted")
	}

	if got, err := store.GetByID(ctx, task.ID); err != nil || got != nil {
		t.Fatalf("expected task gone, got %#v err %v", got, err)
	}
}

func TestEnqueueInfersMediaKindAndRejectsActiveDuplicate(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	dir := t.TempDir()
	recording := filepath.Join(dir, "checkin.m4a")
	testsupport.WriteFile(t, recording, 256)

	task, err := d.Enqueue(ctx, daemon.EnqueueParams{
		SourcePath: recording,
		RemotePath: "clients/alpha/checkin.m4a",
		ClientName: "Alpha",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if task.MediaKind != queue.MediaAudio {
		t.Fatalf("expected audio kind, got %q", task.MediaKind)
	}
	if task.Size != 256 {
		t.Fatalf("expected size from stat, got %d", task.Size)
	}

	_, err = d.Enqueue(ctx, daemon.EnqueueParams{
		SourcePath: recording,
		RemotePath: "clients/alpha/checkin.m4a",
	})
	if err == nil || !strings.Contains(err.Error(), "active upload") {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	task.Status = queue.StatusCompleted
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{
		SourcePath: recording,
		RemotePath: "clients/alpha/checkin.m4a",
	}); err != nil {
		t.Fatalf("expected re-enqueue after completion to succeed: %v", err)
	}
}
