package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task, err := store.NewTask(ctx, queue.NewTaskParams{
		RemotePath: "sessions/2024/checkin-1.mp4",
		SourcePath: "/tmp/checkin-1.mp4",
		Size:       2048,
	})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("expected task ID to be assigned")
	}
	if task.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}
	if task.TaskKey == "" {
		t.Fatal("expected task key to be generated")
	}
	if task.BytesTotal != 2048 {
		t.Fatalf("expected bytes total seeded from size, got %d", task.BytesTotal)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.RemotePath != "sessions/2024/checkin-1.mp4" {
		t.Fatalf("unexpected fetched task: %#v", fetched)
	}

	found, err := store.FindByRemotePath(ctx, "sessions/2024/checkin-1.mp4")
	if err != nil {
		t.Fatalf("FindByRemotePath failed: %v", err)
	}
	if found == nil || found.ID != task.ID {
		t.Fatalf("expected to find inserted task, got %#v", found)
	}
}

func TestNewTaskRequiresRemotePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewTask(ctx, queue.NewTaskParams{SourcePath: "/tmp/a.mp4"}); err == nil {
		t.Fatal("expected error when remote path missing")
	}
	if _, err := store.NewTask(ctx, queue.NewTaskParams{RemotePath: "sessions/a.mp4"}); err == nil {
		t.Fatal("expected error when source path missing")
	}
}

func TestNewTaskRejectsUnknownMediaKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.NewTask(context.Background(), queue.NewTaskParams{
		RemotePath: "sessions/a.mp4",
		SourcePath: "/tmp/a.mp4",
		MediaKind:  queue.MediaKind("slideshow"),
	})
	if err == nil {
		t.Fatal("expected error for unknown media kind")
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewTask(t, store, "sessions/first.mp4", "/tmp/first.mp4")
	second := testsupport.NewTask(t, store, "sessions/second.mp4", "/tmp/second.mp4")

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending task %d, got %#v", first.ID, next)
	}

	first.Status = queue.StatusUploading
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err = store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected task %d, got %#v", second.ID, next)
	}

	none, err := store.NextForStatuses(ctx)
	if err != nil {
		t.Fatalf("NextForStatuses with no statuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil task for empty status set, got %#v", none)
	}
}

func TestUpdatePersistsLifecycleFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "sessions/update.mp4", "/tmp/update.mp4")

	task.Status = queue.StatusProcessing
	task.SpoolPath = "/tmp/spool/update.mp4"
	task.ContentType = "video/mp4"
	task.SetProgress(100, 2048, 2048)
	task.HookInvoked = true
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusProcessing {
		t.Fatalf("expected processing status, got %s", fetched.Status)
	}
	if fetched.SpoolPath != "/tmp/spool/update.mp4" {
		t.Fatalf("unexpected spool path %q", fetched.SpoolPath)
	}
	if !fetched.HookInvoked {
		t.Fatal("expected hook invoked flag to persist")
	}
	if fetched.ProgressPercent != 100 || fetched.BytesSent != 2048 {
		t.Fatalf("unexpected progress %#v", fetched)
	}
}

func TestReclaimStaleActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewTask(t, store, "sessions/stale.mp4", "/tmp/stale.mp4")
	stale.Status = queue.StatusUploading
	past := time.Now().UTC().Add(-10 * time.Minute)
	stale.LastHeartbeat = &past
	stale.SetProgress(40, 800, 2000)
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewTask(t, store, "sessions/fresh.mp4", "/tmp/fresh.mp4")
	fresh.Status = queue.StatusUploading
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	transferred := testsupport.NewTask(t, store, "sessions/transferred.mp4", "/tmp/transferred.mp4")
	transferred.Status = queue.StatusProcessing
	transferred.LastHeartbeat = &past
	if err := store.Update(ctx, transferred); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleActive(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleActive failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 tasks reclaimed, got %d", count)
	}

	reset, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reset.Status != queue.StatusPending {
		t.Fatalf("expected reclaimed task pending, got %s", reset.Status)
	}
	if reset.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}
	if reset.ProgressPercent != 0 || reset.BytesSent != 0 {
		t.Fatalf("expected progress reset, got %#v", reset)
	}

	kept, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if kept.Status != queue.StatusUploading {
		t.Fatalf("expected fresh task untouched, got %s", kept.Status)
	}

	// Processing tasks already transferred; the reclaim only drops the lease.
	released, err := store.GetByID(ctx, transferred.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if released.Status != queue.StatusProcessing {
		t.Fatalf("expected processing task to keep status, got %s", released.Status)
	}
	if released.LastHeartbeat != nil {
		t.Fatal("expected processing heartbeat cleared")
	}
}

func TestRetryResetsErroredTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var errored []*queue.Task
	for i := 0; i < 3; i++ {
		task := testsupport.NewTask(t, store, fmt.Sprintf("sessions/retry-%d.mp4", i), fmt.Sprintf("/tmp/retry-%d.mp4", i))
		task.SetError("upload request failed")
		task.Notified = true
		if err := store.Update(ctx, task); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		errored = append(errored, task)
	}
	completed := testsupport.NewTask(t, store, "sessions/done.mp4", "/tmp/done.mp4")
	completed.Status = queue.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.Retry(ctx, errored[0].ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 task retried, got %d", count)
	}

	count, err = store.Retry(ctx)
	if err != nil {
		t.Fatalf("Retry all failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 remaining tasks retried, got %d", count)
	}

	for _, task := range errored {
		updated, err := store.GetByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != queue.StatusPending {
			t.Fatalf("expected pending after retry, got %s", updated.Status)
		}
		if updated.ErrorMessage != "" {
			t.Fatalf("expected error message cleared, got %q", updated.ErrorMessage)
		}
		if updated.Notified {
			t.Fatal("expected notified flag cleared so the retry outcome is surfaced")
		}
	}

	done, err := store.GetByID(ctx, completed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed task untouched, got %s", done.Status)
	}
}

func TestPurgeTerminalBefore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	old := testsupport.NewTask(t, store, "sessions/old.mp4", "/tmp/old.mp4")
	old.Status = queue.StatusCompleted
	if err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	recent := testsupport.NewTask(t, store, "sessions/recent.mp4", "/tmp/recent.mp4")
	recent.Status = queue.StatusError
	if err := store.Update(ctx, recent); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	active := testsupport.NewTask(t, store, "sessions/active.mp4", "/tmp/active.mp4")
	active.Status = queue.StatusUploading
	if err := store.Update(ctx, active); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Only tasks updated before the cutoff are purged.
	purged, err := store.PurgeTerminalBefore(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("PurgeTerminalBefore failed: %v", err)
	}
	if len(purged) != 2 {
		t.Fatalf("expected 2 purged tasks, got %d", len(purged))
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != active.ID {
		t.Fatalf("expected only active task to remain, got %#v", remaining)
	}

	purged, err = store.PurgeTerminalBefore(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("PurgeTerminalBefore failed: %v", err)
	}
	if purged != nil {
		t.Fatalf("expected nothing left to purge, got %#v", purged)
	}
}

func TestHookAndNotifiedFlags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "sessions/hook.mp4", "/tmp/hook.mp4")
	task.Status = queue.StatusCompleted
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pending, err := store.UnnotifiedTerminal(ctx)
	if err != nil {
		t.Fatalf("UnnotifiedTerminal failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != task.ID {
		t.Fatalf("expected task in unnotified set, got %#v", pending)
	}

	if err := store.MarkHookInvoked(ctx, task.ID); err != nil {
		t.Fatalf("MarkHookInvoked failed: %v", err)
	}
	if err := store.MarkNotified(ctx, task.ID); err != nil {
		t.Fatalf("MarkNotified failed: %v", err)
	}

	updated, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !updated.HookInvoked || !updated.Notified {
		t.Fatalf("expected flags set, got %#v", updated)
	}

	pending, err = store.UnnotifiedTerminal(ctx)
	if err != nil {
		t.Fatalf("UnnotifiedTerminal failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty unnotified set, got %#v", pending)
	}
}

func TestHealthCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusUploading,
		queue.StatusProcessing,
		queue.StatusCompleted,
		queue.StatusError,
	}
	for i, status := range statuses {
		task := testsupport.NewTask(t, store, fmt.Sprintf("sessions/health-%d.mp4", i), fmt.Sprintf("/tmp/health-%d.mp4", i))
		task.Status = status
		if err := store.Update(ctx, task); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 5 {
		t.Fatalf("expected 5 tasks, got %d", health.Total)
	}
	if health.Pending != 1 || health.Active != 2 || health.Completed != 1 || health.Errored != 1 {
		t.Fatalf("unexpected health summary %#v", health)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}

func TestClearVariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	completed := testsupport.NewTask(t, store, "sessions/c.mp4", "/tmp/c.mp4")
	completed.Status = queue.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	errored := testsupport.NewTask(t, store, "sessions/e.mp4", "/tmp/e.mp4")
	errored.SetError("boom")
	if err := store.Update(ctx, errored); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewTask(t, store, "sessions/p.mp4", "/tmp/p.mp4")

	count, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 completed cleared, got %d", count)
	}

	count, err = store.ClearErrored(ctx)
	if err != nil {
		t.Fatalf("ClearErrored failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 errored cleared, got %d", count)
	}

	count, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining task cleared, got %d", count)
	}
}
