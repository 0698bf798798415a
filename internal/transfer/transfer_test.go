package transfer_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/queue"
	"shuttle/internal/services"
	"shuttle/internal/spool"
	"shuttle/internal/testsupport"
	"shuttle/internal/transfer"
	"shuttle/internal/uploader"
)

func newStageFixture(t *testing.T) (*transfer.Stage, *queue.Store, *testsupport.FakeStorage, *spool.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewFakeStorage()
	spoolManager, err := spool.NewManager(cfg)
	if err != nil {
		t.Fatalf("spool.NewManager: %v", err)
	}
	up := uploader.New(cfg, nil)
	return transfer.NewStage(cfg, store, fake, spoolManager, up, nil), store, fake, spoolManager
}

func TestPrepareSpoolsPresignsAndDetectsType(t *testing.T) {
	stg, store, fake, spoolManager := newStageFixture(t)

	source := filepath.Join(t.TempDir(), "checkin.mp4")
	testsupport.WriteFile(t, source, 2048)
	task := testsupport.NewTask(t, store, "sessions/checkin.mp4", source)

	if err := stg.Prepare(context.Background(), task); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if task.SpoolPath == "" || filepath.Dir(task.SpoolPath) != spoolManager.Dir() {
		t.Fatalf("expected payload spooled, got %q", task.SpoolPath)
	}
	if task.ContentType != "video/mp4" {
		t.Fatalf("expected detected content type, got %q", task.ContentType)
	}
	if !strings.HasPrefix(task.UploadURL, fake.PresignBase) {
		t.Fatalf("expected presigned URL, got %q", task.UploadURL)
	}
	if presigns := fake.Presigns(); len(presigns) != 1 || presigns[0] != "sessions/checkin.mp4" {
		t.Fatalf("unexpected presigns %v", presigns)
	}
}

func TestPrepareKeepsExistingURL(t *testing.T) {
	stg, store, fake, _ := newStageFixture(t)

	source := filepath.Join(t.TempDir(), "checkin.webm")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, "sessions/checkin.webm", source)
	task.UploadURL = "https://already.signed/sessions/checkin.webm"

	if err := stg.Prepare(context.Background(), task); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if task.UploadURL != "https://already.signed/sessions/checkin.webm" {
		t.Fatalf("expected URL untouched, got %q", task.UploadURL)
	}
	if len(fake.Presigns()) != 0 {
		t.Fatal("expected no new presign for task with URL")
	}
}

func TestPrepareFailsWhenPayloadGone(t *testing.T) {
	stg, store, _, _ := newStageFixture(t)

	task := testsupport.NewTask(t, store, "sessions/gone.mp4", filepath.Join(t.TempDir(), "gone.mp4"))
	err := stg.Prepare(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for missing payload")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found classification, got %v", err)
	}
}

func TestExecuteStreamsAndPersistsProgress(t *testing.T) {
	var received int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Body.Read(buf)
			received += int64(n)
			if err != nil {
				break
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stg, store, _, _ := newStageFixture(t)

	source := filepath.Join(t.TempDir(), "session.mp4")
	testsupport.WriteFile(t, source, 128*1024)
	task := testsupport.NewTask(t, store, "sessions/session.mp4", source)
	task.UploadURL = server.URL + "/sessions/session.mp4"
	task.ContentType = "video/mp4"

	if err := stg.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if received != 128*1024 {
		t.Fatalf("expected full payload received, got %d bytes", received)
	}
	if task.ProgressPercent != 100 || task.BytesSent != 128*1024 {
		t.Fatalf("expected completed progress, got %#v", task)
	}

	persisted, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if persisted.ProgressPercent != 100 || persisted.BytesSent != 128*1024 {
		t.Fatalf("expected progress persisted, got %#v", persisted)
	}
}

func TestExecuteFallsBackToSpoolPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stg, store, _, spoolManager := newStageFixture(t)

	source := filepath.Join(t.TempDir(), "vanishing.mp4")
	testsupport.WriteFile(t, source, 512)
	task := testsupport.NewTask(t, store, "sessions/vanishing.mp4", source)

	spoolPath, err := spoolManager.Put(context.Background(), task.TaskKey, source)
	if err != nil {
		t.Fatalf("spool Put failed: %v", err)
	}
	task.SpoolPath = spoolPath
	task.UploadURL = server.URL + "/sessions/vanishing.mp4"

	if err := os.Remove(source); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	if err := stg.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute with spool fallback failed: %v", err)
	}
}

func TestExecuteRejectsForeignSpoolPath(t *testing.T) {
	stg, store, _, _ := newStageFixture(t)

	source := filepath.Join(t.TempDir(), "moved.mp4")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, "sessions/moved.mp4", source)

	outside := filepath.Join(t.TempDir(), "outside.mp4")
	testsupport.WriteFile(t, outside, 64)
	task.SpoolPath = outside

	if err := os.Remove(source); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	err := stg.Execute(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for spool path outside the spool directory")
	}
	if !strings.Contains(err.Error(), "outside the spool directory") {
		t.Fatalf("expected ownership error, got %v", err)
	}
}

func TestExecuteSurfacesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"access denied"}`, http.StatusForbidden)
	}))
	defer server.Close()

	stg, store, _, _ := newStageFixture(t)

	source := filepath.Join(t.TempDir(), "denied.mp4")
	testsupport.WriteFile(t, source, 64)
	task := testsupport.NewTask(t, store, "sessions/denied.mp4", source)
	task.UploadURL = server.URL + "/sessions/denied.mp4"

	err := stg.Execute(context.Background(), task)
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejection classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected error body surfaced, got %v", err)
	}
}

func TestHealthCheckReportsMissingConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	spoolManager, err := spool.NewManager(cfg)
	if err != nil {
		t.Fatalf("spool.NewManager: %v", err)
	}

	cfg.Storage.Endpoint = ""
	stg := transfer.NewStage(cfg, store, testsupport.NewFakeStorage(), spoolManager, uploader.New(cfg, nil), nil)
	health := stg.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage without endpoint")
	}
	if health.Detail == "" {
		t.Fatal("expected detail for unhealthy stage")
	}
}
