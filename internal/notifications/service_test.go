package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shuttle/internal/notifications"
	"shuttle/internal/testsupport"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)
	if err := svc.NotifyUploadCompleted(context.Background(), "Jordan", "sessions/a.mp4"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsUploadEvents(t *testing.T) {
	server, got := newCaptureServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	if err := svc.NotifyUploadCompleted(ctx, "Jordan", "sessions/a.mp4"); err != nil {
		t.Fatalf("NotifyUploadCompleted failed: %v", err)
	}
	if err := svc.NotifyUploadFailed(ctx, "", "storage returned 409"); err != nil {
		t.Fatalf("NotifyUploadFailed failed: %v", err)
	}
	if err := svc.NotifyQueueDrained(ctx, 3, 1, 90*time.Second); err != nil {
		t.Fatalf("NotifyQueueDrained failed: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("socket closed"), "upload worker"); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}

	if len(*got) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(*got))
	}

	completed := (*got)[0]
	if completed.title != "Shuttle - Upload Complete" {
		t.Fatalf("unexpected title %q", completed.title)
	}
	if completed.message != "Recording for Jordan uploaded\nDestination: sessions/a.mp4" {
		t.Fatalf("unexpected message %q", completed.message)
	}
	if completed.tags != "shuttle,upload,completed" {
		t.Fatalf("unexpected tags %q", completed.tags)
	}

	failed := (*got)[1]
	if failed.message != "Recording for unknown client failed: storage returned 409" {
		t.Fatalf("unexpected failure message %q", failed.message)
	}
	if failed.priority != "high" {
		t.Fatalf("expected high priority failure, got %q", failed.priority)
	}

	drained := (*got)[2]
	if drained.message != "Upload queue drained: 3 succeeded, 1 failed in 1m30s" {
		t.Fatalf("unexpected drained message %q", drained.message)
	}

	errored := (*got)[3]
	if errored.message != "Error with upload worker: socket closed" {
		t.Fatalf("unexpected error message %q", errored.message)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server, got := newCaptureServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	cfg.Notifications.Uploads = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	if err := svc.NotifyUploadCompleted(ctx, "Jordan", "sessions/a.mp4"); err != nil {
		t.Fatalf("NotifyUploadCompleted failed: %v", err)
	}
	if err := svc.NotifyUploadFailed(ctx, "Jordan", "boom"); err != nil {
		t.Fatalf("NotifyUploadFailed failed: %v", err)
	}
	if len(*got) != 0 {
		t.Fatalf("expected suppressed notifications, got %d", len(*got))
	}

	// The manual test notification bypasses the toggles.
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if len(*got) != 1 {
		t.Fatalf("expected test notification delivered, got %d", len(*got))
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx ntfy response")
	}
}
