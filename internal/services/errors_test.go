package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shuttle/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransport, "upload", "put", "transfer interrupted", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"upload", "put", "transfer interrupted"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "upload", "put", "unknown", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect string
	}{
		{"nil", nil, ""},
		{"transport", services.Wrap(services.ErrTransport, "upload", "put", "reset", nil), "transport"},
		{"rejected", services.Wrap(services.ErrRejected, "upload", "put", "403", nil), "rejected"},
		{"hook", services.Wrap(services.ErrHook, "finalize", "post", "500", nil), "hook"},
		{"validation", services.Wrap(services.ErrValidation, "add", "enqueue", "empty path", nil), "validation"},
		{"unclassified", errors.New("plain"), "transient"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Kind(tc.err); got != tc.expect {
				t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.expect)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, 42)
	ctx = services.WithStage(ctx, "upload")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("task id = %d, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "upload" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}
