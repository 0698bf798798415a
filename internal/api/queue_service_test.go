package api_test

import (
	"context"
	"testing"

	"shuttle/internal/api"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

func TestQueueServiceListAndDescribe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pending := testsupport.NewTask(t, store, "clients/alpha/a.webm", "")
	errored := testsupport.NewTask(t, store, "clients/alpha/b.webm", "")
	errored.SetError("storage rejected upload")
	if err := store.Update(ctx, errored); err != nil {
		t.Fatalf("Update: %v", err)
	}

	service := api.NewQueueService(store)

	all, err := service.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}

	failed, err := service.List(ctx, queue.StatusError)
	if err != nil {
		t.Fatalf("List errored: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != errored.ID {
		t.Fatalf("unexpected errored listing: %+v", failed)
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["error"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	dto, err := service.Describe(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if dto == nil || dto.RemotePath != "clients/alpha/a.webm" {
		t.Fatalf("unexpected describe result: %+v", dto)
	}

	missing, err := service.Describe(ctx, 9999)
	if err != nil {
		t.Fatalf("Describe missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing task, got %+v", missing)
	}
}
