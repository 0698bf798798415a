package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a pending upload task for tests using the provided store.
// A blank sourcePath gets a small temporary payload file so the task passes
// enqueue validation.
func NewTask(t testing.TB, store *queue.Store, remotePath, sourcePath string) *queue.Task {
	t.Helper()

	if sourcePath == "" {
		sourcePath = filepath.Join(t.TempDir(), "payload.webm")
		WriteFile(t, sourcePath, 64)
	}
	task, err := store.NewTask(context.Background(), queue.NewTaskParams{
		RemotePath: remotePath,
		SourcePath: sourcePath,
	})
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
