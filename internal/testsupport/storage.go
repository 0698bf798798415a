package testsupport

import (
	"context"
	"sync"
	"time"

	"shuttle/internal/storage"
)

// FakeStorage is an in-memory storage.Client for tests.
type FakeStorage struct {
	mu sync.Mutex

	PresignBase string
	PresignErr  error
	StatErr     error

	objects  map[string]storage.ObjectInfo
	presigns []string
}

// NewFakeStorage returns an empty fake bucket.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		PresignBase: "https://bucket.test.invalid",
		objects:     make(map[string]storage.ObjectInfo),
	}
}

// PutObject seeds an object into the fake bucket.
func (f *FakeStorage) PutObject(remotePath string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[remotePath] = storage.ObjectInfo{
		Key:          remotePath,
		Size:         size,
		LastModified: time.Now().UTC(),
	}
}

// Presigns returns the remote paths presigned so far.
func (f *FakeStorage) Presigns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.presigns))
	copy(out, f.presigns)
	return out
}

func (f *FakeStorage) PresignPut(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PresignErr != nil {
		return "", f.PresignErr
	}
	f.presigns = append(f.presigns, remotePath)
	return f.PresignBase + "/" + remotePath, nil
}

func (f *FakeStorage) Stat(ctx context.Context, remotePath string) (storage.ObjectInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatErr != nil {
		return storage.ObjectInfo{}, false, f.StatErr
	}
	info, ok := f.objects[remotePath]
	return info, ok, nil
}

func (f *FakeStorage) Remove(ctx context.Context, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, remotePath)
	return nil
}
