package api

import (
	"context"

	"shuttle/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Task, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns upload tasks filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueTask, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	tasks, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueTasks(tasks), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single upload task.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueTask, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.GetByID(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}
	dto := FromQueueTask(task)
	return &dto, nil
}
