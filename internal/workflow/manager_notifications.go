package workflow

import (
	"context"
	"errors"
	"time"

	"shuttle/internal/logging"
	"shuttle/internal/queue"
)

// onTaskStarted latches the queue-active flag the first time a task enters a
// processing status; the drain notification keys off it later.
func (m *Manager) onTaskStarted(ctx context.Context) {
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not check queue completion")
		} else {
			m.logger.Warn("queue stats unavailable for drain notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "drain notification will not be sent"),
			)
		}
		return
	}
	if active := countActiveTasks(stats); active > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	completed := stats[queue.StatusCompleted]
	failed := stats[queue.StatusError]
	if err := m.notifier.NotifyQueueDrained(ctx, completed, failed, duration); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send drain notification")
		} else {
			m.logger.Debug("queue drain notification failed", logging.Error(err))
		}
	}
}

func countActiveTasks(stats map[queue.Status]int) int {
	total := 0
	for _, status := range []queue.Status{queue.StatusPending, queue.StatusUploading, queue.StatusProcessing} {
		total += stats[status]
	}
	return total
}
