package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shuttle/internal/logging"
	"shuttle/internal/queue"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runWorker(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// CancelTask aborts the stage currently executing the given task. It reports
// false when that task is not the active one, leaving queued rows untouched.
func (m *Manager) CancelTask(id int64) bool {
	m.mu.Lock()
	cancel := m.activeCancel
	active := m.activeTaskID
	m.mu.Unlock()
	if cancel == nil || active != id {
		return false
	}
	cancel()
	return true
}

func (m *Manager) setActiveTask(id int64, cancel context.CancelFunc) {
	m.mu.Lock()
	m.activeTaskID = id
	m.activeCancel = cancel
	m.mu.Unlock()
}

func (m *Manager) clearActiveTask(id int64) {
	m.mu.Lock()
	if m.activeTaskID == id {
		m.activeTaskID = 0
		m.activeCancel = nil
	}
	m.mu.Unlock()
}

// runWorker is the single upload lane. One goroutine owns every task
// transition, which is what serializes transfers.
func (m *Manager) runWorker(ctx context.Context) {
	defer m.wg.Done()

	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "workflow-runner"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil {
			logger.Warn("reclaim stale tasks failed; stuck tasks may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		task, err := m.nextTask(ctx)
		if err != nil {
			m.handleNextTaskError(ctx, logger, err)
			continue
		}
		if task == nil {
			m.waitForTaskOrShutdown(ctx)
			continue
		}

		if err := m.processTask(ctx, logger, task); err != nil {
			// A cancelled stage only ends the worker on shutdown; a
			// per-task cancel leaves the lane open for the next task.
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
		}
	}
}

func (m *Manager) nextTask(ctx context.Context) (*queue.Task, error) {
	m.mu.RLock()
	order := m.statusOrder
	m.mu.RUnlock()
	if len(order) == 0 {
		return nil, nil
	}
	return m.store.NextForStatuses(ctx, order...)
}

func (m *Manager) handleNextTaskError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next upload task",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Upload.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForTaskOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
