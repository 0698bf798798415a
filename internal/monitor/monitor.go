// Package monitor surfaces terminal upload outcomes and retires old tasks.
//
// The monitor polls the queue on a fixed interval, raises one notification
// per task that reached a terminal status, and purges terminal tasks older
// than the retention window together with their spooled payloads.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/queue"
	"shuttle/internal/spool"
)

// Monitor watches the queue for terminal tasks.
type Monitor struct {
	cfg      *config.Config
	store    *queue.Store
	spool    *spool.Manager
	notifier notifications.Service
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs the upload monitor.
func New(cfg *config.Config, store *queue.Store, spoolManager *spool.Manager, notifier notifications.Service, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Upload.MonitorInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		cfg:      cfg,
		store:    store,
		spool:    spoolManager,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "upload-monitor")),
		interval: interval,
	}
}

// Start launches the polling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.Poll(runCtx)
			}
		}
	}()
	return nil
}

// Stop halts the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
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

// Poll runs one monitor pass: notify terminal tasks, then purge expired ones.
func (m *Monitor) Poll(ctx context.Context) {
	m.notifyTerminal(ctx)

	retention := time.Duration(m.cfg.Upload.RetentionMinutes) * time.Minute
	if retention > 0 {
		m.PurgeExpired(ctx, time.Now().UTC().Add(-retention))
	}
}

// notifyTerminal raises one notification per terminal task. Tasks are only
// flagged notified after the delivery succeeds, so a transient notifier
// failure retries on the next pass.
func (m *Monitor) notifyTerminal(ctx context.Context) {
	tasks, err := m.store.UnnotifiedTerminal(ctx)
	if err != nil {
		m.logger.Warn("failed to list unnotified tasks", logging.Error(err))
		return
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}

		var notifyErr error
		switch task.Status {
		case queue.StatusCompleted:
			notifyErr = m.notifier.NotifyUploadCompleted(ctx, task.ClientName, task.RemotePath)
		case queue.StatusError:
			notifyErr = m.notifier.NotifyUploadFailed(ctx, task.ClientName, task.ErrorMessage)
		default:
			continue
		}
		if notifyErr != nil {
			m.logger.Warn("task notification failed",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(notifyErr),
			)
			continue
		}
		if err := m.store.MarkNotified(ctx, task.ID); err != nil {
			m.logger.Warn("failed to flag task notified",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err),
			)
		}
	}
}

// PurgeExpired removes terminal tasks last touched before the cutoff along
// with their spooled payloads.
func (m *Monitor) PurgeExpired(ctx context.Context, cutoff time.Time) {
	expired, err := m.store.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to purge expired tasks", logging.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	for _, task := range expired {
		if m.spool == nil || task.SpoolPath == "" {
			continue
		}
		if err := m.spool.Remove(task.SpoolPath); err != nil {
			m.logger.Warn("failed to remove spooled payload for purged task",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err),
			)
		}
	}
	m.logger.Info("purged expired tasks",
		logging.Int("count", len(expired)),
		logging.String(logging.FieldEventType, "retention_purge"),
	)
}
