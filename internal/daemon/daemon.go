// Package daemon coordinates the background upload services and enforces
// single-instance execution via a file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/queue"
	"shuttle/internal/workflow"
)

// mediaKindByExtension maps recording file extensions to their media kind.
var mediaKindByExtension = map[string]queue.MediaKind{
	".webm": queue.MediaVideo,
	".mp4":  queue.MediaVideo,
	".mov":  queue.MediaVideo,
	".m4a":  queue.MediaAudio,
	".mp3":  queue.MediaAudio,
	".ogg":  queue.MediaAudio,
	".wav":  queue.MediaAudio,
}

// Daemon owns the workflow manager, the upload monitor, and queue access.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	monitor  *monitor.Monitor
	recovery *workflow.Recovery
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	SpoolDir     string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, mon *monitor.Monitor, rec *workflow.Recovery) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "shuttled.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		monitor:  mon,
		recovery: rec,
		logPath:  filepath.Join(cfg.Paths.LogDir, "shuttle.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, reconciles persisted tasks, and launches
// the workflow manager and upload monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shuttle daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if d.recovery != nil {
		report, recErr := d.recovery.Run(d.ctx)
		if recErr != nil {
			d.logger.Warn("startup recovery incomplete", logging.Error(recErr))
		} else {
			d.logger.Info("startup recovery finished",
				logging.Int("purged", report.Purged),
				logging.Int("resumed", report.Resumed),
				logging.Int("requeued", report.Requeued),
				logging.Int("lost", report.Lost),
			)
		}
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.monitor != nil {
		if err := d.monitor.Start(d.ctx); err != nil {
			d.workflow.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return fmt.Errorf("start monitor: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("shuttle daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.monitor != nil {
		d.monitor.Stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("shuttle daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// EnqueueParams carries caller attributes for a new upload.
type EnqueueParams struct {
	SourcePath      string
	RemotePath      string
	ClientID        string
	ClientName      string
	MediaKind       string
	DurationSeconds float64
	Transcript      string
	Notes           string
	ContentType     string
}

// Enqueue registers a local recording for upload.
func (d *Daemon) Enqueue(ctx context.Context, params EnqueueParams) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}

	trimmed := strings.TrimSpace(params.SourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	kindFromExt, knownExt := mediaKindByExtension[ext]
	if !knownExt {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}

	kind := kindFromExt
	if strings.TrimSpace(params.MediaKind) != "" {
		parsed, ok := queue.ParseMediaKind(params.MediaKind)
		if !ok {
			return nil, fmt.Errorf("unknown media kind %q", params.MediaKind)
		}
		kind = parsed
	}

	remotePath := strings.TrimSpace(params.RemotePath)
	if remotePath == "" {
		return nil, errors.New("remote path is required")
	}
	if existing, err := d.store.FindByRemotePath(ctx, remotePath); err != nil {
		return nil, err
	} else if existing != nil && !existing.IsTerminal() {
		return nil, fmt.Errorf("remote path %q already has an active upload (task %d)", remotePath, existing.ID)
	}

	task, err := d.store.NewTask(ctx, queue.NewTaskParams{
		ClientID:        strings.TrimSpace(params.ClientID),
		ClientName:      strings.TrimSpace(params.ClientName),
		RemotePath:      remotePath,
		SourcePath:      absPath,
		Size:            info.Size(),
		MediaKind:       kind,
		DurationSeconds: params.DurationSeconds,
		Transcript:      params.Transcript,
		Notes:           params.Notes,
		ContentType:     strings.TrimSpace(params.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue upload: %w", err)
	}
	d.logger.Info("upload queued",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("source", absPath),
		logging.String("remote_path", remotePath),
	)
	return task, nil
}

// ListQueue returns upload tasks filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// GetQueueTask fetches a single upload task.
func (d *Daemon) GetQueueTask(ctx context.Context, id int64) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// RemoveQueueTask deletes a single upload task, aborting its transfer first
// when the task is the one currently in flight.
func (d *Daemon) RemoveQueueTask(ctx context.Context, id int64) (bool, error) {
	if d.store == nil {
		return false, errors.New("queue store unavailable")
	}
	if d.workflow != nil && d.workflow.CancelTask(id) {
		d.logger.Info("aborted in-flight transfer for removed task",
			logging.Int64(logging.FieldTaskID, id),
			logging.String(logging.FieldEventType, "task_cancelled"),
		)
	}
	return d.store.Remove(ctx, id)
}

// ClearQueue removes all upload tasks.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed upload tasks.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearErrored removes only errored upload tasks.
func (d *Daemon) ClearErrored(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearErrored(ctx)
}

// RetryErrored resets errored tasks (optionally a subset) back to pending.
func (d *Daemon) RetryErrored(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Retry(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		SpoolDir:     d.cfg.Paths.SpoolDir,
	}
}
