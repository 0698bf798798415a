package transfer

import (
	"context"
	"log/slog"
	"strings"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/services"
	"shuttle/internal/spool"
	"shuttle/internal/stage"
	"shuttle/internal/uploader"
)

// Finalizer fires the completion hook for transferred tasks and releases
// their spooled payloads.
type Finalizer struct {
	cfg    *config.Config
	store  *queue.Store
	spool  *spool.Manager
	hook   uploader.Hook
	logger *slog.Logger
}

// NewFinalizer constructs the finalize stage handler.
func NewFinalizer(cfg *config.Config, store *queue.Store, spoolManager *spool.Manager, hook uploader.Hook, logger *slog.Logger) *Finalizer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "finalize"))
	}
	return &Finalizer{
		cfg:    cfg,
		store:  store,
		spool:  spoolManager,
		hook:   hook,
		logger: stageLogger,
	}
}

func (f *Finalizer) Prepare(ctx context.Context, task *queue.Task) error {
	if strings.TrimSpace(task.RemotePath) == "" {
		return services.Wrap(services.ErrValidation, "finalize", "prepare", "task has no destination path", nil)
	}
	return nil
}

// Execute invokes the completion hook at most once per task. The invoked flag
// is persisted before the request fires, so a crash mid-hook or a concurrent
// recovery pass can never deliver the callback twice.
func (f *Finalizer) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, f.logger)

	switch {
	case task.HookInvoked:
		logger.Info("completion hook already invoked, skipping",
			logging.String("remote_path", task.RemotePath),
			logging.String(logging.FieldEventType, "hook_skipped"),
		)
	case f.hook == nil || !f.hook.Enabled():
		logger.Debug("no completion hook configured")
	default:
		if err := f.store.MarkHookInvoked(ctx, task.ID); err != nil {
			return services.Wrap(services.ErrTransient, "finalize", "hook", "persist hook flag", err)
		}
		task.HookInvoked = true
		if err := f.hook.Invoke(ctx, task); err != nil {
			return err
		}
	}

	if f.spool != nil && task.SpoolPath != "" {
		if err := f.spool.Remove(task.SpoolPath); err != nil {
			logger.Warn("failed to release spooled payload",
				logging.Error(err),
				logging.String("spool_path", task.SpoolPath),
				logging.String(logging.FieldImpact, "disk space reclaimed at purge instead"),
			)
		} else {
			task.SpoolPath = ""
		}
	}

	task.SetProgress(100, task.BytesTotal, task.BytesTotal)
	return nil
}

// HealthCheck reports hook configuration state; a missing hook is healthy
// because completion callbacks are optional.
func (f *Finalizer) HealthCheck(ctx context.Context) stage.Health {
	if f.hook != nil && f.hook.Enabled() {
		return stage.Healthy("finalize")
	}
	health := stage.Healthy("finalize")
	health.Detail = "no completion hook configured"
	return health
}

var _ stage.Handler = (*Finalizer)(nil)
