package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/spool"
	"shuttle/internal/storage"
)

// Recovery reconciles persisted tasks with remote storage after a daemon
// restart. Tasks whose objects already landed resume at processing so the
// completion hook still fires; interrupted transfers return to pending.
type Recovery struct {
	cfg     *config.Config
	store   *queue.Store
	storage storage.Client
	spool   *spool.Manager
	logger  *slog.Logger
}

// RecoveryReport summarizes what startup recovery did.
type RecoveryReport struct {
	Purged   int
	Resumed  int
	Requeued int
	Lost     int
}

// NewRecovery builds the startup recovery pass.
func NewRecovery(cfg *config.Config, store *queue.Store, client storage.Client, spoolManager *spool.Manager, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recovery{
		cfg:     cfg,
		store:   store,
		storage: client,
		spool:   spoolManager,
		logger:  logger.With(logging.String(logging.FieldComponent, "recovery")),
	}
}

// Run performs the recovery pass: purge expired terminal tasks, reconcile
// interrupted transfers against remote storage, and drop orphaned spool
// payloads.
func (r *Recovery) Run(ctx context.Context) (RecoveryReport, error) {
	report := RecoveryReport{}

	purged, err := r.purgeExpired(ctx)
	if err != nil {
		return report, err
	}
	report.Purged = purged

	active, err := r.store.List(ctx, queue.StatusPending, queue.StatusUploading, queue.StatusProcessing)
	if err != nil {
		return report, fmt.Errorf("list active tasks: %w", err)
	}

	for _, task := range active {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		switch task.Status {
		case queue.StatusPending:
			if !r.ensurePayload(ctx, task, &report) {
				continue
			}
			if err := r.store.Update(ctx, task); err != nil {
				return report, fmt.Errorf("persist recovered task %d: %w", task.ID, err)
			}
		case queue.StatusUploading, queue.StatusProcessing:
			if err := r.reconcileInFlight(ctx, task, &report); err != nil {
				return report, err
			}
		}
	}

	r.cleanSpool(ctx)

	r.logger.Info("startup recovery finished",
		logging.Int("purged", report.Purged),
		logging.Int("resumed", report.Resumed),
		logging.Int("requeued", report.Requeued),
		logging.Int("lost", report.Lost),
		logging.String(logging.FieldEventType, "recovery_finished"),
	)
	return report, nil
}

// reconcileInFlight decides what to do with a task interrupted mid-transfer.
// The remote existence check is what prevents double uploads and duplicate
// hook invocations when the previous run died between PUT and bookkeeping.
func (r *Recovery) reconcileInFlight(ctx context.Context, task *queue.Task, report *RecoveryReport) error {
	info, found, err := r.storage.Stat(ctx, task.RemotePath)
	if err != nil {
		return fmt.Errorf("check remote object for task %d: %w", task.ID, err)
	}

	// A size mismatch means a partial or foreign object; treat it as absent
	// so the transfer restarts instead of completing against bad bytes.
	expected := task.Size
	if expected == 0 {
		expected = task.BytesTotal
	}
	if found && expected > 0 && info.Size != expected {
		r.logger.Warn("remote object size mismatch; restarting transfer",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String("remote_path", task.RemotePath),
			logging.Int64("remote_size", info.Size),
			logging.Int64("expected_size", expected),
			logging.String(logging.FieldEventType, "recovery_size_mismatch"),
		)
		found = false
	}

	if found {
		task.Status = queue.StatusProcessing
		task.LastHeartbeat = nil
		task.SetProgress(100, task.BytesTotal, task.BytesTotal)
		if err := r.store.Update(ctx, task); err != nil {
			return fmt.Errorf("persist resumed task %d: %w", task.ID, err)
		}
		report.Resumed++
		r.logger.Info("resumed task with landed object",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String("remote_path", task.RemotePath),
			logging.String(logging.FieldEventType, "recovery_resumed"),
		)
		return nil
	}

	task.Status = queue.StatusPending
	task.UploadURL = ""
	task.LastHeartbeat = nil
	task.SetProgress(0, 0, task.BytesTotal)
	if !r.ensurePayload(ctx, task, report) {
		return nil
	}
	if err := r.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist requeued task %d: %w", task.ID, err)
	}
	report.Requeued++
	r.logger.Info("requeued interrupted transfer",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("remote_path", task.RemotePath),
		logging.String(logging.FieldEventType, "recovery_requeued"),
	)
	return nil
}

// ensurePayload verifies the task still has readable bytes to send, falling
// back from the source file to the spool mirror. Tasks with no payload left
// are marked errored; reporting true means the task can proceed.
func (r *Recovery) ensurePayload(ctx context.Context, task *queue.Task, report *RecoveryReport) bool {
	if pathExists(task.SourcePath) {
		return true
	}
	if pathExists(task.SpoolPath) {
		return true
	}

	task.SetError("payload missing after restart: source and spool copies are gone")
	if err := r.store.Update(ctx, task); err != nil {
		r.logger.Error("failed to mark task with lost payload",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Error(err),
		)
		return false
	}
	report.Lost++
	r.logger.Warn("task payload lost",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("source_path", task.SourcePath),
		logging.String("spool_path", task.SpoolPath),
		logging.String(logging.FieldEventType, "recovery_payload_lost"),
		logging.String(logging.FieldImpact, "task cannot be retried"),
	)
	return false
}

func (r *Recovery) purgeExpired(ctx context.Context) (int, error) {
	retention := time.Duration(r.cfg.Upload.RetentionMinutes) * time.Minute
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-retention)
	expired, err := r.store.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired tasks: %w", err)
	}
	for _, task := range expired {
		if r.spool == nil || task.SpoolPath == "" {
			continue
		}
		if err := r.spool.Remove(task.SpoolPath); err != nil {
			r.logger.Warn("failed to remove spooled payload for purged task",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err),
			)
		}
	}
	return len(expired), nil
}

func (r *Recovery) cleanSpool(ctx context.Context) {
	if r.spool == nil {
		return
	}
	tasks, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn("failed to list tasks for spool cleanup", logging.Error(err))
		return
	}
	activeKeys := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if key := strings.TrimSpace(task.TaskKey); key != "" {
			activeKeys[key] = struct{}{}
		}
	}
	r.spool.CleanOrphaned(ctx, activeKeys, r.logger)
}

func pathExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
