package transfer

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/services"
	"shuttle/internal/spool"
	"shuttle/internal/stage"
	"shuttle/internal/storage"
	"shuttle/internal/uploader"
)

// progressPersistInterval throttles how often progress ticks hit SQLite.
const progressPersistInterval = 500 * time.Millisecond

// Stage streams pending payloads to their presigned destinations.
type Stage struct {
	cfg      *config.Config
	store    *queue.Store
	storage  storage.Client
	spool    *spool.Manager
	uploader *uploader.Uploader
	logger   *slog.Logger
}

// NewStage constructs the transfer stage handler.
func NewStage(cfg *config.Config, store *queue.Store, client storage.Client, spoolManager *spool.Manager, up *uploader.Uploader, logger *slog.Logger) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "transfer"))
	}
	return &Stage{
		cfg:      cfg,
		store:    store,
		storage:  client,
		spool:    spoolManager,
		uploader: up,
		logger:   stageLogger,
	}
}

// Prepare mirrors the payload into the spool and presigns the destination URL.
// A failed spool copy is logged and swallowed; the transfer can still proceed
// from the source file.
func (s *Stage) Prepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)

	if strings.TrimSpace(task.RemotePath) == "" {
		return services.Wrap(services.ErrValidation, "transfer", "prepare", "task has no destination path", nil)
	}

	payload := s.resolvePayload(task)
	if payload == "" {
		return services.Wrap(
			services.ErrNotFound,
			"transfer",
			"prepare",
			"payload missing: source and spool copies are gone",
			nil,
		)
	}

	if task.ContentType == "" {
		task.ContentType = uploader.DetectContentType(payload)
	}

	if task.SpoolPath == "" && s.spool != nil && pathExists(task.SourcePath) {
		spoolPath, err := s.spool.Put(ctx, task.TaskKey, task.SourcePath)
		if err != nil {
			logger.Warn("payload spool copy failed; restart durability reduced",
				logging.Error(err),
				logging.String(logging.FieldEventType, "spool_copy_failed"),
				logging.String(logging.FieldErrorHint, "check spool_dir free space"),
				logging.String(logging.FieldImpact, "task cannot recover if source file disappears"),
			)
		} else {
			task.SpoolPath = spoolPath
		}
	}

	if strings.TrimSpace(task.UploadURL) == "" {
		expiry := time.Duration(s.cfg.Storage.PresignExpiry) * time.Minute
		if expiry <= 0 {
			expiry = time.Hour
		}
		signed, err := s.storage.PresignPut(ctx, task.RemotePath, expiry)
		if err != nil {
			return services.Wrap(services.ErrTransport, "transfer", "presign", "presign destination URL", err)
		}
		task.UploadURL = signed
	}

	logger.Info("transfer prepared",
		logging.String("payload", payload),
		logging.String("content_type", task.ContentType),
		logging.String("signed_host", storage.SignedURLHost(task.UploadURL)),
	)
	return nil
}

// Execute streams the payload to the presigned URL, persisting progress ticks.
func (s *Stage) Execute(ctx context.Context, task *queue.Task) error {
	logger := logging.WithContext(ctx, s.logger)

	payload := s.resolvePayload(task)
	if payload == "" {
		return services.Wrap(
			services.ErrNotFound,
			"transfer",
			"execute",
			"payload missing: source and spool copies are gone",
			nil,
		)
	}

	file, err := s.openPayload(payload, task)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "transfer", "execute", "open payload", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return services.Wrap(services.ErrNotFound, "transfer", "execute", "stat payload", err)
	}
	size := info.Size()
	task.BytesTotal = size
	if task.Size == 0 {
		task.Size = size
	}

	lastPersist := time.Time{}
	progress := func(sent, total int64) {
		percent := float64(0)
		if total > 0 {
			percent = float64(sent) / float64(total) * 100
		}
		task.SetProgress(percent, sent, total)
		if time.Since(lastPersist) < progressPersistInterval && sent < total {
			return
		}
		lastPersist = time.Now()
		if err := s.store.UpdateProgress(ctx, task.ID, percent, sent, total); err != nil {
			logger.Debug("progress persist failed", logging.Error(err))
		}
	}

	err = s.uploader.Upload(ctx, uploader.Request{
		URL:         task.UploadURL,
		Payload:     file,
		Size:        size,
		ContentType: task.ContentType,
		Progress:    progress,
	})
	if err != nil {
		return err
	}

	task.SetProgress(100, size, size)
	logger.Info("payload transferred",
		logging.Int64("bytes", size),
		logging.String("remote_path", task.RemotePath),
	)
	return nil
}

// HealthCheck verifies the stage has a usable storage configuration.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(s.cfg.Storage.Endpoint) == "" {
		return stage.Unhealthy("transfer", "storage endpoint not configured")
	}
	if strings.TrimSpace(s.cfg.Storage.Bucket) == "" {
		return stage.Unhealthy("transfer", "storage bucket not configured")
	}
	return stage.Healthy("transfer")
}

// resolvePayload prefers the original source file and falls back to the spool
// mirror when the source is gone.
func (s *Stage) resolvePayload(task *queue.Task) string {
	if pathExists(task.SourcePath) {
		return task.SourcePath
	}
	if pathExists(task.SpoolPath) {
		return task.SpoolPath
	}
	return ""
}

// openPayload opens spool mirrors through the spool manager so its ownership
// check applies; anything else is a caller-supplied source file.
func (s *Stage) openPayload(payload string, task *queue.Task) (*os.File, error) {
	if s.spool != nil && payload == task.SpoolPath {
		return s.spool.Open(payload)
	}
	return os.Open(payload)
}

func pathExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var _ stage.Handler = (*Stage)(nil)
