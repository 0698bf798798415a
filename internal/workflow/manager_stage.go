package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/services"
	"shuttle/internal/stage"
)

func (m *Manager) processTask(ctx context.Context, workerLogger *slog.Logger, task *queue.Task) error {
	stg, ok := m.stageForStatus(task.Status)
	if !ok {
		workerLogger.Warn("no stage configured for status", logging.String("status", string(task.Status)))
		m.waitForTaskOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, stg.name, task, requestID)
	stageCtx, cancelStage := context.WithCancel(stageCtx)
	defer cancelStage()
	m.setActiveTask(task.ID, cancelStage)
	defer m.clearActiveTask(task.ID)
	stageLogger := logging.WithContext(stageCtx, workerLogger)

	if err := m.transitionToProcessing(stageCtx, stg.processingStatus, task); err != nil {
		stageLogger.Error("failed to transition task to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, task)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, task *queue.Task) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String(logging.FieldClient, strings.TrimSpace(task.ClientName)),
		logging.String("remote_path", strings.TrimSpace(task.RemotePath)),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String(logging.FieldStage, stg.name))
		task.SetError(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, task); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		m.setLastError(errors.New("stage handler unavailable"))
		return errors.New("stage handler unavailable")
	}

	if err := handler.Prepare(ctx, task); err != nil {
		m.handleStageFailure(ctx, stg.name, task, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, task); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, handler, task)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, task, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if task.Status == stg.processingStatus || task.Status == "" {
		task.Status = stg.doneStatus
	}
	task.LastHeartbeat = nil
	if task.Status == queue.StatusCompleted && task.ProgressPercent < 100 {
		task.ProgressPercent = 100
	}
	if err := m.store.Update(ctx, task); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(task.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastTask(task)
	m.checkQueueCompletion(ctx)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, task *queue.Task) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task.ID)

	execErr := handler.Execute(ctx, task)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, processing queue.Status, task *queue.Task) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	if task.Status != processing {
		task.ProgressPercent = 0
		task.BytesSent = 0
	}
	task.Status = processing
	task.ErrorMessage = ""
	task.LastHeartbeat = &now
	if err := m.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastTask(task)
	m.onTaskStarted(ctx)
	return nil
}

func withStageContext(ctx context.Context, stageName string, task *queue.Task, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if task != nil {
		ctx = services.WithTaskID(ctx, task.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
