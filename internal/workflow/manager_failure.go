package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, task *queue.Task, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base).With(logging.String(logging.FieldComponent, "workflow-manager"))

	message := m.classifyStageFailure(stageName, stageErr)
	task.SetError(message)

	logger.Error("stage failed",
		logging.String("resolved_status", string(queue.StatusError)),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.String(logging.FieldErrorKind, services.Kind(stageErr)),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, task); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastTask(task)
	m.checkQueueCompletion(ctx)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		if stageName != "" {
			return fmt.Sprintf("%s failed without error detail", stageName)
		}
		return "workflow failed without error detail"
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}
