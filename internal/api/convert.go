package api

import (
	"slices"
	"time"

	"shuttle/internal/queue"
	"shuttle/internal/stage"
	"shuttle/internal/workflow"
)

// FromQueueTask converts a queue record to its API representation.
func FromQueueTask(task *queue.Task) QueueTask {
	if task == nil {
		return QueueTask{}
	}

	dto := QueueTask{
		ID:              task.ID,
		TaskKey:         task.TaskKey,
		ClientID:        task.ClientID,
		ClientName:      task.ClientName,
		RemotePath:      task.RemotePath,
		SourcePath:      task.SourcePath,
		SpoolPath:       task.SpoolPath,
		Size:            task.Size,
		MediaKind:       string(task.MediaKind),
		DurationSeconds: task.DurationSeconds,
		ContentType:     task.ContentType,
		Status:          string(task.Status),
		Progress: QueueProgress{
			Percent:    task.ProgressPercent,
			BytesSent:  task.BytesSent,
			BytesTotal: task.BytesTotal,
		},
		ErrorMessage: task.ErrorMessage,
		HookInvoked:  task.HookInvoked,
		Notified:     task.Notified,
	}

	if !task.CreatedAt.IsZero() {
		dto.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !task.UpdatedAt.IsZero() {
		dto.UpdatedAt = task.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromQueueTasks converts a slice of queue records into API DTOs.
func FromQueueTasks(tasks []*queue.Task) []QueueTask {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]QueueTask, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromQueueTask(task))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}

	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastTask != nil {
		last := FromQueueTask(summary.LastTask)
		wf.LastTask = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
