package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueTask describes an upload task in a transport-friendly format.
type QueueTask struct {
	ID              int64         `json:"id"`
	TaskKey         string        `json:"taskKey"`
	ClientID        string        `json:"clientId"`
	ClientName      string        `json:"clientName"`
	RemotePath      string        `json:"remotePath"`
	SourcePath      string        `json:"sourcePath"`
	SpoolPath       string        `json:"spoolPath,omitempty"`
	Size            int64         `json:"size"`
	MediaKind       string        `json:"mediaKind"`
	DurationSeconds float64       `json:"durationSeconds,omitempty"`
	ContentType     string        `json:"contentType,omitempty"`
	Status          string        `json:"status"`
	Progress        QueueProgress `json:"progress"`
	ErrorMessage    string        `json:"errorMessage,omitempty"`
	HookInvoked     bool          `json:"hookInvoked"`
	Notified        bool          `json:"notified"`
	CreatedAt       string        `json:"createdAt,omitempty"`
	UpdatedAt       string        `json:"updatedAt,omitempty"`
}

// QueueProgress captures transfer progress for an upload task.
type QueueProgress struct {
	Percent    float64 `json:"percent"`
	BytesSent  int64   `json:"bytesSent"`
	BytesTotal int64   `json:"bytesTotal"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastTask    *QueueTask     `json:"lastTask,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	SpoolDir     string         `json:"spoolDir,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of upload tasks for API responses.
type QueueListResponse struct {
	Tasks []QueueTask `json:"tasks"`
}

// QueueTaskResponse wraps a single upload task.
type QueueTaskResponse struct {
	Task QueueTask `json:"task"`
}
