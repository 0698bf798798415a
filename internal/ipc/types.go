package ipc

import "shuttle/internal/api"

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueTask mirrors the API queue DTO for IPC callers.
type QueueTask = api.QueueTask

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error"`
	LastTask    *QueueTask     `json:"last_task"`
	LockPath    string         `json:"lock_path"`
	QueueDBPath string         `json:"queue_db_path"`
	SpoolDir    string         `json:"spool_dir"`
	StageHealth []StageHealth  `json:"stage_health"`
}

// EnqueueRequest registers a local recording for upload.
type EnqueueRequest struct {
	SourcePath      string  `json:"source_path"`
	RemotePath      string  `json:"remote_path"`
	ClientID        string  `json:"client_id"`
	ClientName      string  `json:"client_name"`
	MediaKind       string  `json:"media_kind"`
	DurationSeconds float64 `json:"duration_seconds"`
	Transcript      string  `json:"transcript"`
	Notes           string  `json:"notes"`
	ContentType     string  `json:"content_type"`
}

// EnqueueResponse returns the created task.
type EnqueueResponse struct {
	Task QueueTask `json:"task"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Tasks []QueueTask `json:"tasks"`
}

// QueueDescribeRequest fetches a single upload task by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single upload task.
type QueueDescribeResponse struct {
	Task QueueTask `json:"task"`
}

// QueueRemoveRequest removes specific tasks by ID.
type QueueRemoveRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearRequest removes all tasks.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearErroredRequest removes errored tasks.
type QueueClearErroredRequest struct{}

// QueueClearErroredResponse reports number of removed entries.
type QueueClearErroredResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes completed tasks.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRetryRequest retries errored tasks. Empty list means all errored tasks.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried tasks.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalTasks       int      `json:"total_tasks"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Errored   int `json:"errored"`
	Completed int `json:"completed"`
}
