package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an upload task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusProcessing,
	StatusCompleted,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeStatuses = map[Status]struct{}{
	StatusUploading:  {},
	StatusProcessing: {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusError:     {},
}

// MediaKind tags the recorded check-in payload type.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// ParseMediaKind converts a string into a known MediaKind.
func ParseMediaKind(value string) (MediaKind, bool) {
	normalized := MediaKind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MediaVideo, MediaAudio:
		return normalized, true
	}
	return "", false
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Active    int
	Errored   int
	Completed int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

// Task represents an upload task persisted in SQLite.
type Task struct {
	ID              int64
	TaskKey         string
	ClientID        string
	ClientName      string
	RemotePath      string
	UploadURL       string
	SourcePath      string
	SpoolPath       string
	Size            int64
	MediaKind       MediaKind
	DurationSeconds float64
	Transcript      string
	Notes           string
	ContentType     string
	Status          Status
	ProgressPercent float64
	BytesSent       int64
	BytesTotal      int64
	ErrorMessage    string
	HookInvoked     bool
	Notified        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive returns true when the status reflects an in-flight operation.
func (t Task) IsActive() bool {
	_, ok := activeStatuses[t.Status]
	return ok
}

// IsTerminal returns true when the task has finished, successfully or not.
func (t Task) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsTerminalStatus reports whether a status is completed or error.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsActiveStatus reports whether a status reflects an in-flight operation.
func IsActiveStatus(status Status) bool {
	_, ok := activeStatuses[status]
	return ok
}

// SetProgress updates the progress measurement in one call.
func (t *Task) SetProgress(percent float64, sent, total int64) {
	t.ProgressPercent = percent
	t.BytesSent = sent
	t.BytesTotal = total
}

// SetError marks the task as errored with the given message.
// Clears heartbeat so recovery does not treat it as in-flight.
func (t *Task) SetError(message string) {
	t.Status = StatusError
	t.ErrorMessage = message
	t.LastHeartbeat = nil
}

// PayloadPath returns the preferred path to read the task payload from.
// The original source wins while it still exists; the spool copy is the
// durable fallback used after recovery.
func (t Task) PayloadPath() string {
	if strings.TrimSpace(t.SourcePath) != "" {
		return t.SourcePath
	}
	return t.SpoolPath
}
