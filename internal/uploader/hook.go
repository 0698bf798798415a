package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/services"
)

// HookPayload is the JSON body posted to the completion endpoint after a
// transfer lands in the bucket.
type HookPayload struct {
	TaskKey         string  `json:"task_key"`
	ClientID        string  `json:"client_id,omitempty"`
	ClientName      string  `json:"client_name,omitempty"`
	RemotePath      string  `json:"remote_path"`
	MediaKind       string  `json:"media_kind"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Transcript      string  `json:"transcript,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	Size            int64   `json:"size"`
	ContentType     string  `json:"content_type,omitempty"`
}

// Hook posts completion callbacks to the configured endpoint.
type Hook interface {
	// Invoke fires the completion callback for a transferred task.
	Invoke(ctx context.Context, task *queue.Task) error
	// Enabled reports whether a hook endpoint is configured.
	Enabled() bool
}

type httpHook struct {
	url       string
	authToken string
	client    *http.Client
	logger    *slog.Logger
}

// NewHook builds the HTTP completion hook from configuration. When no
// endpoint is configured the returned hook is disabled and Invoke is a no-op.
func NewHook(cfg *config.Config, logger *slog.Logger) Hook {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Hook.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpHook{
		url:       strings.TrimSpace(cfg.Hook.URL),
		authToken: cfg.Hook.AuthToken,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

func (h *httpHook) Enabled() bool {
	return h.url != ""
}

func (h *httpHook) Invoke(ctx context.Context, task *queue.Task) error {
	if !h.Enabled() {
		return nil
	}
	if task == nil {
		return services.Wrap(services.ErrValidation, "finalize", "hook", "task is nil", nil)
	}

	payload := HookPayload{
		TaskKey:         task.TaskKey,
		ClientID:        task.ClientID,
		ClientName:      task.ClientName,
		RemotePath:      task.RemotePath,
		MediaKind:       string(task.MediaKind),
		DurationSeconds: task.DurationSeconds,
		Transcript:      task.Transcript,
		Notes:           task.Notes,
		Size:            task.Size,
		ContentType:     NormalizeContentType(task.ContentType),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrHook, "finalize", "hook", "encode payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrHook, "finalize", "hook", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrHook, "finalize", "hook", "post callback", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := parseErrorBody(resp.Body)
		return services.Wrap(
			services.ErrHook,
			"finalize",
			"hook",
			fmt.Sprintf("callback returned %d: %s", resp.StatusCode, message),
			nil,
		)
	}

	h.logger.Info("completion hook delivered",
		logging.String(logging.FieldTaskID, task.TaskKey),
		logging.String("remote_path", task.RemotePath),
		logging.String(logging.FieldEventType, "hook_delivered"),
	)
	return nil
}
