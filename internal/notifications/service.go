package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shuttle/internal/config"
)

const userAgent = "Shuttle/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifyUploadCompleted(ctx context.Context, clientName, remotePath string) error
	NotifyUploadFailed(ctx context.Context, clientName, reason string) error
	NotifyQueueDrained(ctx context.Context, completed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		sendUploads:  cfg.Notifications.Uploads,
		sendFailures: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	sendUploads  bool
	sendFailures bool
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, clientName, remotePath string) error {
	if !n.sendUploads {
		return nil
	}
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		clientName = "unknown client"
	}
	message := fmt.Sprintf("Recording for %s uploaded", clientName)
	if remotePath = strings.TrimSpace(remotePath); remotePath != "" {
		message = fmt.Sprintf("%s\nDestination: %s", message, remotePath)
	}
	data := payload{
		title:   "Shuttle - Upload Complete",
		message: message,
		tags:    []string{"shuttle", "upload", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, clientName, reason string) error {
	if !n.sendFailures {
		return nil
	}
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		clientName = "unknown client"
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "upload failed"
	}
	data := payload{
		title:    "Shuttle - Upload Failed",
		message:  fmt.Sprintf("Recording for %s failed: %s", clientName, reason),
		tags:     []string{"shuttle", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, completed, failed int, duration time.Duration) error {
	if !n.sendUploads {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Shuttle - Queue Drained"
		message = fmt.Sprintf("Upload queue drained: %d transfers in %s", completed, duration)
	} else {
		title = "Shuttle - Queue Drained (with errors)"
		message = fmt.Sprintf("Upload queue drained: %d succeeded, %d failed in %s", completed, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"shuttle", "queue", "drained"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendFailures {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Shuttle - Error",
		message:  builder.String(),
		tags:     []string{"shuttle", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Shuttle - Test",
		message:  "Notification system test",
		tags:     []string{"shuttle", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyUploadCompleted(context.Context, string, string) error       { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, string) error          { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
