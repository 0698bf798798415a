// Package uploader streams recording payloads to presigned destination URLs
// and invokes the post-transfer completion hook.
package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/storage"
)

const stageName = "upload"

// Request describes one transfer to a presigned destination.
type Request struct {
	URL         string
	Payload     io.Reader
	Size        int64
	ContentType string
	Progress    ProgressFunc
}

// Uploader performs streamed PUT transfers against presigned URLs.
type Uploader struct {
	client *http.Client
	logger *slog.Logger
}

// New builds an uploader using the configured request timeout.
func New(cfg *config.Config, logger *slog.Logger) *Uploader {
	timeout := time.Duration(cfg.Upload.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Upload streams the payload to the presigned URL. Progress ticks fire as the
// transport consumes the body. Failures are classified as transport errors or
// server rejections; neither is retried here.
func (u *Uploader) Upload(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return services.Wrap(services.ErrValidation, stageName, "put", "upload URL is empty", nil)
	}
	if req.Payload == nil {
		return services.Wrap(services.ErrValidation, stageName, "put", "payload reader is nil", nil)
	}

	body := newProgressReader(req.Payload, req.Size, req.Progress)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, req.URL, body)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "put", "build request", err)
	}
	httpReq.ContentLength = req.Size
	httpReq.Header.Set("Content-Type", NormalizeContentType(req.ContentType))
	httpReq.Header.Set("Cache-Control", "3600")
	httpReq.Header.Set("x-upsert", "false")

	u.logger.Info("starting transfer",
		logging.String("host", storage.SignedURLHost(req.URL)),
		logging.Int64("bytes", req.Size),
		logging.String(logging.FieldEventType, "upload_started"),
	)

	resp, err := u.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTransport, stageName, "put", "transfer aborted", ctx.Err())
		}
		return services.Wrap(services.ErrTransport, stageName, "put", "transfer failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := parseErrorBody(resp.Body)
		return services.Wrap(
			services.ErrRejected,
			stageName,
			"put",
			fmt.Sprintf("storage returned %d: %s", resp.StatusCode, message),
			nil,
		)
	}

	// Drain so the transport can reuse the connection.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	u.logger.Info("transfer finished",
		logging.Int64("bytes", req.Size),
		logging.String(logging.FieldEventType, "upload_finished"),
	)
	return nil
}

// parseErrorBody extracts a human-readable message from a rejection body.
// Storage backends answer with JSON carrying message or error fields; plain
// text bodies are passed through as-is.
func parseErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "no error detail"
	}
	return text
}
