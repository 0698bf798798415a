package spool

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shuttle/internal/logging"
)

// CleanResult contains the outcome of a spool cleanup operation.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a payload path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanOrphaned removes spooled payloads that no queued task references.
// Payloads are keyed by task key, so anything whose basename does not match
// an active key is fair game.
func (m *Manager) CleanOrphaned(ctx context.Context, activeKeys map[string]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: m.dir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return result
		}

		name := entry.Name()
		key := strings.TrimSuffix(name, filepath.Ext(name))
		if _, active := activeKeys[key]; active {
			continue
		}

		path := filepath.Join(m.dir, name)
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned spool payload",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "spool_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check spool_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
		} else {
			result.Removed = append(result.Removed, path)
			if logger != nil {
				logger.Info("removed orphaned spool payload",
					logging.String("path", path),
					logging.String(logging.FieldEventType, "spool_cleanup"),
				)
			}
		}
	}

	return result
}

// PayloadInfo contains metadata about a spooled payload.
type PayloadInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// List returns all spooled payloads with their metadata.
func (m *Manager) List() ([]PayloadInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var payloads []PayloadInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		payloads = append(payloads, PayloadInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(m.dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	return payloads, nil
}
