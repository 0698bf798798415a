// Package spool mirrors upload payloads into a daemon-owned directory so
// queued tasks survive the disappearance of their original source files.
package spool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shuttle/internal/config"
	"shuttle/internal/fileutil"
)

// Manager copies payloads into the spool directory and resolves them later.
type Manager struct {
	dir string
}

// NewManager returns a manager rooted at the configured spool directory.
func NewManager(cfg *config.Config) (*Manager, error) {
	dir := strings.TrimSpace(cfg.Paths.SpoolDir)
	if dir == "" {
		return nil, errors.New("spool directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the spool root.
func (m *Manager) Dir() string {
	return m.dir
}

// Put mirrors the source payload under the task key and returns the spool path.
// The copy is verified so a truncated mirror never masquerades as the payload.
func (m *Manager) Put(ctx context.Context, taskKey, sourcePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(taskKey) == "" {
		return "", errors.New("task key is required")
	}

	target := m.pathFor(taskKey, sourcePath)
	if err := fileutil.CopyFileVerified(sourcePath, target); err != nil {
		return "", fmt.Errorf("spool payload: %w", err)
	}
	return target, nil
}

// Open opens a spooled payload for reading.
func (m *Manager) Open(spoolPath string) (*os.File, error) {
	if !m.owns(spoolPath) {
		return nil, fmt.Errorf("path %q is outside the spool directory", spoolPath)
	}
	return os.Open(spoolPath)
}

// Remove deletes a spooled payload. Missing files are not an error.
func (m *Manager) Remove(spoolPath string) error {
	if spoolPath == "" {
		return nil
	}
	if !m.owns(spoolPath) {
		return fmt.Errorf("path %q is outside the spool directory", spoolPath)
	}
	if err := os.Remove(spoolPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove spooled payload: %w", err)
	}
	return nil
}

func (m *Manager) pathFor(taskKey, sourcePath string) string {
	name := taskKey
	if ext := filepath.Ext(sourcePath); ext != "" {
		name += ext
	}
	return filepath.Join(m.dir, name)
}

func (m *Manager) owns(path string) bool {
	if path == "" {
		return false
	}
	rel, err := filepath.Rel(m.dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
