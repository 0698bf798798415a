package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/config"
)

func TestLoadDefaultsUsesEnvCredentialsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SHUTTLE_STORAGE_ACCESS_KEY", "env-access")
	t.Setenv("SHUTTLE_STORAGE_SECRET_KEY", "env-secret")

	configPath := filepath.Join(tempHome, "shuttle.toml")
	contents := strings.Join([]string{
		"[storage]",
		`endpoint = "storage.example.com"`,
		`bucket = "checkins"`,
	}, "\n")
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}

	wantSpool := filepath.Join(tempHome, ".local", "share", "shuttle", "spool")
	if cfg.Paths.SpoolDir != wantSpool {
		t.Fatalf("unexpected spool dir: got %q want %q", cfg.Paths.SpoolDir, wantSpool)
	}
	if cfg.Storage.AccessKey != "env-access" || cfg.Storage.SecretKey != "env-secret" {
		t.Fatalf("expected credentials from env, got %q/%q", cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	}
	if cfg.Upload.RetentionMinutes != 60 {
		t.Fatalf("unexpected retention default: %d", cfg.Upload.RetentionMinutes)
	}
	if cfg.Upload.QueuePollInterval != 5 {
		t.Fatalf("unexpected poll interval default: %d", cfg.Upload.QueuePollInterval)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format default: %q", cfg.Logging.Format)
	}
}

func TestLoadKeepsZeroRetention(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "shuttle.toml")
	contents := strings.Join([]string{
		"[storage]",
		`endpoint = "storage.example.com"`,
		`bucket = "checkins"`,
		`access_key = "ak"`,
		`secret_key = "sk"`,
		"[upload]",
		"retention_minutes = 0",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Upload.RetentionMinutes != 0 {
		t.Fatalf("retention_minutes = 0 should disable purging, got %d", cfg.Upload.RetentionMinutes)
	}

	negative := strings.Replace(contents, "retention_minutes = 0", "retention_minutes = -5", 1)
	if err := os.WriteFile(configPath, []byte(negative), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Upload.RetentionMinutes != 60 {
		t.Fatalf("negative retention should fall back to default, got %d", cfg.Upload.RetentionMinutes)
	}
}

func TestLoadRejectsMissingStorage(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SHUTTLE_STORAGE_ACCESS_KEY", "")
	t.Setenv("SHUTTLE_STORAGE_SECRET_KEY", "")
	os.Unsetenv("SHUTTLE_STORAGE_ACCESS_KEY")
	os.Unsetenv("SHUTTLE_STORAGE_SECRET_KEY")

	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error when storage endpoint missing")
	}
}

func TestLoadRejectsBadHeartbeat(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "shuttle.toml")
	contents := strings.Join([]string{
		"[storage]",
		`endpoint = "storage.example.com"`,
		`bucket = "checkins"`,
		`access_key = "ak"`,
		`secret_key = "sk"`,
		"[upload]",
		"heartbeat_interval = 60",
		"heartbeat_timeout = 30",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected heartbeat validation error")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	tempHome := t.TempDir()
	target := filepath.Join(tempHome, "config.toml")

	if err := config.WriteSample(target); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(target); err == nil {
		t.Fatal("expected error on existing file")
	}
}
