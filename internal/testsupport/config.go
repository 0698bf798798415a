package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "shuttle.sock")
	cfgVal.Storage.Endpoint = "storage.test.invalid"
	cfgVal.Storage.Bucket = "recordings"
	cfgVal.Storage.AccessKey = "test-access"
	cfgVal.Storage.SecretKey = "test-secret"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithHookURL sets the completion hook endpoint on the test config.
func WithHookURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Hook.URL = url
	}
}

// WithNtfyTopic enables push notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
		b.cfg.Notifications.Uploads = true
		b.cfg.Notifications.Errors = true
	}
}

// WithRetentionMinutes overrides the terminal task retention window.
func WithRetentionMinutes(minutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.RetentionMinutes = minutes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SpoolDir)
}
