package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeHook()
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		c.Paths.SpoolDir = defaultSpoolDir
	}
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("SHUTTLE_STORAGE_ACCESS_KEY"); ok {
			c.Storage.AccessKey = value
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("SHUTTLE_STORAGE_SECRET_KEY"); ok {
			c.Storage.SecretKey = value
		}
	}
	if c.Storage.PresignExpiry <= 0 {
		c.Storage.PresignExpiry = defaultPresignExpiry
	}
}

func (c *Config) normalizeHook() {
	c.Hook.URL = strings.TrimSpace(c.Hook.URL)
	if c.Hook.AuthToken == "" {
		if value, ok := os.LookupEnv("SHUTTLE_HOOK_TOKEN"); ok {
			c.Hook.AuthToken = value
		}
	}
	if c.Hook.RequestTimeout <= 0 {
		c.Hook.RequestTimeout = defaultHookTimeout
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.QueuePollInterval <= 0 {
		c.Upload.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Upload.ErrorRetryInterval <= 0 {
		c.Upload.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Upload.HeartbeatInterval <= 0 {
		c.Upload.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Upload.HeartbeatTimeout <= 0 {
		c.Upload.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Upload.RetentionMinutes < 0 {
		c.Upload.RetentionMinutes = defaultRetentionMinutes
	}
	if c.Upload.RequestTimeout <= 0 {
		c.Upload.RequestTimeout = defaultUploadTimeout
	}
	if c.Upload.MonitorInterval <= 0 {
		c.Upload.MonitorInterval = defaultMonitorInterval
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
