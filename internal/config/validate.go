package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shuttle/config.toml"
		}
		return fmt.Errorf("storage.endpoint is required. Edit %s (create with 'shuttle config init')", defaultPath)
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return errors.New("storage credentials are required. Set storage.access_key/secret_key or the SHUTTLE_STORAGE_ACCESS_KEY/SHUTTLE_STORAGE_SECRET_KEY env vars")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.HeartbeatTimeout <= c.Upload.HeartbeatInterval {
		return errors.New("upload.heartbeat_timeout must exceed upload.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
