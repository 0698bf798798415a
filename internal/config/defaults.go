package config

const (
	defaultSpoolDir           = "~/.local/share/shuttle/spool"
	defaultLogDir             = "~/.local/share/shuttle/logs"
	defaultSocketPath         = "~/.local/share/shuttle/shuttled.sock"
	defaultPresignExpiry      = 60
	defaultHookTimeout        = 15
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultRetentionMinutes   = 60
	defaultUploadTimeout      = 3600
	defaultMonitorInterval    = 5
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SpoolDir:   defaultSpoolDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Storage: Storage{
			UseSSL:        true,
			PresignExpiry: defaultPresignExpiry,
		},
		Hook: Hook{
			RequestTimeout: defaultHookTimeout,
		},
		Upload: Upload{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			RetentionMinutes:   defaultRetentionMinutes,
			RequestTimeout:     defaultUploadTimeout,
			MonitorInterval:    defaultMonitorInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Uploads:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
