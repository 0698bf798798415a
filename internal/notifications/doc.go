// Package notifications delivers upload events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The Service methods cover the upload milestones the monitor
// surfaces so daemon code can emit consistent, user-friendly messages without
// duplicating HTTP glue.
//
// Extend this package if you need alternative transports; all daemon code
// depends only on the simple Service interface.
package notifications
