// Package queue persists upload tasks in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stale-task recovery, and status transitions
// that mirror the public upload lifecycle. Tasks capture transfer progress,
// recording metadata, and the flags that guarantee completion hooks and
// notifications fire at most once, so the worker and the monitor can
// coordinate without additional state.
//
// The database survives daemon restarts; terminal tasks are retained for a
// configurable window before the purge removes them along with their spooled
// payloads.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or metadata fields, add a migration and extend the
// expected column list in store_maintenance.go.
package queue
