// Package api defines wire-format types and converters for the IPC layer.
// It translates internal queue models into transport-friendly DTOs so CLI
// consumers can render them without coupling to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.MediaKind)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api
