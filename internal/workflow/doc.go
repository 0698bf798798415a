// Package workflow advances upload tasks through the configured processing
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// tasks into registered stage handlers (transfer, finalize) while capturing
// progress and failure metadata. It also aggregates queue stats and calls
// stage health checks.
//
// Tasks are processed one at a time. A single worker goroutine owns the whole
// lifecycle, so no two tasks are ever simultaneously in the uploading status
// and transfers never compete for bandwidth.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition tasks; this package is the
// authoritative home for that coordination logic.
package workflow
