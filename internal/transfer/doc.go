// Package transfer implements the two upload lifecycle stages.
//
// The transfer stage moves pending tasks to the destination bucket: it
// mirrors the payload into the spool, presigns the destination URL when the
// task does not already carry one, and streams the bytes with persisted
// progress ticks. The finalize stage fires the completion hook at most once
// per task and releases the spooled payload.
package transfer
