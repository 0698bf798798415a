// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
// The server wraps the daemon with request/response types from this package;
// the client provides a typed wrapper for CLI commands.
package ipc
