package testsupport

import (
	"log/slog"
	"testing"

	"shuttle/internal/logging"
)

// NewLogger returns a logger suitable for exercising components in tests.
// Output is discarded; failures should be asserted on state, not log text.
func NewLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return logging.NewNop()
}
