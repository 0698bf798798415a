package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Worker", statusOK, "Running (pid 42)", false)
	if !strings.Contains(line, "Worker:") || !strings.Contains(line, "[OK] Running (pid 42)") {
		t.Fatalf("unexpected status line: %q", line)
	}
	if strings.Contains(line, ansiGreen) {
		t.Fatalf("expected no color codes, got %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Worker", statusError, "stalled", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red colorized line, got %q", line)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Queue Status", false)
	if len(lines) != 2 {
		t.Fatalf("expected header and rule, got %d lines", len(lines))
	}
	if lines[0] != "== Queue Status ==" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) {
		t.Fatalf("rule length mismatch: %q vs %q", lines[0], lines[1])
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":    "Pending",
		"uploading":  "Uploading",
		"processing": "Processing",
		"completed":  "Completed",
		"error":      "Error",
		"":           "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}
