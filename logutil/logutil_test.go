package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	logger.Log(t.Context(), LevelTrace, "tile", "index", 3)

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("TRACE-Level fehlt: %s", out)
	}
	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("Quellpfad nicht gekuerzt: %s", out)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Debug-Ausgabe bei INFO-Level: %s", buf.String())
	}
}
