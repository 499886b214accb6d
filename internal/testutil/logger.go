// Package testutil provides test utilities for structured logging.
package testutil

import (
	"log/slog"
	"testing"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// NewTestLogger returns a logger that writes to t.Log(), including the
// SQL and ID trace levels.
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level:       core.LevelID,
		ReplaceAttr: traceLevelName,
	}))
}

func traceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	switch a.Value.Any() {
	case core.LevelSQL:
		a.Value = slog.StringValue("SQL")
	case core.LevelID:
		a.Value = slog.StringValue("ID")
	}
	return a
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
