package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

const loggingSection = "system_logging"

// Setup builds the logger described by cfg: a console sink on stdout and,
// when configured, an append-mode file sink. The returned closer releases
// the file and must be called once the logger is no longer used.
func Setup(cfg config.LoggingConfig, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	console, err := newSink(stdout, cfg.Console.Format, cfg.Console.Levels)
	if err != nil {
		return nil, nil, &core.ConfigError{Section: loggingSection + ".console_log", Message: "invalid sink", Err: err}
	}

	if cfg.File == nil || cfg.File.Path == "" {
		return slog.New(console), nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.File.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from config
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	file, err := newSink(f, cfg.File.Format, cfg.File.Levels)
	if err != nil {
		_ = f.Close()
		return nil, nil, &core.ConfigError{Section: loggingSection + ".file_log", Message: "invalid sink", Err: err}
	}

	return slog.New(NewFanoutHandler(console, file)), f, nil
}

// WithLevels returns levels plus extra, without duplicates.
func WithLevels(levels []string, extra ...string) []string {
	out := append([]string(nil), levels...)
	for _, e := range extra {
		found := false
		for _, l := range out {
			if strings.EqualFold(l, e) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return out
}

func newSink(w io.Writer, format string, names []string) (slog.Handler, error) {
	levels, err := ParseLevels(names)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level:       LevelID,
		ReplaceAttr: replaceLevelName,
	}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return NewLevelSetHandler(h, levels...), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
