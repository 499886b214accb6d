// Package logging builds the slog loggers used across leapmigrate.
//
// Besides the standard levels there are two verbose levels below DEBUG:
// SQL for every statement sent to a backend and ID for the key of every
// written row. Sinks select an explicit set of levels rather than a
// threshold, so a file sink can record ID lines without DEBUG noise.
package logging

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// Custom levels, re-exported from pkg/core.
const (
	LevelSQL = core.LevelSQL
	LevelID  = core.LevelID
)

var levelNames = map[slog.Level]string{
	slog.LevelError: "ERROR",
	slog.LevelWarn:  "WARNING",
	slog.LevelInfo:  "INFO",
	slog.LevelDebug: "DEBUG",
	LevelSQL:        "SQL",
	LevelID:         "ID",
}

// LevelName returns the configured name of a level (ERROR, WARNING, INFO,
// DEBUG, SQL, ID), falling back to slog's own formatting.
func LevelName(l slog.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return l.String()
}

// ParseLevel converts a level name to slog.Level. WARN is accepted as an
// alias of WARNING.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return slog.LevelError, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "SQL":
		return LevelSQL, nil
	case "ID":
		return LevelID, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// ParseLevels converts a list of level names.
func ParseLevels(names []string) ([]slog.Level, error) {
	levels := make([]slog.Level, 0, len(names))
	for _, name := range names {
		l, err := ParseLevel(name)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, nil
}

// replaceLevelName is a slog ReplaceAttr func that prints custom level names.
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(l))
		}
	}
	return a
}
