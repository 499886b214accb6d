package core

import "log/slog"

// Trace levels below slog.LevelDebug used by the data path.
const (
	// LevelSQL traces every statement sent to a backend.
	LevelSQL = slog.LevelDebug - 4
	// LevelID traces the id column of every flushed row.
	LevelID = slog.LevelDebug - 8
)
