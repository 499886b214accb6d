package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Backend { return New(logger) })
}
