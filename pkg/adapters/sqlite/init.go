package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Backend { return New(logger) })
}
