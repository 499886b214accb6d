package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
)

func init() {
	adapter.Register("mysql", func(logger *slog.Logger) adapter.Backend { return New(logger) })
}
