// Package sqlite provides the SQLite backend, driven by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	litedialect "github.com/leapstack-labs/leapmigrate/pkg/adapters/sqlite/dialect"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"

	_ "modernc.org/sqlite" // sqlite driver
)

// Backend implements adapter.Backend for SQLite files.
type Backend struct {
	logger *slog.Logger
}

// New creates a SQLite backend.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger}
}

// Name returns the backend kind.
func (b *Backend) Name() string { return "sqlite" }

// DriverName returns the database/sql driver name.
func (b *Backend) DriverName() string { return "sqlite" }

// Dialect returns the SQLite dialect.
func (b *Backend) Dialect() *dialect.Dialect { return litedialect.SQLite }

// DSN uses the credential database as the file path. Each option becomes
// a connection pragma, e.g. busy_timeout: 5000 -> _pragma=busy_timeout(5000).
func (b *Backend) DSN(cred core.Credential) (string, error) {
	if cred.Database == "" {
		return "", fmt.Errorf("sqlite: database path is required")
	}
	b.logger.Debug("opening sqlite", slog.String("path", cred.Database))
	return buildDSN(cred), nil
}

func buildDSN(cred core.Credential) string {
	if len(cred.Options) == 0 {
		return cred.Database
	}
	q := url.Values{}
	for _, k := range slices.Sorted(maps.Keys(cred.Options)) {
		q.Add("_pragma", fmt.Sprintf("%s(%s)", k, cred.Options[k]))
	}
	return "file:" + cred.Database + "?" + q.Encode()
}

var _ adapter.Backend = (*Backend)(nil)
