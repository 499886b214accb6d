// Package duckdb provides the DuckDB backend.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	duckdialect "github.com/leapstack-labs/leapmigrate/pkg/adapters/duckdb/dialect"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// MemoryPath opens an in-memory database.
const MemoryPath = ":memory:"

// Backend implements adapter.Backend for DuckDB.
type Backend struct {
	logger *slog.Logger
}

// New creates a DuckDB backend.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger}
}

// Name returns the backend kind.
func (b *Backend) Name() string { return "duckdb" }

// DriverName returns the database/sql driver name.
func (b *Backend) DriverName() string { return "duckdb" }

// Dialect returns the DuckDB dialect.
func (b *Backend) Dialect() *dialect.Dialect { return duckdialect.DuckDB }

// DSN uses the credential database as the file path; an empty path opens
// an in-memory database. Options become DSN config parameters.
func (b *Backend) DSN(cred core.Credential) (string, error) {
	path := cred.Database
	if path == "" {
		path = MemoryPath
	}
	if len(cred.Options) == 0 {
		return path, nil
	}
	q := url.Values{}
	for _, k := range slices.Sorted(maps.Keys(cred.Options)) {
		q.Set(k, cred.Options[k])
	}
	return path + "?" + q.Encode(), nil
}

// PrepareSession loads extensions, applies settings and creates secrets
// from the credential params.
func (b *Backend) PrepareSession(ctx context.Context, db *sql.DB, cred core.Credential) error {
	params, err := parseParams(cred.Params)
	if err != nil {
		return err
	}
	for _, stmt := range params.statements() {
		b.logger.Log(ctx, core.LevelSQL, "duckdb session setup", slog.String("sql", redact(stmt)))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("duckdb session setup: %w", err)
		}
	}
	return nil
}

// redact hides secret statements from logs.
func redact(stmt string) string {
	const prefix = "CREATE OR REPLACE SECRET"
	if strings.HasPrefix(stmt, prefix) {
		return prefix + " ..."
	}
	return stmt
}

var (
	_ adapter.Backend         = (*Backend)(nil)
	_ adapter.SessionPreparer = (*Backend)(nil)
)
