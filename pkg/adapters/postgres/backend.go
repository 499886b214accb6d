// Package postgres provides the PostgreSQL backend, driven by pgx through
// database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	pgdialect "github.com/leapstack-labs/leapmigrate/pkg/adapters/postgres/dialect"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

const (
	defaultHost = "localhost"
	defaultPort = 5432
)

// Backend implements adapter.Backend for PostgreSQL.
type Backend struct {
	logger *slog.Logger
}

// New creates a PostgreSQL backend.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{logger: logger}
}

// Name returns the backend kind.
func (b *Backend) Name() string { return "postgres" }

// DriverName returns the database/sql driver name.
func (b *Backend) DriverName() string { return "pgx" }

// Dialect returns the PostgreSQL dialect.
func (b *Backend) Dialect() *dialect.Dialect { return pgdialect.Postgres }

// DSN builds a key=value connection string from the credential.
func (b *Backend) DSN(cred core.Credential) (string, error) {
	if cred.Database == "" {
		return "", fmt.Errorf("postgres: database name is required")
	}
	b.logger.Debug("connecting to postgres", slog.String("host", cred.Host), slog.String("database", cred.Database))
	return buildDSN(cred), nil
}

// PrepareSession points search_path at the credential schema so
// unqualified statements in rule code resolve there too.
func (b *Backend) PrepareSession(ctx context.Context, db *sql.DB, cred core.Credential) error {
	if cred.Schema == "" {
		return nil
	}
	stmt := "SET search_path TO " + pgdialect.Postgres.QuoteIdentifierIfNeeded(cred.Schema)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	return nil
}

// buildDSN constructs a PostgreSQL connection string.
// Options are appended sorted by key; sslmode defaults to disable.
func buildDSN(cred core.Credential) string {
	host := cred.Host
	if host == "" {
		host = defaultHost
	}
	port := cred.Port
	if port == 0 {
		port = defaultPort
	}

	parts := []string{
		"host=" + quoteValue(host),
		"port=" + strconv.Itoa(port),
		"dbname=" + quoteValue(cred.Database),
	}
	if cred.User != "" {
		parts = append(parts, "user="+quoteValue(cred.User))
	}
	if cred.Password != "" {
		parts = append(parts, "password="+quoteValue(cred.Password))
	}

	opts := maps.Clone(cred.Options)
	if opts == nil {
		opts = map[string]string{}
	}
	if _, ok := opts["sslmode"]; !ok {
		opts["sslmode"] = "disable"
	}
	for _, k := range slices.Sorted(maps.Keys(opts)) {
		parts = append(parts, k+"="+quoteValue(opts[k]))
	}
	return strings.Join(parts, " ")
}

// quoteValue single-quotes a DSN value when it is empty or contains
// spaces, quotes or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

var (
	_ adapter.Backend         = (*Backend)(nil)
	_ adapter.SessionPreparer = (*Backend)(nil)
)
