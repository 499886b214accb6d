// Package adapter provides the relational data path of leapmigrate:
// connections and their pool, the backend facade handed to rule handlers,
// and the batch writer, row cursor and table manager built on top of it.
//
// Concrete backends are in pkg/adapters/ subdirectories and register
// themselves with this package from init().
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

// Backend describes how to reach one kind of relational store.
type Backend interface {
	// Name returns the backend kind, e.g. "postgres".
	Name() string

	// DriverName returns the database/sql driver name to open.
	DriverName() string

	// DSN builds the driver connection string for a credential.
	DSN(cred core.Credential) (string, error)

	// Dialect returns the SQL dialect used for quoting, placeholders and catalog queries.
	Dialect() *dialect.Dialect
}

// SessionPreparer is implemented by backends that configure a freshly
// opened session (extensions, session settings).
type SessionPreparer interface {
	PrepareSession(ctx context.Context, db *sql.DB, cred core.Credential) error
}
