package core

import (
	"fmt"
	"maps"
)

// Credential is a named logical database connection.
// Values are treated as immutable once the config loader has built them;
// Name is the identity used for pooled reuse.
type Credential struct {
	Name     string
	Kind     string // postgres, mysql, sqlite, duckdb
	Host     string
	Port     int
	User     string
	Password string
	Database string // database name, or file path for embedded backends
	Schema   string

	// Options are driver DSN options (sslmode, charset, ...).
	Options map[string]string

	// Params holds backend-specific settings (DuckDB extensions, session settings).
	Params map[string]any
}

// Clone returns a deep copy of the credential maps so callers cannot mutate
// a shared credential through them.
func (c Credential) Clone() Credential {
	c.Options = maps.Clone(c.Options)
	c.Params = maps.Clone(c.Params)
	return c
}

// String renders the credential without its password.
func (c Credential) String() string {
	return fmt.Sprintf("%s(%s://%s@%s:%d/%s)", c.Name, c.Kind, c.User, c.Host, c.Port, c.Database)
}
