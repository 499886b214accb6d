// Package dialect provides the PostgreSQL dialect definition.
// It has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

func init() {
	dialect.Register(Postgres)
}

// postgresReservedWords are the key words PostgreSQL rejects as bare
// column or table names, plus the non-reserved words the loader has
// historically quoted (name, type, key).
var postgresReservedWords = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc",
	"asymmetric", "authorization", "between", "binary", "both", "case", "cast",
	"check", "collate", "column", "constraint", "create", "cross",
	"current_catalog", "current_date", "current_role", "current_schema",
	"current_time", "current_timestamp", "current_user", "default",
	"deferrable", "desc", "distinct", "do", "else", "end", "except", "false",
	"fetch", "for", "foreign", "freeze", "from", "full", "grant", "group",
	"having", "ilike", "in", "index", "initially", "inner", "intersect", "into",
	"is", "isnull", "join", "key", "lateral", "leading", "left", "like", "limit",
	"localtime", "localtimestamp", "name", "natural", "not", "notnull", "null",
	"offset", "on", "only", "or", "order", "outer", "overlaps", "placing",
	"primary", "references", "returning", "right", "select", "session_user",
	"similar", "some", "symmetric", "table", "then", "to", "trailing", "true",
	"type", "union", "unique", "user", "using", "variadic", "verbose", "when",
	"where", "window", "with",
}

// Postgres is the PostgreSQL dialect configuration.
var Postgres = dialect.NewDialect("postgres").
	DefaultSchema("public").
	PlaceholderStyle(dialect.PlaceholderDollar).
	MaxParams(65535).
	WithReservedWords(postgresReservedWords...).
	Truncate("TRUNCATE TABLE %s CASCADE").
	WithSequences().
	WithSavepoints().
	Build()
