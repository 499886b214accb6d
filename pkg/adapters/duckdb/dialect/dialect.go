// Package dialect provides the DuckDB dialect definition.
// It has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

var duckdbReservedWords = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc",
	"asymmetric", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "default", "deferrable", "desc", "describe",
	"distinct", "do", "else", "end", "except", "false", "fetch", "for",
	"foreign", "from", "grant", "group", "having", "in", "initially",
	"intersect", "into", "lateral", "leading", "limit", "not", "null",
	"offset", "on", "only", "or", "order", "pivot", "placing", "primary",
	"qualify", "references", "returning", "select", "show", "some",
	"summarize", "symmetric", "table", "then", "to", "trailing", "true",
	"union", "unique", "unpivot", "using", "variadic", "when", "where",
	"window", "with",
}

// DuckDB is the DuckDB dialect configuration.
var DuckDB = dialect.NewDialect("duckdb").
	DefaultSchema("main").
	PlaceholderStyle(dialect.PlaceholderQuestion).
	WithReservedWords(duckdbReservedWords...).
	Build()
