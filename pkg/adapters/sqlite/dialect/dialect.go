// Package dialect provides the SQLite dialect definition.
// It has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

var sqliteReservedWords = []string{
	"abort", "action", "add", "all", "alter", "and", "as", "asc", "between",
	"by", "case", "check", "collate", "column", "commit", "constraint",
	"create", "cross", "default", "deferrable", "delete", "desc", "distinct",
	"drop", "else", "end", "escape", "except", "exists", "foreign", "from",
	"full", "glob", "group", "having", "if", "in", "index", "inner", "insert",
	"intersect", "into", "is", "isnull", "join", "key", "left", "like",
	"limit", "match", "natural", "not", "notnull", "null", "of", "offset",
	"on", "or", "order", "outer", "primary", "references", "regexp",
	"replace", "right", "rollback", "select", "set", "table", "then", "to",
	"transaction", "union", "unique", "update", "using", "values", "when",
	"where", "with",
}

// SQLite is the SQLite dialect configuration. The catalog is read through
// pragma_table_info and sqlite_master; TRUNCATE is spelled DELETE FROM.
var SQLite = dialect.NewDialect("sqlite").
	DefaultSchema("main").
	PlaceholderStyle(dialect.PlaceholderQuestion).
	MaxParams(32766).
	WithReservedWords(sqliteReservedWords...).
	ColumnsQuery(columnsQuery).
	TablesQuery(tablesQuery).
	Truncate("DELETE FROM %s").
	WithSavepoints().
	Build()

func columnsQuery(_ *dialect.Dialect, schema, table string) (string, []any) {
	return `SELECT name, type, CASE WHEN "notnull" = 1 OR pk > 0 THEN 'NO' ELSE 'YES' END, dflt_value
FROM pragma_table_info(?, ?)
ORDER BY cid`, []any{table, schema}
}

func tablesQuery(d *dialect.Dialect, schema, _ string) (string, []any) {
	return "SELECT name FROM " + d.QuoteIdentifierIfNeeded(schema) + `.sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`, nil
}
