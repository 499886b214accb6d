// Package dialect provides the MySQL and MariaDB dialect definition.
// It has no database driver dependencies.
package dialect

import (
	"fmt"

	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
}

// mysqlReservedWords are commonly hit MySQL reserved words.
var mysqlReservedWords = []string{
	"add", "all", "alter", "and", "as", "asc", "between", "by", "call",
	"cascade", "case", "change", "check", "column", "condition", "constraint",
	"create", "cross", "current_date", "current_time", "current_timestamp",
	"current_user", "database", "databases", "default", "delete", "desc",
	"describe", "distinct", "div", "drop", "else", "exists", "explain",
	"false", "fetch", "for", "force", "foreign", "from", "fulltext", "function",
	"grant", "group", "having", "if", "ignore", "in", "index", "inner",
	"insert", "interval", "into", "is", "join", "key", "keys", "kill",
	"leading", "left", "like", "limit", "lines", "load", "lock", "match",
	"mod", "natural", "not", "null", "on", "option", "or", "order", "outer",
	"partition", "primary", "range", "read", "references", "regexp",
	"release", "rename", "repeat", "replace", "require", "restrict", "return",
	"revoke", "right", "rlike", "row", "rows", "schema", "select", "set",
	"show", "table", "then", "to", "trailing", "trigger", "true", "union",
	"unique", "unlock", "update", "usage", "use", "using", "values", "when",
	"where", "while", "with", "write",
}

// MySQL is the MySQL dialect configuration. Catalog lookups report the full
// column_type ("tinyint(1)") so boolean columns can be told apart.
var MySQL = dialect.NewDialect("mysql").
	Identifiers("`", "`", "``").
	PlaceholderStyle(dialect.PlaceholderQuestion).
	MaxParams(65535).
	WithReservedWords(mysqlReservedWords...).
	ColumnsQuery(columnsQuery).
	WithSavepoints().
	Build()

func columnsQuery(d *dialect.Dialect, schema, table string) (string, []any) {
	q := fmt.Sprintf(`SELECT column_name, column_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))
	return q, []any{schema, table}
}
