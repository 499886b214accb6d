// Package dialect describes how a relational backend spells identifiers,
// parameters, and the catalog and maintenance statements the engine issues.
//
// Concrete dialects are registered from pkg/adapters/*/dialect packages.
package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnsupported is returned for operations a dialect cannot express.
var ErrUnsupported = errors.New("operation not supported by dialect")

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Quote character: ", `
	QuoteEnd string // End quote character (usually same as Quote)
	Escape   string // Escape sequence for QuoteEnd inside a name: "", ``
}

// QueryFunc builds a parameterized catalog query.
type QueryFunc func(d *Dialect, schema, table string) (string, []any)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers IdentifierConfig

	DefaultSchema string           // "public" for Postgres, "main" for DuckDB and SQLite
	Placeholder   PlaceholderStyle // How to format query parameters

	// MaxParams is the bind parameter limit of a single statement (0 = no limit).
	MaxParams int

	reservedWords map[string]struct{}

	columnsQuery     QueryFunc
	tablesQuery      QueryFunc
	truncateTemplate string
	sequences        bool
	savepoints       bool
}

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default:
		return "?"
	}
}

// IsReservedWord reports whether word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes reserved words and names that are not
// plain lowercase identifiers.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) || !plainIdentifier.MatchString(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// QualifiedName renders schema.table, or just table when schema is empty.
func (d *Dialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifierIfNeeded(table)
	}
	return d.QuoteIdentifierIfNeeded(schema) + "." + d.QuoteIdentifierIfNeeded(table)
}

// ColumnsQuery returns the catalog query listing column name, declared type,
// nullability (YES/NO) and default of a table, in catalog order.
func (d *Dialect) ColumnsQuery(schema, table string) (string, []any) {
	if d.columnsQuery != nil {
		return d.columnsQuery(d, schema, table)
	}
	return InformationSchemaColumns(d, schema, table)
}

// TablesQuery returns the catalog query listing base table names of a schema.
func (d *Dialect) TablesQuery(schema string) (string, []any) {
	if d.tablesQuery != nil {
		return d.tablesQuery(d, schema, "")
	}
	return InformationSchemaTables(d, schema, "")
}

// TruncateStatement returns the statement emptying the qualified table.
func (d *Dialect) TruncateStatement(qualified string) string {
	tmpl := d.truncateTemplate
	if tmpl == "" {
		tmpl = "TRUNCATE TABLE %s"
	}
	return fmt.Sprintf(tmpl, qualified)
}

// SupportsSequences reports whether <table>_id_seq sequence maintenance is available.
func (d *Dialect) SupportsSequences() bool {
	return d.sequences
}

// SupportsSavepoints reports whether SAVEPOINT and ROLLBACK TO SAVEPOINT
// can scope a group of statements inside a transaction.
func (d *Dialect) SupportsSavepoints() bool {
	return d.savepoints
}

// InformationSchemaColumns is the information_schema.columns lookup shared by
// Postgres-compatible backends.
func InformationSchemaColumns(d *Dialect, schema, table string) (string, []any) {
	//nolint:gosec // placeholders come from FormatPlaceholder
	q := fmt.Sprintf(`SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))
	return q, []any{schema, table}
}

// InformationSchemaTables lists base tables through information_schema.tables.
func InformationSchemaTables(d *Dialect, schema, _ string) (string, []any) {
	//nolint:gosec // placeholders come from FormatPlaceholder
	q := fmt.Sprintf(`SELECT table_name
FROM information_schema.tables
WHERE table_schema = %s AND table_type = 'BASE TABLE'
ORDER BY table_name`, d.FormatPlaceholder(1))
	return q, []any{schema}
}

// Builder constructs a Dialect.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with ANSI double-quote identifiers.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: IdentifierConfig{
				Quote:    `"`,
				QuoteEnd: `"`,
				Escape:   `""`,
			},
			reservedWords: make(map[string]struct{}),
		},
	}
}

// Identifiers configures identifier quoting.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.dialect.Identifiers = IdentifierConfig{Quote: quote, QuoteEnd: quoteEnd, Escape: escape}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// MaxParams sets the bind parameter limit of a single statement.
func (b *Builder) MaxParams(n int) *Builder {
	b.dialect.MaxParams = n
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// ColumnsQuery overrides the column catalog query.
func (b *Builder) ColumnsQuery(fn QueryFunc) *Builder {
	b.dialect.columnsQuery = fn
	return b
}

// TablesQuery overrides the table listing query.
func (b *Builder) TablesQuery(fn QueryFunc) *Builder {
	b.dialect.tablesQuery = fn
	return b
}

// Truncate sets the truncate statement template; %s is the qualified table.
func (b *Builder) Truncate(tmpl string) *Builder {
	b.dialect.truncateTemplate = tmpl
	return b
}

// WithSequences enables <table>_id_seq sequence maintenance.
func (b *Builder) WithSequences() *Builder {
	b.dialect.sequences = true
	return b
}

// WithSavepoints enables savepoints inside transactions.
func (b *Builder) WithSavepoints() *Builder {
	b.dialect.savepoints = true
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
