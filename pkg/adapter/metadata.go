package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

// TableManager resolves catalog metadata of one table and runs the
// maintenance statements the engine needs around a load.
type TableManager struct {
	conn   *Connection
	logger *slog.Logger

	// catalogSchema is the schema used for catalog lookups.
	catalogSchema string
	// schema qualifies statements; empty leaves the table unqualified.
	schema string
	table  string
}

func newTableManager(conn *Connection, table string, logger *slog.Logger) *TableManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cred := conn.Credential()
	schema := cred.Schema
	if s, name, ok := strings.Cut(table, "."); ok {
		schema, table = s, name
	}
	return &TableManager{
		conn:          conn,
		logger:        logger,
		catalogSchema: catalogSchema(conn.Dialect(), cred, schema),
		schema:        schema,
		table:         table,
	}
}

// catalogSchema picks the schema catalog queries filter on: the explicit
// schema, else the dialect default, else the database name (MySQL).
func catalogSchema(d *dialect.Dialect, cred core.Credential, schema string) string {
	switch {
	case schema != "":
		return schema
	case d.DefaultSchema != "":
		return d.DefaultSchema
	default:
		return cred.Database
	}
}

// Table returns the unqualified table name.
func (m *TableManager) Table() string {
	return m.table
}

// QualifiedName returns the table name as used in statements.
func (m *TableManager) QualifiedName() string {
	return m.conn.Dialect().QualifiedName(m.schema, m.table)
}

// Columns lists the table columns in catalog order. A missing table or
// schema yields an empty slice, not an error.
func (m *TableManager) Columns(ctx context.Context) ([]core.Column, error) {
	query, args := m.conn.Dialect().ColumnsQuery(m.catalogSchema, m.table)
	rows, err := m.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.QueryError{Op: "get table columns " + m.table, SQL: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns := []core.Column{}
	for rows.Next() {
		var (
			col      core.Column
			nullable string
			def      sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &def); err != nil {
			return nil, &core.QueryError{Op: "scan table columns " + m.table, SQL: query, Err: err}
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		if def.Valid {
			col.Default = &def.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.QueryError{Op: "get table columns " + m.table, SQL: query, Err: err}
	}
	return columns, nil
}

// Describe resolves the full TableSchema: columns and row count.
func (m *TableManager) Describe(ctx context.Context) (*core.TableSchema, error) {
	columns, err := m.Columns(ctx)
	if err != nil {
		return nil, err
	}
	schema := &core.TableSchema{Name: m.table, Columns: columns}
	if len(columns) == 0 {
		return schema, nil
	}
	if schema.RowCount, err = m.RowCount(ctx); err != nil {
		return nil, err
	}
	return schema, nil
}

// RowCount returns the number of rows in the table.
func (m *TableManager) RowCount(ctx context.Context) (int64, error) {
	query := "SELECT COUNT(*) FROM " + m.QualifiedName()
	var count sql.NullInt64
	if err := m.queryRow(ctx, query, &count); err != nil {
		return 0, &core.QueryError{Op: "get row count " + m.table, SQL: query, Err: err}
	}
	return count.Int64, nil
}

// MaxID returns MAX(column), or nil for an empty table.
func (m *TableManager) MaxID(ctx context.Context, column string) (any, error) {
	d := m.conn.Dialect()
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", d.QuoteIdentifierIfNeeded(column), m.QualifiedName())
	var maxID any
	if err := m.queryRow(ctx, query, &maxID); err != nil {
		return nil, &core.QueryError{Op: "get max id " + m.table, SQL: query, Err: err}
	}
	if b, ok := maxID.([]byte); ok {
		maxID = string(b)
	}
	return maxID, nil
}

// Truncate removes every row (cascading where the backend supports it)
// and commits.
func (m *TableManager) Truncate(ctx context.Context) error {
	stmt := m.conn.Dialect().TruncateStatement(m.QualifiedName())
	if err := m.execAndCommit(ctx, "truncate "+m.table, stmt); err != nil {
		return err
	}
	m.logger.Debug("table truncated", slog.String("table", m.QualifiedName()))
	return nil
}

func (m *TableManager) sequenceName() (string, error) {
	d := m.conn.Dialect()
	if !d.SupportsSequences() {
		return "", fmt.Errorf("%s: sequences: %w", d.Name, dialect.ErrUnsupported)
	}
	return d.QualifiedName(m.schema, m.table+"_id_seq"), nil
}

// ResetSequence restarts the <table>_id_seq sequence at 1 and commits.
func (m *TableManager) ResetSequence(ctx context.Context) error {
	seq, err := m.sequenceName()
	if err != nil {
		return &core.QueryError{Op: "reset sequence " + m.table, Err: err}
	}
	if err := m.execAndCommit(ctx, "reset sequence "+m.table, "ALTER SEQUENCE "+seq+" RESTART WITH 1"); err != nil {
		return err
	}
	m.logger.Debug("sequence reset", slog.String("sequence", seq))
	return nil
}

// SequenceCurrentValue returns last_value of the <table>_id_seq sequence.
func (m *TableManager) SequenceCurrentValue(ctx context.Context) (int64, error) {
	seq, err := m.sequenceName()
	if err != nil {
		return 0, &core.QueryError{Op: "get sequence value " + m.table, Err: err}
	}
	query := "SELECT last_value FROM " + seq
	var v int64
	if err := m.queryRow(ctx, query, &v); err != nil {
		return 0, &core.QueryError{Op: "get sequence value " + m.table, SQL: query, Err: err}
	}
	return v, nil
}

// SetSequenceValue makes the next nextval() of the sequence return value, then commits.
func (m *TableManager) SetSequenceValue(ctx context.Context, value int64) error {
	seq, err := m.sequenceName()
	if err != nil {
		return &core.QueryError{Op: "set sequence value " + m.table, Err: err}
	}
	d := m.conn.Dialect()
	query := fmt.Sprintf("SELECT setval('%s', %s, false)", strings.ReplaceAll(seq, "'", "''"), d.FormatPlaceholder(1))
	var ignored any
	if err := m.queryRow(ctx, query, &ignored, value); err != nil {
		return &core.QueryError{Op: "set sequence value " + m.table, SQL: query, Err: err}
	}
	if err := m.conn.Commit(); err != nil {
		return err
	}
	m.logger.Debug("sequence value set", slog.String("sequence", seq), slog.Int64("value", value))
	return nil
}

func (m *TableManager) queryRow(ctx context.Context, query string, dest any, args ...any) error {
	row, err := m.conn.QueryRowContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return row.Scan(dest)
}

func (m *TableManager) execAndCommit(ctx context.Context, op, stmt string) error {
	if _, err := m.conn.ExecContext(ctx, stmt); err != nil {
		return &core.QueryError{Op: op, SQL: stmt, Err: err}
	}
	return m.conn.Commit()
}
