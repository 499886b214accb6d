package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// DefaultIDColumn is the column traced at the ID log level.
const DefaultIDColumn = "id"

// BatchWriter buffers rows for one destination table and flushes them with
// multi-row INSERT statements.
//
// The buffer never holds more than bufferSize rows after a successful
// Insert: reaching the threshold flushes synchronously. A flush either
// writes every buffered row or returns an error and keeps the buffer; a flush
// split across statements is scoped by a savepoint where the dialect has one.
type BatchWriter struct {
	conn       *Connection
	logger     *slog.Logger
	table      *core.TableSchema
	target     string
	columns    []string
	columnList string
	bufferSize int
	bulkCommit bool
	buffer     [][]any

	idIndex  int
	idPrefix string
}

func newBatchWriter(conn *Connection, schema string, table *core.TableSchema, bufferSize int, bulkCommit bool, idColumn string, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := conn.Dialect()
	if bufferSize < 1 {
		bufferSize = 1
	}

	columns := table.ColumnNames()
	quoted := make([]string, len(columns))
	idIndex := -1
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifierIfNeeded(c)
		if c == idColumn {
			idIndex = i
		}
	}

	idPrefix := table.Name
	if schema != "" {
		idPrefix = schema + "." + table.Name
	}

	return &BatchWriter{
		conn:       conn,
		logger:     logger,
		table:      table,
		target:     d.QualifiedName(schema, table.Name),
		columns:    columns,
		columnList: strings.Join(quoted, ", "),
		bufferSize: bufferSize,
		bulkCommit: bulkCommit,
		buffer:     make([][]any, 0, bufferSize),
		idIndex:    idIndex,
		idPrefix:   idPrefix + "." + idColumn,
	}
}

// Table returns the resolved destination schema.
func (w *BatchWriter) Table() *core.TableSchema {
	return w.table
}

// Columns returns the destination column order.
func (w *BatchWriter) Columns() []string {
	return w.columns
}

// Buffered returns the number of rows waiting for a flush.
func (w *BatchWriter) Buffered() int {
	return len(w.buffer)
}

// Insert appends a row to the buffer. When the buffer reaches its size the
// rows are flushed and Insert reports true.
func (w *BatchWriter) Insert(ctx context.Context, row core.Row) (bool, error) {
	values, err := row.Positional(w.columns)
	if err != nil {
		return false, fmt.Errorf("insert into %s: %w", w.target, err)
	}
	if len(values) != len(w.columns) {
		return false, fmt.Errorf("insert into %s: row has %d values, table has %d columns", w.target, len(values), len(w.columns))
	}
	w.buffer = append(w.buffer, values)
	if len(w.buffer) >= w.bufferSize {
		return w.FlushBuffer(ctx)
	}
	return false, nil
}

// FlushBuffer writes every buffered row. An empty buffer is a no-op that
// reports false. With bulk commit enabled the flush is committed.
func (w *BatchWriter) FlushBuffer(ctx context.Context) (bool, error) {
	if len(w.buffer) == 0 {
		return false, nil
	}

	if err := w.insertChunks(ctx); err != nil {
		return false, err
	}

	w.logger.Debug(fmt.Sprintf("Inserted %d rows into %s.", len(w.buffer), w.target))
	w.traceIDs(ctx)

	clear(w.buffer)
	w.buffer = w.buffer[:0]

	if w.bulkCommit {
		if err := w.Commit(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// flushSavepoint scopes a flush that needs more than one statement.
const flushSavepoint = "leapmigrate_flush"

// insertChunks runs one INSERT per chunk. When the flush spans several
// statements and the dialect has savepoints, a failing chunk rolls back the
// chunks before it so no partial flush stays in the transaction.
func (w *BatchWriter) insertChunks(ctx context.Context) error {
	chunks := w.chunks()
	scoped := len(chunks) > 1 && w.conn.Dialect().SupportsSavepoints()
	if scoped {
		if _, err := w.conn.ExecContext(ctx, "SAVEPOINT "+flushSavepoint); err != nil {
			return &core.QueryError{Op: "insert into " + w.target, SQL: "SAVEPOINT " + flushSavepoint, Err: err}
		}
	}

	for _, chunk := range chunks {
		stmt, args := w.insertStatement(chunk)
		if _, err := w.conn.ExecContext(ctx, stmt, args...); err != nil {
			w.logger.Debug("error inserting rows", slog.String("table", w.target), slog.Any("error", err))
			if scoped {
				err = errors.Join(err, w.rollbackChunks(ctx))
			}
			return &core.QueryError{Op: "insert into " + w.target, SQL: stmt, Err: err}
		}
	}

	if scoped {
		if _, err := w.conn.ExecContext(ctx, "RELEASE SAVEPOINT "+flushSavepoint); err != nil {
			return &core.QueryError{Op: "insert into " + w.target, SQL: "RELEASE SAVEPOINT " + flushSavepoint, Err: err}
		}
	}
	return nil
}

func (w *BatchWriter) rollbackChunks(ctx context.Context) error {
	for _, stmt := range []string{"ROLLBACK TO SAVEPOINT ", "RELEASE SAVEPOINT "} {
		if _, err := w.conn.ExecContext(ctx, stmt+flushSavepoint); err != nil {
			return err
		}
	}
	return nil
}

// chunks splits the buffer so no statement exceeds the dialect's
// bind parameter limit.
func (w *BatchWriter) chunks() [][][]any {
	maxParams := w.conn.Dialect().MaxParams
	if maxParams <= 0 || len(w.columns) == 0 {
		return [][][]any{w.buffer}
	}
	perStmt := max(maxParams/len(w.columns), 1)

	var out [][][]any
	for start := 0; start < len(w.buffer); start += perStmt {
		end := min(start+perStmt, len(w.buffer))
		out = append(out, w.buffer[start:end])
	}
	return out
}

func (w *BatchWriter) insertStatement(rows [][]any) (string, []any) {
	d := w.conn.Dialect()
	args := make([]any, 0, len(rows)*len(w.columns))

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(w.target)
	sb.WriteString(" (")
	sb.WriteString(w.columnList)
	sb.WriteString(") VALUES ")

	n := 1
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.FormatPlaceholder(n))
			n++
			args = append(args, v)
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}

func (w *BatchWriter) traceIDs(ctx context.Context) {
	if w.idIndex < 0 || !w.logger.Enabled(ctx, core.LevelID) {
		return
	}
	for _, row := range w.buffer {
		w.logger.Log(ctx, core.LevelID, fmt.Sprintf("%s: %v", w.idPrefix, row[w.idIndex]))
	}
}

// Commit commits the connection's pending statements.
func (w *BatchWriter) Commit() error {
	if err := w.conn.Commit(); err != nil {
		w.logger.Error("error committing data", slog.String("table", w.target), slog.Any("error", err))
		return err
	}
	return nil
}

// Rollback discards the connection's pending statements.
func (w *BatchWriter) Rollback() error {
	if err := w.conn.Rollback(); err != nil {
		w.logger.Error("error rolling back data", slog.String("table", w.target), slog.Any("error", err))
		return err
	}
	return nil
}
