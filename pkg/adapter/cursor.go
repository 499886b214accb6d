package adapter

import (
	"context"
	"database/sql"
	"iter"
	"log/slog"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// DefaultBatchSize is the page size of a RowCursor.
const DefaultBatchSize = 1000

// RowCursor is a lazy, forward-only sequence of row mappings read from a
// table or an arbitrary query. It is not restartable.
//
// The result set stays open on the connection between pages. When another
// statement, a commit or a rollback runs on the same connection, the unread
// rows are buffered in memory first, so the cursor yields the rows its query
// produced at the time it was issued.
//
// Usage:
//
//	for cur.Next(ctx) {
//		row := cur.Row()
//	}
//	if err := cur.Err(); err != nil { ... }
type RowCursor struct {
	conn      *Connection
	logger    *slog.Logger
	query     string
	table     string
	batchSize int

	started bool
	done    bool
	rows    *sql.Rows
	columns []string
	page    []map[string]any
	spill   []map[string]any
	pos     int
	current map[string]any
	err     error
}

func newRowCursor(conn *Connection, query, table string, batchSize int, logger *slog.Logger) *RowCursor {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RowCursor{
		conn:      conn,
		logger:    logger,
		query:     query,
		table:     table,
		batchSize: batchSize,
	}
}

// SQL returns the statement the cursor issues, or "" when neither a query
// nor a table is configured.
func (c *RowCursor) SQL() string {
	if c.query != "" {
		return c.query
	}
	if c.table != "" {
		return "SELECT * FROM " + c.table
	}
	return ""
}

// Next advances to the next row. It returns false at the end of the
// sequence or on error; check Err afterwards.
func (c *RowCursor) Next(ctx context.Context) bool {
	if c.done || c.err != nil {
		return false
	}
	if !c.started {
		c.started = true
		if !c.start(ctx) {
			return false
		}
	}
	if c.pos >= len(c.page) {
		c.fetchPage()
		if c.err != nil {
			c.release()
			return false
		}
		if len(c.page) == 0 {
			c.done = true
			c.release()
			return false
		}
	}
	c.current = c.page[c.pos]
	c.pos++
	return true
}

func (c *RowCursor) start(ctx context.Context) bool {
	query := c.SQL()
	if query == "" {
		c.err = &core.ConfigError{Section: "reader", Message: "no query or table name provided"}
		return false
	}
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		c.err = &core.QueryError{Op: "read", SQL: query, Err: err}
		return false
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		c.err = &core.QueryError{Op: "read columns", SQL: query, Err: err}
		return false
	}
	c.rows = rows
	c.columns = columns
	c.conn.track(c)
	return true
}

// fetchPage reads up to batchSize rows into memory.
func (c *RowCursor) fetchPage() {
	c.page = c.page[:0]
	c.pos = 0
	if c.rows == nil {
		n := min(c.batchSize, len(c.spill))
		c.page = append(c.page, c.spill[:n]...)
		c.spill = c.spill[n:]
		return
	}
	for len(c.page) < c.batchSize && c.rows.Next() {
		row, err := c.scanRow()
		if err != nil {
			c.err = err
			return
		}
		c.page = append(c.page, row)
	}
	if err := c.rows.Err(); err != nil {
		c.err = &core.QueryError{Op: "read", SQL: c.SQL(), Err: err}
	}
}

func (c *RowCursor) scanRow() (map[string]any, error) {
	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, &core.QueryError{Op: "read row", SQL: c.SQL(), Err: err}
	}
	row := make(map[string]any, len(c.columns))
	for i, col := range c.columns {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
		} else {
			row[col] = values[i]
		}
	}
	return row, nil
}

// detach buffers every unread row and closes the result set, freeing the
// session for the next statement.
func (c *RowCursor) detach() {
	if c.rows == nil {
		return
	}
	for c.rows.Next() {
		row, err := c.scanRow()
		if err != nil {
			c.err = err
			break
		}
		c.spill = append(c.spill, row)
	}
	if err := c.rows.Err(); err != nil && c.err == nil {
		c.err = &core.QueryError{Op: "read", SQL: c.SQL(), Err: err}
	}
	c.logger.Debug("cursor detached from session", slog.Int("buffered", len(c.spill)))
	if err := c.release(); err != nil && c.err == nil {
		c.err = &core.QueryError{Op: "read", SQL: c.SQL(), Err: err}
	}
}

// Row returns the current row mapping.
func (c *RowCursor) Row() map[string]any {
	return c.current
}

// Columns returns the result column names once the query has been issued.
func (c *RowCursor) Columns() []string {
	return c.columns
}

// Err returns the error that stopped iteration, if any.
func (c *RowCursor) Err() error {
	return c.err
}

// Close abandons the cursor and releases the result handle. Safe to call
// more than once.
func (c *RowCursor) Close() error {
	c.done = true
	c.spill = nil
	return c.release()
}

func (c *RowCursor) release() error {
	if c.rows == nil {
		return nil
	}
	c.conn.untrack(c)
	err := c.rows.Close()
	c.rows = nil
	return err
}

// All returns an iterator over the remaining rows. The cursor is closed
// when iteration stops; a failure is yielded as the final element.
func (c *RowCursor) All(ctx context.Context) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		defer func() { _ = c.Close() }()
		for c.Next(ctx) {
			if !yield(c.Row(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}
