package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// DefaultBufferSize is the writer flush threshold.
const DefaultBufferSize = 1000

// Facade is the per-connection entry point a rule handler works with.
type Facade interface {
	// CreateConnection opens (or with reuse, attaches to) a pooled connection.
	CreateConnection(ctx context.Context, reuse bool) error

	// CloseConnection closes a connection this facade opened without reuse.
	// Reused connections are only released by the pool.
	CloseConnection() error

	// Writer returns a batch writer for the configured or given table.
	Writer(ctx context.Context, opts ...Option) (*BatchWriter, error)

	// Reader returns a row cursor over the configured or given query/table.
	Reader(opts ...Option) (*RowCursor, error)

	// Metadata returns the table manager for tableName ("" uses the configured table).
	Metadata(tableName string) (*TableManager, error)

	// ExecuteDDL runs a statement that returns no rows.
	ExecuteDDL(ctx context.Context, sql string) error

	// TableNames lists base tables of the credential's schema.
	TableNames(ctx context.Context) ([]string, error)

	// Commit commits pending statements on the connection.
	Commit() error

	// Credential returns the credential the facade is bound to.
	Credential() core.Credential
}

// FacadeOptions configures what a facade reads from or writes to.
type FacadeOptions struct {
	// Table is the destination schema; a stub carrying only the name is enough.
	Table *core.TableSchema
	// TableName is the default table for Reader and Metadata.
	TableName string
	// Query is the default reader statement.
	Query string

	BufferSize int
	BulkCommit bool
	BatchSize  int

	// SkipColumnsMetadata disables resolving writer columns from the catalog;
	// Table must then carry its columns.
	SkipColumnsMetadata bool

	// IDColumn is traced for every flushed row at the ID log level.
	IDColumn string
}

// Option overrides a FacadeOptions field for one Writer or Reader call.
type Option func(*FacadeOptions)

// WithTable selects the table by name.
func WithTable(name string) Option {
	return func(o *FacadeOptions) {
		o.TableName = name
		o.Table = nil
	}
}

// WithSchema selects the table by schema description.
func WithSchema(t *core.TableSchema) Option {
	return func(o *FacadeOptions) {
		o.Table = t
		if t != nil {
			o.TableName = t.Name
		}
	}
}

// WithQuery sets the reader statement.
func WithQuery(q string) Option {
	return func(o *FacadeOptions) { o.Query = q }
}

// WithBufferSize sets the writer flush threshold.
func WithBufferSize(n int) Option {
	return func(o *FacadeOptions) { o.BufferSize = n }
}

// WithBulkCommit commits after every flush.
func WithBulkCommit(b bool) Option {
	return func(o *FacadeOptions) { o.BulkCommit = b }
}

// WithBatchSize sets the reader page size.
func WithBatchSize(n int) Option {
	return func(o *FacadeOptions) { o.BatchSize = n }
}

// SQLFacade implements Facade over a relational Backend.
type SQLFacade struct {
	pool    *Pool
	backend Backend
	cred    core.Credential
	opts    FacadeOptions
	logger  *slog.Logger

	conn  *Connection
	key   string
	reuse bool
}

// NewSQLFacade creates a facade. No connection is opened until CreateConnection.
// If logger is nil, a discard logger is used.
func NewSQLFacade(pool *Pool, backend Backend, cred core.Credential, opts FacadeOptions, logger *slog.Logger) *SQLFacade {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.IDColumn == "" {
		opts.IDColumn = DefaultIDColumn
	}
	if opts.TableName == "" && opts.Table != nil {
		opts.TableName = opts.Table.Name
	}
	return &SQLFacade{
		pool:    pool,
		backend: backend,
		cred:    cred,
		opts:    opts,
		logger:  logger.With(slog.String("credential", cred.Name)),
	}
}

// Credential returns the credential the facade is bound to.
func (f *SQLFacade) Credential() core.Credential {
	return f.cred
}

// Options returns the facade defaults.
func (f *SQLFacade) Options() FacadeOptions {
	return f.opts
}

// Connection returns the underlying connection, or nil before CreateConnection.
func (f *SQLFacade) Connection() *Connection {
	return f.conn
}

// CreateConnection opens a session through the pool.
func (f *SQLFacade) CreateConnection(ctx context.Context, reuse bool) error {
	conn, key, err := f.pool.Acquire(ctx, f.backend, f.cred, reuse)
	if err != nil {
		f.logger.Error("error creating connection", slog.Any("error", err))
		return err
	}
	f.conn, f.key, f.reuse = conn, key, reuse
	return nil
}

// CloseConnection closes the session unless it was requested with reuse.
func (f *SQLFacade) CloseConnection() error {
	if f.conn == nil || f.reuse {
		return nil
	}
	err := f.pool.Release(f.key)
	f.conn = nil
	return err
}

func (f *SQLFacade) requireConnection(op string) error {
	if f.conn == nil || !f.conn.IsOpen() {
		return &core.StateError{Op: op, Err: core.ErrConnectionNotCreated}
	}
	return nil
}

func (f *SQLFacade) settings(opts []Option) FacadeOptions {
	s := f.opts
	for _, opt := range opts {
		opt(&s)
	}
	if s.BufferSize <= 0 {
		s.BufferSize = f.opts.BufferSize
	}
	if s.BatchSize <= 0 {
		s.BatchSize = f.opts.BatchSize
	}
	return s
}

// Writer returns a batch writer. Unless SkipColumnsMetadata is set, the
// destination columns are resolved from the catalog first.
func (f *SQLFacade) Writer(ctx context.Context, opts ...Option) (*BatchWriter, error) {
	if err := f.requireConnection("writer"); err != nil {
		return nil, err
	}
	s := f.settings(opts)

	var table *core.TableSchema
	switch {
	case s.Table != nil:
		// resolved columns go on a copy, never on the caller's schema
		t := *s.Table
		t.Columns = slices.Clone(s.Table.Columns)
		table = &t
	case s.TableName != "":
		table = core.NewTableStub(s.TableName)
	default:
		return nil, &core.ConfigError{Section: "writer", Message: "no table provided"}
	}

	if !s.SkipColumnsMetadata {
		columns, err := f.metadata(table.Name).Columns(ctx)
		if err != nil {
			return nil, err
		}
		table.Columns = columns
	}
	if len(table.Columns) == 0 {
		return nil, &core.ConfigError{
			Section: "writer",
			Message: fmt.Sprintf("no columns found for table %s in database %s", table.Name, f.conn.Database()),
		}
	}

	return newBatchWriter(f.conn, f.cred.Schema, table, s.BufferSize, s.BulkCommit, s.IDColumn, f.logger), nil
}

// Reader returns a row cursor. The statement is resolved on first advance.
func (f *SQLFacade) Reader(opts ...Option) (*RowCursor, error) {
	if err := f.requireConnection("reader"); err != nil {
		return nil, err
	}
	s := f.settings(opts)

	table := ""
	if s.TableName != "" {
		table = f.conn.Dialect().QualifiedName(f.cred.Schema, s.TableName)
	}
	return newRowCursor(f.conn, s.Query, table, s.BatchSize, f.logger), nil
}

// Metadata returns the table manager for tableName, or for the configured table.
func (f *SQLFacade) Metadata(tableName string) (*TableManager, error) {
	if err := f.requireConnection("metadata"); err != nil {
		return nil, err
	}
	if tableName == "" {
		tableName = f.opts.TableName
	}
	if tableName == "" {
		return nil, &core.ConfigError{Section: "metadata", Message: "no table provided"}
	}
	return f.metadata(tableName), nil
}

func (f *SQLFacade) metadata(tableName string) *TableManager {
	return newTableManager(f.conn, tableName, f.logger)
}

// ExecuteDDL runs a statement that returns no rows.
func (f *SQLFacade) ExecuteDDL(ctx context.Context, sql string) error {
	if err := f.requireConnection("execute DDL"); err != nil {
		return err
	}
	if _, err := f.conn.ExecContext(ctx, sql); err != nil {
		f.logger.Error("error executing DDL", slog.Any("error", err))
		return &core.QueryError{Op: "execute DDL", SQL: sql, Err: err}
	}
	return nil
}

// TableNames lists base tables of the credential's schema.
func (f *SQLFacade) TableNames(ctx context.Context) ([]string, error) {
	if err := f.requireConnection("tables names"); err != nil {
		return nil, err
	}
	d := f.conn.Dialect()
	query, args := d.TablesQuery(catalogSchema(d, f.cred, f.cred.Schema))
	rows, err := f.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.QueryError{Op: "list tables", SQL: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &core.QueryError{Op: "list tables", SQL: query, Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.QueryError{Op: "list tables", SQL: query, Err: err}
	}
	return names, nil
}

// Commit commits pending statements on the connection.
func (f *SQLFacade) Commit() error {
	if err := f.requireConnection("commit"); err != nil {
		return err
	}
	return f.conn.Commit()
}
