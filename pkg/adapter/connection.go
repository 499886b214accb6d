package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
)

// Connection owns one live backend session.
//
// Statements run inside an implicit transaction that is begun by the first
// statement and ended by Commit or Rollback, so writes are only durable once
// committed. A Connection is either open (handle present) or closed.
//
// A cursor keeps its result set open on the session only while nothing else
// runs on it. The next statement, Commit or Rollback first buffers the rest
// of every open result set in the cursor, so reading and writing can share
// one reused connection.
type Connection struct {
	backend Backend
	cred    core.Credential
	logger  *slog.Logger

	db      *sql.DB
	tx      *sql.Tx
	readers map[*RowCursor]struct{}
}

// NewConnection creates a closed connection for cred.
// If logger is nil, a discard logger is used.
func NewConnection(backend Backend, cred core.Credential, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connection{backend: backend, cred: cred, logger: logger}
}

// Open opens the session. Opening an already open connection replaces
// the handle and closes the old one. On failure the connection stays closed.
func (c *Connection) Open(ctx context.Context) error {
	dsn, err := c.backend.DSN(c.cred)
	if err != nil {
		return &core.ConnectionError{Credential: c.cred.Name, Op: "open", Err: err}
	}

	c.logger.Debug("opening connection",
		slog.String("credential", c.cred.Name),
		slog.String("backend", c.backend.Name()),
		slog.String("database", c.cred.Database))

	db, err := sql.Open(c.backend.DriverName(), dsn)
	if err != nil {
		return &core.ConnectionError{Credential: c.cred.Name, Op: "open", Err: err}
	}
	// one session per Connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &core.ConnectionError{Credential: c.cred.Name, Op: "open", Err: err}
	}

	if p, ok := c.backend.(SessionPreparer); ok {
		if err := p.PrepareSession(ctx, db, c.cred); err != nil {
			_ = db.Close()
			return &core.ConnectionError{Credential: c.cred.Name, Op: "open", Err: err}
		}
	}

	if c.db != nil {
		_ = c.Close()
	}
	c.db = db
	c.logger.Debug("connection created", slog.String("credential", c.cred.Name))
	return nil
}

// Close closes the session. Closing a closed connection is a no-op.
// An open transaction is rolled back first.
func (c *Connection) Close() error {
	if c.db == nil {
		return nil
	}

	var errs []error
	for r := range c.readers {
		if err := r.release(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		c.tx = nil
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	c.db = nil
	c.logger.Debug("connection closed", slog.String("credential", c.cred.Name))

	if err := errors.Join(errs...); err != nil {
		return &core.ConnectionError{Credential: c.cred.Name, Op: "close", Err: err}
	}
	return nil
}

// IsOpen reports whether the session handle is present.
func (c *Connection) IsOpen() bool {
	return c.db != nil
}

// Database returns the database name of the credential.
func (c *Connection) Database() string {
	return c.cred.Database
}

// Credential returns the credential the connection was built from.
func (c *Connection) Credential() core.Credential {
	return c.cred
}

// Dialect returns the backend dialect.
func (c *Connection) Dialect() *dialect.Dialect {
	return c.backend.Dialect()
}

// InTransaction reports whether uncommitted statements are pending.
func (c *Connection) InTransaction() bool {
	return c.tx != nil
}

func (c *Connection) session(ctx context.Context) (*sql.Tx, error) {
	if c.db == nil {
		return nil, &core.StateError{Op: "session", Err: core.ErrConnectionNotCreated}
	}
	c.detachReaders()
	if c.tx == nil {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		c.tx = tx
	}
	return c.tx, nil
}

// ExecContext runs a statement that returns no rows.
func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Log(ctx, core.LevelSQL, "exec", slog.String("sql", query), slog.Int("args", len(args)))
	return tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a statement that returns rows. The caller closes them.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Log(ctx, core.LevelSQL, "query", slog.String("sql", query), slog.Int("args", len(args)))
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	return tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a statement expected to return at most one row.
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	tx, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Log(ctx, core.LevelSQL, "query", slog.String("sql", query), slog.Int("args", len(args)))
	return tx.QueryRowContext(ctx, query, args...), nil
}

// Commit commits pending statements. Without pending statements it is a no-op.
func (c *Connection) Commit() error {
	if c.db == nil {
		return &core.StateError{Op: "commit", Err: core.ErrConnectionNotCreated}
	}
	if c.tx == nil {
		return nil
	}
	c.detachReaders()
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return &core.QueryError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback discards pending statements. Without pending statements it is a no-op.
func (c *Connection) Rollback() error {
	if c.db == nil {
		return &core.StateError{Op: "rollback", Err: core.ErrConnectionNotCreated}
	}
	if c.tx == nil {
		return nil
	}
	c.detachReaders()
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &core.QueryError{Op: "rollback", Err: err}
	}
	return nil
}

func (c *Connection) track(r *RowCursor) {
	if c.readers == nil {
		c.readers = make(map[*RowCursor]struct{})
	}
	c.readers[r] = struct{}{}
}

func (c *Connection) untrack(r *RowCursor) {
	delete(c.readers, r)
}

// detachReaders moves the unread rows of every open cursor into memory and
// closes their result sets.
func (c *Connection) detachReaders() {
	for r := range c.readers {
		r.detach()
	}
}
