package adapter

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapmigrate/internal/testutil"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columnsHeader = []string{"column_name", "data_type", "is_nullable", "column_default"}

func newTestFacade(t *testing.T, opts FacadeOptions) (*SQLFacade, sqlmock.Sqlmock, *Pool) {
	t.Helper()
	backend, mock := newMockBackend(t)
	pool := NewPool(nil)
	f := NewSQLFacade(pool, backend, testCredential("dst"), opts, testutil.NewTestLogger(t))
	return f, mock, pool
}

func TestSQLFacade_Defaults(t *testing.T) {
	f, _, _ := newTestFacade(t, FacadeOptions{Table: core.NewTableStub("users")})

	opts := f.Options()
	assert.Equal(t, DefaultBufferSize, opts.BufferSize)
	assert.Equal(t, DefaultBatchSize, opts.BatchSize)
	assert.Equal(t, DefaultIDColumn, opts.IDColumn)
	assert.False(t, opts.BulkCommit)
	assert.Equal(t, "users", opts.TableName)
	assert.Nil(t, f.Connection())
}

func TestSQLFacade_RequiresConnection(t *testing.T) {
	f, _, _ := newTestFacade(t, FacadeOptions{TableName: "users"})

	_, err := f.Writer(t.Context())
	assert.ErrorIs(t, err, core.ErrConnectionNotCreated)

	_, err = f.Reader()
	assert.ErrorIs(t, err, core.ErrConnectionNotCreated)

	_, err = f.Metadata("")
	assert.ErrorIs(t, err, core.ErrConnectionNotCreated)

	assert.ErrorIs(t, f.ExecuteDDL(t.Context(), "DROP TABLE users"), core.ErrConnectionNotCreated)

	_, err = f.TableNames(t.Context())
	assert.ErrorIs(t, err, core.ErrConnectionNotCreated)

	var stateErr *core.StateError
	require.ErrorAs(t, f.Commit(), &stateErr)
	assert.Equal(t, "commit", stateErr.Op)

	assert.NoError(t, f.CloseConnection(), "closing an unopened facade is a no-op")
}

func TestSQLFacade_WriterResolvesColumns(t *testing.T) {
	stub := core.NewTableStub("users")
	f, mock, _ := newTestFacade(t, FacadeOptions{Table: stub, BufferSize: 10})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("id", "integer", "NO", nil).
			AddRow("email", "text", "YES", nil))

	w, err := f.Writer(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, w.Columns())
	assert.Equal(t, []string{"id", "email"}, w.Table().ColumnNames())
	assert.Empty(t, stub.Columns, "resolved columns stay off the facade's stub")
	assert.NotSame(t, stub, w.Table())
	assert.Empty(t, f.Options().Table.Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFacade_RepeatedWritersResolveIndependently(t *testing.T) {
	caller := core.NewTableStub("orders")
	f, mock, _ := newTestFacade(t, FacadeOptions{Table: core.NewTableStub("users"), BufferSize: 10})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows(columnsHeader).AddRow("id", "integer", "NO", nil))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows(columnsHeader).
			AddRow("id", "integer", "NO", nil).
			AddRow("email", "text", "YES", nil))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows(columnsHeader).AddRow("order_id", "integer", "NO", nil))

	first, err := f.Writer(t.Context())
	require.NoError(t, err)
	second, err := f.Writer(t.Context())
	require.NoError(t, err)
	orders, err := f.Writer(t.Context(), WithSchema(caller))
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, first.Columns())
	assert.Equal(t, []string{"id", "email"}, second.Columns())
	assert.Equal(t, []string{"order_id"}, orders.Columns())
	assert.Empty(t, f.Options().Table.Columns)
	assert.Empty(t, caller.Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFacade_WriterSkipsMetadata(t *testing.T) {
	table := &core.TableSchema{Name: "users", Columns: []core.Column{{Name: "id"}}}
	f, mock, _ := newTestFacade(t, FacadeOptions{Table: table, SkipColumnsMetadata: true})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	w, err := f.Writer(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, w.Columns())
	assert.NoError(t, mock.ExpectationsWereMet(), "no catalog lookup expected")
}

func TestSQLFacade_WriterErrors(t *testing.T) {
	t.Run("no columns", func(t *testing.T) {
		f, mock, _ := newTestFacade(t, FacadeOptions{})
		require.NoError(t, f.CreateConnection(t.Context(), true))
		mock.ExpectBegin()
		mock.ExpectQuery("information_schema.columns").
			WillReturnRows(sqlmock.NewRows(columnsHeader))

		_, err := f.Writer(t.Context(), WithTable("ghost"))
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "no columns found for table ghost in database sales")
	})

	t.Run("no table", func(t *testing.T) {
		f, _, _ := newTestFacade(t, FacadeOptions{})
		require.NoError(t, f.CreateConnection(t.Context(), true))

		_, err := f.Writer(t.Context())
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "no table provided")
	})
}

func TestSQLFacade_ReaderOptions(t *testing.T) {
	f, _, _ := newTestFacade(t, FacadeOptions{TableName: "users", BatchSize: 50})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	r, err := f.Reader()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", r.SQL())
	assert.Equal(t, 50, r.batchSize)

	r, err = f.Reader(WithQuery("SELECT id FROM users"), WithBatchSize(5))
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users", r.SQL())
	assert.Equal(t, 5, r.batchSize)
}

func TestSQLFacade_ReaderQualifiesWithCredentialSchema(t *testing.T) {
	backend, _ := newMockBackend(t)
	cred := testCredential("src")
	cred.Schema = "crm"
	f := NewSQLFacade(NewPool(nil), backend, cred, FacadeOptions{}, nil)
	require.NoError(t, f.CreateConnection(t.Context(), true))

	r, err := f.Reader(WithTable("accounts"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM crm.accounts", r.SQL())
}

func TestSQLFacade_CloseConnection(t *testing.T) {
	t.Run("fresh connection is closed and released", func(t *testing.T) {
		f, mock, pool := newTestFacade(t, FacadeOptions{})
		require.NoError(t, f.CreateConnection(t.Context(), false))
		conn := f.Connection()
		require.Equal(t, 1, pool.Len())

		mock.ExpectClose()
		require.NoError(t, f.CloseConnection())
		assert.False(t, conn.IsOpen())
		assert.Equal(t, 0, pool.Len())
		assert.Nil(t, f.Connection())
	})

	t.Run("reused connection stays pooled", func(t *testing.T) {
		f, mock, pool := newTestFacade(t, FacadeOptions{})
		require.NoError(t, f.CreateConnection(t.Context(), true))

		require.NoError(t, f.CloseConnection())
		assert.True(t, f.Connection().IsOpen())
		assert.Equal(t, 1, pool.Len())

		mock.ExpectClose()
		require.NoError(t, pool.CloseAll())
	})
}

func TestSQLFacade_ExecuteDDL(t *testing.T) {
	f, mock, _ := newTestFacade(t, FacadeOptions{})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE t2 (id integer)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP").WillReturnError(assert.AnError)

	require.NoError(t, f.ExecuteDDL(t.Context(), "CREATE TABLE t2 (id integer)"))

	err := f.ExecuteDDL(t.Context(), "DROP TABLE missing")
	var qe *core.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "DROP TABLE missing", qe.SQL)
}

func TestSQLFacade_TableNames(t *testing.T) {
	f, mock, _ := newTestFacade(t, FacadeOptions{})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.tables").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("t1").AddRow("t2"))

	names, err := f.TableNames(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, names)
}

func TestSQLFacade_Metadata(t *testing.T) {
	f, _, _ := newTestFacade(t, FacadeOptions{TableName: "users"})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	m, err := f.Metadata("")
	require.NoError(t, err)
	assert.Equal(t, "users", m.Table())

	m, err = f.Metadata("crm.accounts")
	require.NoError(t, err)
	assert.Equal(t, "crm.accounts", m.QualifiedName())
}

func TestSQLFacade_CommitEndsTransaction(t *testing.T) {
	f, mock, _ := newTestFacade(t, FacadeOptions{})
	require.NoError(t, f.CreateConnection(t.Context(), true))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, f.ExecuteDDL(t.Context(), "INSERT INTO t1 VALUES (1)"))
	require.NoError(t, f.Commit())
	assert.False(t, f.Connection().InTransaction())
	assert.NoError(t, mock.ExpectationsWereMet())
}
