package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapmigrate/internal/testutil"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	litedialect "github.com/leapstack-labs/leapmigrate/pkg/adapters/sqlite/dialect"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileCredential(t *testing.T, name string) core.Credential {
	t.Helper()
	return core.Credential{
		Name:     name,
		Kind:     "sqlite",
		Database: filepath.Join(t.TempDir(), name+".db"),
	}
}

func newFacade(t *testing.T, pool *adapter.Pool, cred core.Credential, opts adapter.FacadeOptions) adapter.Facade {
	t.Helper()
	f, err := adapter.NewFacade(pool, cred, opts, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return f
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db", buildDSN(core.Credential{Database: "/tmp/a.db"}))
	assert.Equal(t,
		"file:/tmp/a.db?_pragma=busy_timeout%285000%29&_pragma=journal_mode%28wal%29",
		buildDSN(core.Credential{Database: "/tmp/a.db", Options: map[string]string{
			"journal_mode": "wal",
			"busy_timeout": "5000",
		}}))

	_, err := New(nil).DSN(core.Credential{})
	require.Error(t, err)
}

func TestWriteThenRead(t *testing.T) {
	ctx := t.Context()
	pool := adapter.NewPool(testutil.NewTestLogger(t))
	t.Cleanup(func() { _ = pool.CloseAll() })

	f := newFacade(t, pool, fileCredential(t, "local"), adapter.FacadeOptions{BufferSize: 2})
	require.NoError(t, f.CreateConnection(ctx, true))

	require.NoError(t, f.ExecuteDDL(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, "name" TEXT NOT NULL, "order" INTEGER, note TEXT DEFAULT 'none')`))
	require.NoError(t, f.Commit())

	w, err := f.Writer(ctx, adapter.WithTable("items"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "order", "note"}, w.Columns())

	rows := []core.Row{
		core.PositionalRow{1, "desk", 3, "a"},
		core.NamedRow{"id": 2, "name": "lamp", "order": nil, "note": "b"},
		core.PositionalRow{3, "chair", 1, nil},
	}
	for _, r := range rows {
		_, err := w.Insert(ctx, r)
		require.NoError(t, err)
	}
	_, err = w.FlushBuffer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	r, err := f.Reader(adapter.WithQuery(`SELECT * FROM items ORDER BY id`), adapter.WithBatchSize(2))
	require.NoError(t, err)

	var got []map[string]any
	for row, err := range r.All(ctx) {
		require.NoError(t, err)
		got = append(got, row)
	}
	require.Len(t, got, 3)
	for _, row := range got {
		assert.Len(t, row, 4, "row keys equal the resolved columns")
	}
	assert.Equal(t, "lamp", got[1]["name"])
	assert.Nil(t, got[1]["order"])
	assert.Nil(t, got[2]["note"])
}

func TestMetadata(t *testing.T) {
	ctx := t.Context()
	pool := adapter.NewPool(nil)
	t.Cleanup(func() { _ = pool.CloseAll() })

	f := newFacade(t, pool, fileCredential(t, "meta"), adapter.FacadeOptions{TableName: "users"})
	require.NoError(t, f.CreateConnection(ctx, false))
	require.NoError(t, f.ExecuteDDL(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT DEFAULT 'x')"))
	require.NoError(t, f.ExecuteDDL(ctx, "INSERT INTO users (id, email) VALUES (4, 'a'), (9, 'b')"))
	require.NoError(t, f.Commit())

	m, err := f.Metadata("")
	require.NoError(t, err)

	schema, err := m.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, schema.ColumnNames())
	assert.Equal(t, int64(2), schema.RowCount)
	assert.False(t, schema.Columns[0].Nullable)
	assert.True(t, schema.Columns[1].Nullable)
	require.NotNil(t, schema.Columns[1].Default)
	assert.Equal(t, "'x'", *schema.Columns[1].Default)

	maxID, err := m.MaxID(ctx, "id")
	require.NoError(t, err)
	assert.EqualValues(t, 9, maxID)

	names, err := f.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)

	require.NoError(t, m.Truncate(ctx))
	count, err := m.RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, m.ResetSequence(ctx), dialect.ErrUnsupported)

	missing, err := f.Metadata("ghost")
	require.NoError(t, err)
	cols, err := missing.Columns(ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)

	require.NoError(t, f.CloseConnection())
	assert.Zero(t, pool.Len())
}

func TestPoolReuse(t *testing.T) {
	ctx := t.Context()
	pool := adapter.NewPool(nil)
	cred := fileCredential(t, "shared")

	a := newFacade(t, pool, cred, adapter.FacadeOptions{})
	b := newFacade(t, pool, cred, adapter.FacadeOptions{})
	fresh := newFacade(t, pool, cred, adapter.FacadeOptions{})
	require.NoError(t, a.CreateConnection(ctx, true))
	require.NoError(t, b.CreateConnection(ctx, true))
	require.NoError(t, fresh.CreateConnection(ctx, false))

	sa := a.(*adapter.SQLFacade)
	sb := b.(*adapter.SQLFacade)
	sf := fresh.(*adapter.SQLFacade)
	assert.Same(t, sa.Connection(), sb.Connection())
	assert.NotSame(t, sa.Connection(), sf.Connection())
	assert.Equal(t, 2, pool.Len())

	require.NoError(t, pool.CloseAll())
	assert.False(t, sa.Connection().IsOpen())
	assert.False(t, sf.Connection().IsOpen())
	assert.Zero(t, pool.Len())
}

func TestCopyOnReusedConnection(t *testing.T) {
	ctx := t.Context()
	pool := adapter.NewPool(testutil.NewTestLogger(t))
	t.Cleanup(func() { _ = pool.CloseAll() })
	cred := fileCredential(t, "shared")

	setup := newFacade(t, pool, cred, adapter.FacadeOptions{})
	require.NoError(t, setup.CreateConnection(ctx, true))
	require.NoError(t, setup.ExecuteDDL(ctx, "CREATE TABLE t1 (id INTEGER PRIMARY KEY, name TEXT)"))
	require.NoError(t, setup.ExecuteDDL(ctx, "CREATE TABLE t2 (id INTEGER PRIMARY KEY, name TEXT)"))
	require.NoError(t, setup.ExecuteDDL(ctx, `WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < 10)
INSERT INTO t1 (id, name) SELECT n, 'row' || n FROM seq`))
	require.NoError(t, setup.Commit())

	in := newFacade(t, pool, cred, adapter.FacadeOptions{TableName: "t1", BatchSize: 3})
	out := newFacade(t, pool, cred, adapter.FacadeOptions{TableName: "t2", BufferSize: 2, BulkCommit: true})
	require.NoError(t, in.CreateConnection(ctx, true))
	require.NoError(t, out.CreateConnection(ctx, true))
	require.Same(t, in.(*adapter.SQLFacade).Connection(), out.(*adapter.SQLFacade).Connection())

	r, err := in.Reader()
	require.NoError(t, err)
	w, err := out.Writer(ctx)
	require.NoError(t, err)

	read := 0
	for r.Next(ctx) {
		_, err := w.Insert(ctx, core.NamedRow(r.Row()))
		require.NoError(t, err)
		read++
	}
	require.NoError(t, r.Err(), "commits on the shared connection must not end the read")
	_, err = w.FlushBuffer(ctx)
	require.NoError(t, err)

	assert.Equal(t, 10, read)
	m, err := out.Metadata("t2")
	require.NoError(t, err)
	count, err := m.RowCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, count)
}

func TestSplitFlushFailureKeepsNoPartialRows(t *testing.T) {
	ctx := t.Context()
	saved := litedialect.SQLite.MaxParams
	litedialect.SQLite.MaxParams = 2
	t.Cleanup(func() { litedialect.SQLite.MaxParams = saved })

	pool := adapter.NewPool(nil)
	t.Cleanup(func() { _ = pool.CloseAll() })

	f := newFacade(t, pool, fileCredential(t, "split"), adapter.FacadeOptions{TableName: "t", BufferSize: 10})
	require.NoError(t, f.CreateConnection(ctx, false))
	require.NoError(t, f.ExecuteDDL(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"))
	require.NoError(t, f.Commit())

	w, err := f.Writer(ctx)
	require.NoError(t, err)

	// an earlier uncommitted flush must survive the failed one
	_, err = w.Insert(ctx, core.PositionalRow{10, "kept"})
	require.NoError(t, err)
	_, err = w.FlushBuffer(ctx)
	require.NoError(t, err)

	for _, row := range []core.PositionalRow{{1, "a"}, {2, "b"}, {2, "dup"}} {
		_, err := w.Insert(ctx, row)
		require.NoError(t, err)
	}
	flushed, err := w.FlushBuffer(ctx)
	require.Error(t, err)
	assert.False(t, flushed)
	assert.Equal(t, 3, w.Buffered())

	require.NoError(t, w.Commit())

	m, err := f.Metadata("")
	require.NoError(t, err)
	count, err := m.RowCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "only the earlier flush is committed")
}
