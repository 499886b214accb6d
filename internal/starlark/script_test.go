package starlark

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapmigrate/internal/testutil"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	_ "github.com/leapstack-labs/leapmigrate/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const copyScript = `
def exec(inputs, outputs):
    src = inputs[0]
    dst = outputs[0]
    src.create_connection()
    dst.create_connection()

    w = dst.writer(buffer_size = 2)
    copied = 0
    for row in src.reader():
        row["name"] = row["name"].upper()
        w.insert(row)
        copied += 1
    w.flush_buffer()
    w.commit()
    log.info("copied rows", table = w.table, rows = copied)
`

func writeScript(t *testing.T, dir, rule, body string) string {
	t.Helper()
	path := ScriptPath(dir, rule)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func sqliteCredential(t *testing.T, name string) core.Credential {
	t.Helper()
	return core.Credential{Name: name, Kind: "sqlite", Database: filepath.Join(t.TempDir(), name+".db")}
}

// seed runs statements on a pooled connection for cred and commits.
func seed(t *testing.T, pool *adapter.Pool, cred core.Credential, statements ...string) {
	t.Helper()
	ctx := context.Background()
	f, err := adapter.NewFacade(pool, cred, adapter.FacadeOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, f.CreateConnection(ctx, true))
	for _, stmt := range statements {
		require.NoError(t, f.ExecuteDDL(ctx, stmt))
	}
	require.NoError(t, f.Commit())
}

func readAll(t *testing.T, f adapter.Facade, query string) []map[string]any {
	t.Helper()
	r, err := f.Reader(adapter.WithQuery(query))
	require.NoError(t, err)
	var rows []map[string]any
	for row, err := range r.All(context.Background()) {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestScript_CopiesRows(t *testing.T) {
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)
	pool := adapter.NewPool(logger)
	t.Cleanup(func() { _ = pool.CloseAll() })

	src := sqliteCredential(t, "src")
	dst := sqliteCredential(t, "dst")
	seed(t, pool, src,
		`CREATE TABLE t1 (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO t1 VALUES (1, 'ada'), (2, 'grace'), (3, 'linus')`)
	seed(t, pool, dst, `CREATE TABLE t2 (id INTEGER PRIMARY KEY, name TEXT)`)

	in, err := adapter.NewFacade(pool, src, adapter.FacadeOptions{Query: "SELECT id, name FROM t1 ORDER BY id"}, logger)
	require.NoError(t, err)
	out, err := adapter.NewFacade(pool, dst, adapter.FacadeOptions{Table: core.NewTableStub("t2"), TableName: "t2"}, logger)
	require.NoError(t, err)

	path := writeScript(t, t.TempDir(), "copy_t1", copyScript)
	script, err := Load(ctx, "copy_t1", path, logger)
	require.NoError(t, err)
	assert.Equal(t, "copy_t1", script.Rule)

	require.NoError(t, script.Apply(ctx, []adapter.Facade{in}, []adapter.Facade{out}))

	check, err := adapter.NewFacade(pool, dst, adapter.FacadeOptions{}, logger)
	require.NoError(t, err)
	require.NoError(t, check.CreateConnection(ctx, false))
	defer func() { _ = check.CloseConnection() }()

	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "ADA"},
		{"id": int64(2), "name": "GRACE"},
		{"id": int64(3), "name": "LINUS"},
	}, readAll(t, check, "SELECT id, name FROM t2 ORDER BY id"))
}

func TestScript_FacadeSurface(t *testing.T) {
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)
	pool := adapter.NewPool(logger)
	t.Cleanup(func() { _ = pool.CloseAll() })

	cred := sqliteCredential(t, "local")
	seed(t, pool, cred,
		`CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT NOT NULL)`,
		`INSERT INTO items VALUES (4, 'a'), (9, 'b')`)

	f, err := adapter.NewFacade(pool, cred, adapter.FacadeOptions{TableName: "items"}, logger)
	require.NoError(t, err)

	path := writeScript(t, t.TempDir(), "inspect", `
def exec(inputs, outputs):
    f = outputs[0]
    if f.name != "local" or f.kind != "sqlite" or f.table != "items":
        fail("unexpected attrs: %s %s %s" % (f.name, f.kind, f.table))
    f.create_connection(reuse = True)
    if f.tables_names() != ["items"]:
        fail("tables: %s" % f.tables_names())
    m = f.metadata()
    cols = [c["name"] for c in m.columns()]
    if cols != ["id", "label"]:
        fail("columns: %s" % cols)
    if m.row_count() != 2 or m.max_id() != 9:
        fail("counts: %d %d" % (m.row_count(), m.max_id()))
    rows = f.reader(table = "items", batch_size = 1).fetchall()
    if len(rows) != 2 or rows[1]["label"] != "b":
        fail("rows: %s" % rows)
    w = f.writer()
    w.insert([10, "c"])
    if w.buffered() != 1:
        fail("buffered")
    w.rollback()
    m.truncate()
`)
	script, err := Load(ctx, "inspect", path, logger)
	require.NoError(t, err)
	require.NoError(t, script.Apply(ctx, nil, []adapter.Facade{f}))

	rows := readAll(t, f, "SELECT COUNT(*) AS n FROM items")
	assert.Equal(t, []map[string]any{{"n": int64(0)}}, rows)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(ctx, "ghost", ScriptPath(dir, "ghost"), nil)
		var nf *core.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "ghost", nf.Rule)
	})

	contract := []struct {
		name string
		body string
	}{
		{"no exec", "def run(inputs, outputs):\n    pass\n"},
		{"exec not callable", "exec = 1\n"},
	}
	for _, tt := range contract {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, dir, "bad", tt.body)
			_, err := Load(ctx, "bad", path, nil)
			var ce *core.ContractError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, EntryPoint, ce.Symbol)
			assert.Equal(t, path, ce.Path)
		})
	}

	t.Run("syntax error", func(t *testing.T) {
		path := writeScript(t, dir, "broken", "def exec(:\n")
		_, err := Load(ctx, "broken", path, nil)
		require.Error(t, err)
		var ce *core.ContractError
		assert.NotErrorAs(t, err, &ce)
	})
}

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pool := adapter.NewPool(nil)
	t.Cleanup(func() { _ = pool.CloseAll() })

	f, err := adapter.NewFacade(pool, sqliteCredential(t, "dst"), adapter.FacadeOptions{TableName: "t"}, nil)
	require.NoError(t, err)

	t.Run("facade error keeps its type", func(t *testing.T) {
		path := writeScript(t, dir, "early", "def exec(inputs, outputs):\n    outputs[0].writer()\n")
		script, err := Load(ctx, "early", path, nil)
		require.NoError(t, err)

		err = script.Apply(ctx, nil, []adapter.Facade{f})
		var se *core.StateError
		require.ErrorAs(t, err, &se)
		assert.ErrorIs(t, err, core.ErrConnectionNotCreated)
	})

	t.Run("fail aborts", func(t *testing.T) {
		path := writeScript(t, dir, "failing", "def exec(inputs, outputs):\n    fail(\"bad row\")\n")
		script, err := Load(ctx, "failing", path, nil)
		require.NoError(t, err)
		assert.ErrorContains(t, script.Apply(ctx, nil, nil), "bad row")
	})

	t.Run("cursor error surfaces after exec", func(t *testing.T) {
		path := writeScript(t, dir, "reads", `
def exec(inputs, outputs):
    src = inputs[0]
    src.create_connection()
    for row in src.reader(query = "SELECT * FROM missing_table"):
        pass
`)
		script, err := Load(ctx, "reads", path, nil)
		require.NoError(t, err)

		err = script.Apply(ctx, []adapter.Facade{f}, nil)
		var qe *core.QueryError
		require.ErrorAs(t, err, &qe)
	})
}

func TestListScripts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_rule.star", "a_rule.star", "notes.txt", "copy-users.star", "2024_backfill.star"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	names, err := ListScripts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024_backfill", "a_rule", "b_rule", "copy-users"}, names)

	names, err = ListScripts(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestValidateRuleName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"_copy_users2", false},
		{"copy-users", false},
		{"2fast", false},
		{"users.v2", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../etc", true},
		{"nested/rule", true},
		{`nested\rule`, true},
		{"nul\x00byte", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
