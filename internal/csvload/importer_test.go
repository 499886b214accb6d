package csvload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapmigrate/internal/config"
	"github.com/leapstack-labs/leapmigrate/internal/state"
	"github.com/leapstack-labs/leapmigrate/internal/testutil"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	_ "github.com/leapstack-labs/leapmigrate/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const peopleDDL = `CREATE TABLE people (id INTEGER, name TEXT, active BOOLEAN, score REAL, source TEXT)`

type importFixture struct {
	dir  string
	cred core.Credential
	pool *adapter.Pool
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	dir := t.TempDir()
	fx := &importFixture{
		dir:  dir,
		cred: core.Credential{Name: "target", Kind: "sqlite", Database: filepath.Join(dir, "target.db")},
		pool: adapter.NewPool(nil),
	}
	t.Cleanup(func() { _ = fx.pool.CloseAll() })
	fx.exec(t, peopleDDL)
	return fx
}

// exec runs statements on a private connection and commits.
func (fx *importFixture) exec(t *testing.T, statements ...string) {
	t.Helper()
	ctx := context.Background()
	f := fx.facade(t)
	require.NoError(t, f.CreateConnection(ctx, false))
	defer func() { _ = f.CloseConnection() }()
	for _, stmt := range statements {
		require.NoError(t, f.ExecuteDDL(ctx, stmt))
	}
	require.NoError(t, f.Commit())
}

func (fx *importFixture) rows(t *testing.T, query string) []map[string]any {
	t.Helper()
	ctx := context.Background()
	f := fx.facade(t)
	require.NoError(t, f.CreateConnection(ctx, false))
	defer func() { _ = f.CloseConnection() }()

	r, err := f.Reader(adapter.WithQuery(query))
	require.NoError(t, err)
	var out []map[string]any
	for row, err := range r.All(ctx) {
		require.NoError(t, err)
		out = append(out, row)
	}
	return out
}

func (fx *importFixture) facade(t *testing.T) adapter.Facade {
	t.Helper()
	f, err := adapter.NewFacade(fx.pool, fx.cred, adapter.FacadeOptions{}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return f
}

func (fx *importFixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(fx.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const peopleQuery = `SELECT id, name, CAST(active AS INTEGER) AS active, score, source FROM people ORDER BY id`

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	fx := newImportFixture(t)

	content, err := charmap.ISO8859_1.NewEncoder().String(
		"id;name;active;score;extra\n" +
			"1;'José; Sr.';1;9.5;x\n" +
			"2;'say \"hi\"';false;NA;y\n" +
			"3;plain;0;7;z\n")
	require.NoError(t, err)
	path := fx.writeFile(t, "people.csv", content)

	store, err := state.Open(ctx, state.MemoryPath, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	im := NewImporter(fx.facade(t), 2, false, testutil.NewTestLogger(t))
	im.Store = store

	results, err := im.Import(ctx, Specs([]config.CSVFileConfig{{
		Path:                 path,
		TargetTable:          "people",
		Encoding:             "latin-1",
		Delimiter:            ";",
		QuoteChar:            "'",
		ReplaceColumnsValues: map[string]any{"source": "csv"},
	}}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].Read)
	assert.Equal(t, int64(3), results[0].Queued)
	assert.Equal(t, "people", results[0].Table)
	assert.Equal(t, 0, fx.pool.Len(), "importer closes its connection")

	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "José; Sr.", "active": int64(1), "score": 9.5, "source": "csv"},
		{"id": int64(2), "name": `say "hi"`, "active": int64(0), "score": nil, "source": "csv"},
		{"id": int64(3), "name": "plain", "active": int64(0), "score": 7.0, "source": "csv"},
	}, fx.rows(t, peopleQuery))

	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, state.KindImport, history[0].Kind)
	assert.Equal(t, path, history[0].Name)
	assert.Equal(t, int64(3), history[0].RowsWritten)
}

func TestImporter_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no files", func(t *testing.T) {
		fx := newImportFixture(t)
		_, err := NewImporter(fx.facade(t), 10, false, nil).Import(ctx, nil)
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "csv_loader: no CSV files found", err.Error())
	})

	t.Run("unknown table", func(t *testing.T) {
		fx := newImportFixture(t)
		path := fx.writeFile(t, "ghost.csv", "id\n1\n")
		_, err := NewImporter(fx.facade(t), 10, false, nil).Import(ctx, []FileSpec{{Path: path, TargetTable: "ghost"}})
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "no columns found for table ghost in database "+fx.cred.Database)
		assert.Equal(t, 0, fx.pool.Len())
	})

	t.Run("column missing from header", func(t *testing.T) {
		fx := newImportFixture(t)
		path := fx.writeFile(t, "partial.csv", "id,name\n1,a\n")
		_, err := NewImporter(fx.facade(t), 10, false, nil).Import(ctx, []FileSpec{{Path: path, TargetTable: "people"}})
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "column active of table people not found")
	})

	t.Run("malformed row rolls back the file", func(t *testing.T) {
		fx := newImportFixture(t)
		path := fx.writeFile(t, "bad.csv", "id,name,active,score,source\n1,a,1,1,s\n2,b\n")
		_, err := NewImporter(fx.facade(t), 1, false, nil).Import(ctx, []FileSpec{{Path: path, TargetTable: "people"}})
		require.Error(t, err)
		assert.Empty(t, fx.rows(t, peopleQuery))
		assert.Equal(t, 0, fx.pool.Len())
	})

	t.Run("earlier files stay committed", func(t *testing.T) {
		fx := newImportFixture(t)
		good := fx.writeFile(t, "good.csv", "id,name,active,score,source\n1,a,1,1,s\n")
		missing := filepath.Join(fx.dir, "missing.csv")

		results, err := NewImporter(fx.facade(t), 10, false, nil).Import(ctx, []FileSpec{
			{Path: good, TargetTable: "people"},
			{Path: missing, TargetTable: "people"},
		})
		require.ErrorIs(t, err, os.ErrNotExist)
		assert.Len(t, results, 1)
		assert.Len(t, fx.rows(t, peopleQuery), 1)
	})
}
