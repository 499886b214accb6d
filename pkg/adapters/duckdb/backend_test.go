package duckdb

import (
	"testing"

	"github.com/leapstack-labs/leapmigrate/internal/testutil"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_DSN(t *testing.T) {
	b := New(nil)

	dsn, err := b.DSN(core.Credential{})
	require.NoError(t, err)
	assert.Equal(t, MemoryPath, dsn)

	dsn, err = b.DSN(core.Credential{Database: "/data/w.duckdb", Options: map[string]string{"threads": "2", "access_mode": "READ_ONLY"}})
	require.NoError(t, err)
	assert.Equal(t, "/data/w.duckdb?access_mode=READ_ONLY&threads=2", dsn)
}

func TestBackend_InMemoryRoundTrip(t *testing.T) {
	ctx := t.Context()
	pool := adapter.NewPool(nil)
	t.Cleanup(func() { _ = pool.CloseAll() })

	cred := core.Credential{
		Name:   "scratch",
		Kind:   "duckdb",
		Params: map[string]any{"settings": map[string]any{"memory_limit": "256MB"}},
	}
	f, err := adapter.NewFacade(pool, cred, adapter.FacadeOptions{}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, f.CreateConnection(ctx, true))

	require.NoError(t, f.ExecuteDDL(ctx, "CREATE TABLE events (id INTEGER, kind VARCHAR)"))
	require.NoError(t, f.Commit())

	w, err := f.Writer(ctx, adapter.WithTable("events"))
	require.NoError(t, err)
	_, err = w.Insert(ctx, core.PositionalRow{1, "click"})
	require.NoError(t, err)
	_, err = w.FlushBuffer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	r, err := f.Reader(adapter.WithTable("events"))
	require.NoError(t, err)
	require.True(t, r.Next(ctx))
	assert.Equal(t, map[string]any{"id": int32(1), "kind": "click"}, r.Row())
	assert.False(t, r.Next(ctx))
	require.NoError(t, r.Err())
}

func TestBackend_BadParamsFailOpen(t *testing.T) {
	pool := adapter.NewPool(nil)
	cred := core.Credential{Name: "bad", Kind: "duckdb", Params: map[string]any{"nope": true}}
	f, err := adapter.NewFacade(pool, cred, adapter.FacadeOptions{}, nil)
	require.NoError(t, err)

	err = f.CreateConnection(t.Context(), true)
	var connErr *core.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Zero(t, pool.Len())
}
