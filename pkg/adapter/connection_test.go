package adapter

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_OpenFailures(t *testing.T) {
	tests := []struct {
		name    string
		backend *mockBackend
	}{
		{
			name:    "dsn error",
			backend: &mockBackend{dsnErr: errors.New("missing host")},
		},
		{
			name:    "unknown dsn",
			backend: &mockBackend{dsn: "never-registered"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewConnection(tt.backend, testCredential("src"), nil)

			err := conn.Open(t.Context())
			require.Error(t, err)

			var connErr *core.ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, "src", connErr.Credential)
			assert.Equal(t, "open", connErr.Op)
			assert.False(t, conn.IsOpen(), "failed open must leave the connection closed")
		})
	}
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn, mock, _ := newOpenConnection(t, testCredential("src"))
	mock.ExpectClose()

	assert.True(t, conn.IsOpen())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsOpen())

	// second close is a no-op
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_ImplicitTransaction(t *testing.T) {
	conn, mock, _ := newOpenConnection(t, testCredential("src"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM t")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM u")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.False(t, conn.InTransaction())
	_, err := conn.ExecContext(t.Context(), "DELETE FROM t")
	require.NoError(t, err)
	assert.True(t, conn.InTransaction())

	_, err = conn.ExecContext(t.Context(), "DELETE FROM u")
	require.NoError(t, err)

	require.NoError(t, conn.Commit())
	assert.False(t, conn.InTransaction())

	// nothing pending
	require.NoError(t, conn.Commit())
	require.NoError(t, conn.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_CloseRollsBackPendingWork(t *testing.T) {
	conn, mock, _ := newOpenConnection(t, testCredential("src"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()
	mock.ExpectClose()

	_, err := conn.ExecContext(t.Context(), "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_StatementsRequireOpenSession(t *testing.T) {
	conn := NewConnection(&mockBackend{}, testCredential("src"), nil)

	_, err := conn.ExecContext(t.Context(), "SELECT 1")
	assert.ErrorIs(t, err, core.ErrConnectionNotCreated)

	_, err = conn.QueryContext(t.Context(), "SELECT 1")
	assert.ErrorIs(t, err, core.ErrConnectionNotCreated)

	var stateErr *core.StateError
	assert.ErrorAs(t, conn.Commit(), &stateErr)
	assert.ErrorAs(t, conn.Rollback(), &stateErr)
}

func TestConnection_Accessors(t *testing.T) {
	cred := testCredential("src")
	conn := NewConnection(&mockBackend{}, cred, nil)

	assert.Equal(t, "sales", conn.Database())
	assert.Equal(t, cred, conn.Credential())
	assert.Equal(t, testPostgres, conn.Dialect())
}
