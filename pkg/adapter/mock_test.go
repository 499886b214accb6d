package adapter

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/leapstack-labs/leapmigrate/internal/testutil"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
	"github.com/stretchr/testify/require"
)

// testPostgres mirrors the Postgres dialect without importing the backend.
var testPostgres = dialect.NewDialect("testpostgres").
	DefaultSchema("public").
	PlaceholderStyle(dialect.PlaceholderDollar).
	MaxParams(65535).
	WithReservedWords("name", "default", "order", "type", "key").
	Truncate("TRUNCATE TABLE %s CASCADE").
	WithSequences().
	Build()

// mockBackend opens sqlmock connections registered under dsn.
type mockBackend struct {
	dsn     string
	dialect *dialect.Dialect
	dsnErr  error
}

func (b *mockBackend) Name() string       { return "mock" }
func (b *mockBackend) DriverName() string { return "sqlmock" }

func (b *mockBackend) DSN(core.Credential) (string, error) {
	return b.dsn, b.dsnErr
}

func (b *mockBackend) Dialect() *dialect.Dialect {
	if b.dialect == nil {
		return testPostgres
	}
	return b.dialect
}

// newMockBackend registers a fresh sqlmock DSN and returns a backend using it.
func newMockBackend(t *testing.T) (*mockBackend, sqlmock.Sqlmock) {
	t.Helper()
	dsn := "mock-" + uuid.NewString()
	_, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	return &mockBackend{dsn: dsn}, mock
}

// newOpenConnection returns an open connection on a fresh sqlmock.
func newOpenConnection(t *testing.T, cred core.Credential) (*Connection, sqlmock.Sqlmock, *mockBackend) {
	t.Helper()
	backend, mock := newMockBackend(t)
	conn := NewConnection(backend, cred, testutil.NewTestLogger(t))
	require.NoError(t, conn.Open(t.Context()))
	return conn, mock, backend
}

func testCredential(name string) core.Credential {
	return core.Credential{Name: name, Kind: "mock", Host: "localhost", Port: 5432, User: "app", Database: "sales"}
}
