package dialect

import (
	"testing"

	"github.com/leapstack-labs/leapmigrate/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLRegistered(t *testing.T) {
	d, ok := dialect.Get("MySQL")
	require.True(t, ok)
	assert.Same(t, MySQL, d)
}

func TestMySQLQuoting(t *testing.T) {
	assert.Equal(t, "email", MySQL.QuoteIdentifierIfNeeded("email"))
	assert.Equal(t, "`order`", MySQL.QuoteIdentifierIfNeeded("order"))
	assert.Equal(t, "`odd``name`", MySQL.QuoteIdentifier("odd`name"))
	assert.Equal(t, "shop.`key`", MySQL.QualifiedName("shop", "key"))
	assert.Equal(t, "?", MySQL.FormatPlaceholder(7))
}

func TestMySQLCatalog(t *testing.T) {
	assert.Empty(t, MySQL.DefaultSchema, "catalog lookups fall back to the database name")
	assert.False(t, MySQL.SupportsSequences())
	assert.True(t, MySQL.SupportsSavepoints())
	assert.Equal(t, "TRUNCATE TABLE shop.users", MySQL.TruncateStatement("shop.users"))

	q, args := MySQL.ColumnsQuery("shop", "users")
	assert.Contains(t, q, "column_type")
	assert.Equal(t, []any{"shop", "users"}, args)
}
