package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTableColumns(t *testing.T) {
	// Setup In-Memory DB
	cfg := Config{
		Driver: DriverSQLite,
		Name:   ":memory:",
	}
	db, err := Connect(cfg)
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE test_prefixes (id TEXT PRIMARY KEY, prefix TEXT, description TEXT)").Error
	require.NoError(t, err)

	columns, err := GetTableColumns(db, "test_prefixes")
	assert.NoError(t, err)
	assert.Len(t, columns, 3)

	colMap := make(map[string]string)
	for _, col := range columns {
		colMap[col.Field] = col.Type
	}

	assert.Equal(t, "text", colMap["id"])
	assert.Equal(t, "text", colMap["prefix"])
	assert.Equal(t, "text", colMap["description"])

	// PRAGMA table_info returns an empty result for a missing table
	cols, err := GetTableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, cols)
}

func TestRequireColumns(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE test_addresses (id TEXT, address TEXT)").Error)

	assert.NoError(t, RequireColumns(db, "test_addresses", "id", "ADDRESS"))

	err = RequireColumns(db, "test_addresses", "id", "status", "dns_name")
	assert.ErrorContains(t, err, "missing columns: dns_name, status")
}
