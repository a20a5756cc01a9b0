package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldApplyMigration(t *testing.T) {
	tests := []struct {
		file, current, target string
		want                  bool
	}{
		{"0.3.1", "0.3.0", "0.3.1", true},
		{"0.3.1", "", "0.3.1", true},
		{"0.3.0", "0.3.0", "0.3.1", false},
		{"0.3.2", "0.3.0", "0.3.1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldApplyMigration(tt.file, tt.current, tt.target), "%+v", tt)
	}
}

func TestSchemaVersionOfMigrateScript(t *testing.T) {
	v, err := schemaVersionOfMigrateScript("migration/sqlite/0.3/01__add_index.sql")
	require.NoError(t, err)
	assert.Equal(t, "0.3.2", v)

	_, err = schemaVersionOfMigrateScript("migration/sqlite/0.3/index.sql")
	assert.Error(t, err)
}

func TestValidateMigrationFileName(t *testing.T) {
	assert.NoError(t, validateMigrationFileName("01__add_index.sql"))
	assert.Error(t, validateMigrationFileName("add_index.sql"))
	assert.Error(t, validateMigrationFileName("x__add_index.sql"))
}

func TestEmbeddedLatestSchemas(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres"} {
		bytes, err := migrationFS.ReadFile("migration/" + driver + "/" + LatestSchemaFileName)
		require.NoError(t, err, driver)
		assert.Contains(t, string(bytes), "CREATE TABLE event")
		assert.Contains(t, string(bytes), "CREATE TABLE system_setting")
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", placeholder("sqlite", 1))
	assert.Equal(t, "$2", placeholder("postgres", 2))
}
