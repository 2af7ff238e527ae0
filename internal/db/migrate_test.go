package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	url, err := MigrationURL("postgres://u:p@localhost:5432/clinic?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@localhost:5432/clinic?sslmode=disable", url)

	url, err = MigrationURL("postgresql://localhost/clinic")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://localhost/clinic", url)

	_, err = MigrationURL("mysql://localhost/clinic")
	assert.Error(t, err)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
