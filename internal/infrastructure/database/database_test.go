package database

import (
	"context"
	"io/fs"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/migrations"
)

func TestMaintenanceTarget(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		admin  string
		dbName string
		ok     bool
	}{
		{"key value dsn", "host=localhost user=portal dbname=portal", "", "", false},
		{"maintenance db", "postgres://portal@localhost:5432/postgres", "", "", false},
		{"no database", "postgres://portal@localhost:5432", "", "", false},
		{"portal db", "postgres://portal:pw@db:5432/portal?sslmode=disable", "postgres://portal:pw@db:5432/postgres?sslmode=disable", "portal", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin, dbName, ok := maintenanceTarget(tt.dsn)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.admin, admin)
			assert.Equal(t, tt.dbName, dbName)
		})
	}

	assert.NoError(t, ensureDatabase(context.Background(), "host=localhost user=portal dbname=portal"))
}

func TestWithApplicationName(t *testing.T) {
	assert.Equal(t, "postgres://db/portal?application_name=portal-api&sslmode=disable",
		withApplicationName("postgres://db/portal?sslmode=disable", "portal-api"))
	assert.Equal(t, "host=db dbname=portal application_name=portal-api",
		withApplicationName("host=db dbname=portal", "portal-api"))
	assert.Equal(t, "postgres://db/portal?application_name=custom",
		withApplicationName("postgres://db/portal?application_name=custom", "portal-api"))
	assert.Equal(t, "postgres://db/portal", withApplicationName("postgres://db/portal", ""))
}

func TestConnect_RequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestMigrations_ArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations.FS, "*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	body, err := fs.ReadFile(migrations.FS, "000001_init_schema.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "WHERE cancelled_at IS NULL")
}
