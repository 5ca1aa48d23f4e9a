package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvironment_Defaults(t *testing.T) {
	cfg, err := LoadEnvironment(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "portal-api", cfg.ServiceName)
	assert.Equal(t, BackendFile, cfg.StorageBackend)
	assert.Equal(t, 5*time.Second, cfg.StorageRetryCooldown)
	assert.Equal(t, 24*time.Hour, cfg.AuthTokenTTL)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoadEnvironment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		wantErr string
	}{
		{
			name:    "unknown backend",
			environ: map[string]string{"STORAGE_BACKEND": "mongo"},
			wantErr: "unknown STORAGE_BACKEND",
		},
		{
			name:    "postgres without dsn",
			environ: map[string]string{"STORAGE_BACKEND": "postgres"},
			wantErr: "DB_POSTGRESQL_WRITE_DSN",
		},
		{
			name:    "production without secret",
			environ: map[string]string{"ENVIRONMENT": "production"},
			wantErr: "SESSION_SECRET",
		},
		{
			name:    "bad time zone",
			environ: map[string]string{"APPOINTMENT_TIMEZONE": "Mars/Olympus"},
			wantErr: "APPOINTMENT_TIMEZONE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEnvironment(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvironment_YAMLOverlayPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yaml")
	content := []byte("HTTP_PORT: 9090\nSTORAGE_BACKEND: memory\nALLOWED_ORIGINS:\n  - https://a.example\n  - https://b.example\nLOG_LEVEL: warn\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadEnvironment(map[string]string{
		"CONFIG_FILE": path,
		"LOG_LEVEL":   "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel, "environment wins over the YAML file")
}

func TestLoadEnvironment_MissingYAML(t *testing.T) {
	_, err := LoadEnvironment(map[string]string{"CONFIG_FILE": filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}
