package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "local", cfg.Storage.DefaultProvider)
	assert.Equal(t, "/uploads", cfg.Storage.StaticMount)
	assert.Equal(t, time.Hour, cfg.Storage.PresignTTL)
	assert.Equal(t, 24*time.Hour, cfg.Uploads.SessionTTL)
	assert.Equal(t, int64(50*1024*1024), cfg.Media.MaxGenericBytes)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("uploads:\n  staging_dir: /tmp/stage\n  session_ttl: 30m\nstorage:\n  default_provider: s3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("SERVER_ADDRESS", ":9999")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/stage", cfg.Uploads.StagingDir)
	assert.Equal(t, 30*time.Minute, cfg.Uploads.SessionTTL)
	assert.Equal(t, "s3", cfg.Storage.DefaultProvider)
	assert.Equal(t, ":9999", cfg.Server.Address)
}
