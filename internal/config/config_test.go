package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loomline.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/var/lib/loomline"
log_level = "debug"

[save]
rate_per_sec = 2.5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/loomline", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2.5, cfg.Save.RatePerSec)

	// Unset fields fall back to defaults.
	assert.Equal(t, "default.db", cfg.GraphFile)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 20, cfg.Save.Burst)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
