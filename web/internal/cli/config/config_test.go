package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Empty(t, cfg.Profiles)
}

func TestLoad_WithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `current_profile: staging
profiles:
  staging:
    server_url: https://staging.example.com
    api_key: key-123
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	p := cfg.Resolve("")
	assert.Equal(t, "https://staging.example.com", p.ServerURL)
	assert.Equal(t, "key-123", p.APIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: ["), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveProfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SaveProfile("prod", "https://prod.example.com", "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", reloaded.CurrentProfile)
	assert.Equal(t, "secret", reloaded.Resolve("prod").APIKey)

	require.NoError(t, reloaded.RemoveProfile("prod"))
	assert.Empty(t, reloaded.CurrentProfile)
	assert.Error(t, reloaded.RemoveProfile("prod"))
}

func TestResolve_DefaultsAndEnvOverride(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultServerURL, cfg.Resolve("").ServerURL)

	t.Setenv("SHISEI_SERVER_URL", "http://env:3000")
	t.Setenv("SHISEI_API_KEY", "env-key")
	p := cfg.Resolve("missing")
	assert.Equal(t, "http://env:3000", p.ServerURL)
	assert.Equal(t, "env-key", p.APIKey)
}
