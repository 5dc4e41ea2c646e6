package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\ndefault_regions: [se, \" us \"]\nworkers: 0\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, []string{"SE", "US"}, cfg.DefaultRegions)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "@daily", cfg.RolloverCron)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, filepath.Join("/data", "holidays.db"), cfg.DatabasePath())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HOLIDAYS_LISTEN":          ":7000",
		"HOLIDAYS_DEFAULT_REGIONS": "de, us ,",
		"HOLIDAYS_MINIMUM_REGIONS": "2",
		"HOLIDAYS_LOG_LEVEL":       "debug",
	}
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, []string{"DE", "US"}, cfg.DefaultRegions)
	assert.Equal(t, 2, cfg.MinimumRegions)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/data", cfg.DataDir)

	env["HOLIDAYS_WORKERS"] = "many"
	assert.Error(t, DefaultConfig().ApplyEnv(func(k string) string { return env[k] }))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HOLIDAYS_TIMEZONE=Europe/Stockholm\n"), 0o600))
	t.Setenv("HOLIDAYS_TIMEZONE", "")
	os.Unsetenv("HOLIDAYS_TIMEZONE")

	require.NoError(t, LoadEnvFile(path))
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(os.Getenv))
	assert.Equal(t, "Europe/Stockholm", cfg.Timezone)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Stockholm", loc.String())
}

func TestLocation_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err := cfg.Location()
	assert.Error(t, err)

	cfg.Timezone = "Local"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
