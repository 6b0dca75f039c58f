package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/odata_sdk_go/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	chdirForTest(t, t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.ModeAuto, cfg.Mode)
	assert.Equal(t, "odata", cfg.Dialect)
	assert.True(t, cfg.JSON)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	file := filepath.Join(dir, "odata.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
mode: http
url: http://file.example/odata
dialect: sdata
timeout: 5s
log:
  level: debug
`), 0o600))
	t.Setenv("ODATA_URL", "http://env.example/odata")
	t.Setenv("ODATA_PREVENT_CACHE", "true")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--username=admin"}))

	cfg, err := config.Load(file, fs)
	require.NoError(t, err)
	assert.Equal(t, config.ModeHTTP, cfg.Mode)
	assert.Equal(t, "http://env.example/odata", cfg.URL)
	assert.Equal(t, "sdata", cfg.Dialect)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.PreventCache)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ODATA_MODE=mock\nODATA_MOCK_SEED=seed.yaml\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ODATA_MODE")
		os.Unsetenv("ODATA_MOCK_SEED")
	})

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.ModeMock, cfg.Mode)
	assert.Equal(t, "seed.yaml", cfg.MockSeed)
}

func TestValidate(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("ODATA_MODE", "http")
	_, err := config.Load("", nil)
	assert.ErrorContains(t, err, "requires ODATA_URL")

	t.Setenv("ODATA_MODE", "ftp")
	_, err = config.Load("", nil)
	assert.ErrorContains(t, err, "unsupported mode")

	cfg := config.Default()
	cfg.Dialect = "atom"
	assert.ErrorContains(t, cfg.Validate(), "unsupported dialect")
}
