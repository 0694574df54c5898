package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"historyvault/internal/compress"
	"historyvault/internal/domain/models"
	"historyvault/internal/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
scope: global
base_path: /tmp/vault-test
engine:
  max_parallelism: 4
  buffer_size: 65536
  default_timeframes: ["1m", "1h", "1M"]
compression:
  level: smallest
logging:
  level: debug
  format: console
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, storage.ScopeGlobal, c.ParsedScope())
	assert.Equal(t, "/tmp/vault-test", c.BasePath)
	assert.Equal(t, 4, c.Engine.MaxParallelism)
	assert.Equal(t, compress.SmallestSize, c.ParsedLevel())
	assert.Equal(t,
		[]models.Interval{models.Interval1m, models.Interval1h, models.Interval1M},
		c.ParsedTimeframes(),
	)
}

func TestLoadEmptyConfigUsesDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, storage.ScopeLocal, c.ParsedScope())
	assert.Equal(t, compress.Optimal, c.ParsedLevel())
	assert.Empty(t, c.ParsedTimeframes())
}

func TestLoadRejectsBadScope(t *testing.T) {
	path := writeConfig(t, "scope: remote\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadTimeframe(t *testing.T) {
	path := writeConfig(t, "engine:\n  default_timeframes: [\"1q\"]\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, "compression:\n  level: turbo\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "scope: local\n")

	t.Setenv("HISTORYVAULT_SCOPE", "global")
	t.Setenv("HISTORYVAULT_BASE_PATH", "/elsewhere")
	t.Setenv("HISTORYVAULT_MAX_PARALLELISM", "8")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, storage.ScopeGlobal, c.ParsedScope())
	assert.Equal(t, "/elsewhere", c.BasePath)
	assert.Equal(t, 8, c.Engine.MaxParallelism)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
