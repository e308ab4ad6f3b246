package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(data), 0644))
	return p
}

// --- Load / Save / Validate tests ---

func TestLoad_Valid(t *testing.T) {
	p := writeConfig(t, `version: 1
user: ayse
store:
  driver: sqlite
  path: plant.db
retry:
  max_attempts: 7
  initial_delay_ms: 20
production:
  batch_size: 50
  grinding_free_covers: [AK, BK]
log:
  level: debug
  format: json
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "ayse", cfg.User)
	assert.Equal(t, "plant.db", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Retry.InitialDelay())
	assert.Equal(t, 50, cfg.Production.BatchSize)
	assert.Equal(t, []string{"AK", "BK"}, cfg.Production.GrindingFreeCovers)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	p := writeConfig(t, "version: 1\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver":   "store:\n  driver: postgres\n",
		"sqlite no path":   "store:\n  driver: sqlite\n  path: \"\"\n",
		"redis no address": "store:\n  driver: redis\n",
		"few attempts":     "retry:\n  max_attempts: 1\n",
		"negative delay":   "retry:\n  initial_delay_ms: -5\n",
		"zero batch":       "production:\n  batch_size: 0\n",
		"bad level":        "log:\n  level: loud\n",
		"bad format":       "log:\n  format: xml\n",
		"not yaml":         "store: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, data))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOPFLOOR_USER", "mehmet")
	t.Setenv("SHOPFLOOR_STORE_DRIVER", "redis")
	t.Setenv("SHOPFLOOR_STORE_REDIS_ADDR", "localhost:6379")
	t.Setenv("SHOPFLOOR_RETRY_MAX_ATTEMPTS", "9")
	t.Setenv("SHOPFLOOR_PRODUCTION_GRINDING_FREE_COVERS", "AK,CK")

	cfg, err := Load(writeConfig(t, "version: 1\nuser: ayse\n"))
	require.NoError(t, err)
	assert.Equal(t, "mehmet", cfg.User)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 9, cfg.Retry.MaxAttempts)
	assert.Equal(t, []string{"AK", "CK"}, cfg.Production.GrindingFreeCovers)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("version: 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SHOPFLOOR_PRODUCTION_BATCH_SIZE=35\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SHOPFLOOR_PRODUCTION_BATCH_SIZE") })

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 35, cfg.Production.BatchSize)
}

func TestSave_And_Reload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.User = "ayse"
	cfg.Store.Driver = "memory"
	cfg.Production.GrindingFreeCovers = []string{"AK", "DK"}

	require.NoError(t, Save(p, cfg))

	loaded, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv/plant", ".shopfloor", "shop.db"), Path("/srv/plant", "shop.db"))
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("warn", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log, err = NewLogger("debug", "text")
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	_, err = NewLogger("chatty", "text")
	assert.Error(t, err)
}
