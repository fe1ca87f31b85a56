package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/personae/internal/embedding"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDB, EnvAPIKey, EnvBaseURL, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	d, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
	assert.Equal(t, embedding.Cosine, cfg.Metric())
	assert.Equal(t, 1536, cfg.Database.Dimensions)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "personae.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/from-file.db
  metric: l2
worker:
  poll_interval: 2s
logging:
  level: debug
`), 0o644))
	t.Setenv(EnvDB, "/tmp/from-env.db")
	t.Setenv(EnvAPIKey, "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, embedding.L2, cfg.Metric())
	assert.Equal(t, "debug", cfg.Logging.Level)
	d, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	for name, body := range map[string]string{
		"metric":   "database:\n  metric: manhattan\n",
		"interval": "worker:\n  poll_interval: soon\n",
		"dims":     "database:\n  dimensions: -1\n",
		"yaml":     "database: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "personae.yaml")

	cfg := DefaultConfig()
	cfg.Database.Path = "/tmp/x.db"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PERSONAE_LOG_LEVEL=warn\n"), 0o644))
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "warn", os.Getenv(EnvLogLevel))
}
