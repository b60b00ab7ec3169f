// ABOUTME: Tests for sync configuration loading
// ABOUTME: Covers defaults, YAML parsing, environment overrides, and persistence
package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultRunTimeout, cfg.RunTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /srv/crm/crm.db
batch_size: 25
workers: 8
run_timeout: 45s
retry:
  max_retries: 5
  max_interval: 10s
`), 0600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/crm/crm.db", cfg.DBPath)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 45*time.Second, cfg.RunTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialInterval, "unset fields keep defaults")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 25\n"), 0600))

	t.Setenv("CRMBRIDGE_BATCH_SIZE", "10")
	t.Setenv("CRMBRIDGE_WORKERS", "2")
	t.Setenv("CRMBRIDGE_RUN_TIMEOUT", "1m30s")
	t.Setenv("CRMBRIDGE_MAX_RETRIES", "0")
	t.Setenv("CRMBRIDGE_DB_PATH", "/tmp/override.db")
	t.Setenv("CRMBRIDGE_PARTNER_HOST", "charm.example.org")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, 0, cfg.Retry.MaxRetries)
	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, "charm.example.org", cfg.PartnerHost)
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("CRMBRIDGE_RUN_TIMEOUT", "soon")
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "CRMBRIDGE_RUN_TIMEOUT")
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [oops\n"), 0600))
	_, err := LoadConfigFrom(path)
	assert.Error(t, err)
}

func TestSaveAndLoadConfig(t *testing.T) {
	origHome := xdg.ConfigHome
	xdg.ConfigHome = t.TempDir()
	defer func() { xdg.ConfigHome = origHome }()

	cfg := DefaultConfig()
	cfg.BatchSize = 50
	cfg.RunTimeout = 10 * time.Second
	require.NoError(t, SaveConfig(cfg))

	info, err := os.Stat(ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, loaded.BatchSize)
	assert.Equal(t, 10*time.Second, loaded.RunTimeout)
}

func TestRetryConfigPolicy(t *testing.T) {
	p := DefaultConfig().Retry.Policy()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 5*time.Second, p.MaxInterval)
}
