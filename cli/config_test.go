// ABOUTME: Tests for config CLI commands
// ABOUTME: Uses a temporary XDG config home
package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmbridge/sync"
)

func withConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := xdg.ConfigHome
	xdg.ConfigHome = dir
	t.Cleanup(func() { xdg.ConfigHome = orig })
	return dir
}

func TestConfigInitWritesOnce(t *testing.T) {
	dir := withConfigHome(t)
	opts := Options{DBPath: filepath.Join(dir, "crm.db")}

	require.NoError(t, ConfigInitCommand(opts, nil))
	_, err := os.Stat(filepath.Join(dir, "crmbridge", "sync.yaml"))
	require.NoError(t, err)

	assert.Error(t, ConfigInitCommand(opts, nil), "existing config is not overwritten")
	assert.NoError(t, ConfigInitCommand(opts, []string{"--force"}))

	cfg, err := sync.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, opts.DBPath, cfg.DBPath)
}

func TestShowConfigAppliesOverrides(t *testing.T) {
	dir := withConfigHome(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 25\nrun_timeout: 30s\n"), 0600))

	var out bytes.Buffer
	require.NoError(t, showConfig(Options{ConfigPath: path, DBPath: "/tmp/flag.db"}, &out))
	assert.Contains(t, out.String(), "batch_size: 25")
	assert.Contains(t, out.String(), "db_path: /tmp/flag.db")

	cfg, err := LoadConfig(Options{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RunTimeout)
}
