package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Supervisor.MaxRestarts)
	assert.Equal(t, 30*time.Second, cfg.SupervisorInterval())
	assert.Equal(t, 60*time.Second, cfg.SupervisorCooldown())
	assert.Equal(t, 5*time.Minute, cfg.SupervisorProgressWindow())
	assert.Equal(t, 30, cfg.Notifications.DigestIntervalMinutes)
}

func TestLoadFromFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".warden")
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := `
log_level: debug
lock_db_path: /var/lib/warden/daemon.db
supervisor:
  interval_seconds: 10
  max_restarts: 3
  daemon_script: /opt/warden/run-daemon.sh
notifications:
  digest_interval_minutes: 15
  channels:
    ntfy:
      enabled: true
      topic: https://ntfy.sh/warden-alerts
    webhook:
      enabled: false
      url: https://example.com/hook
  overrides:
    budget:
      - webhook
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/warden/daemon.db", cfg.LockDBPath)
	assert.Equal(t, 10*time.Second, cfg.SupervisorInterval())
	assert.Equal(t, 3, cfg.Supervisor.MaxRestarts)
	assert.Equal(t, "/opt/warden/run-daemon.sh", cfg.Supervisor.DaemonScript)
	assert.Equal(t, 95.0, cfg.Supervisor.MemoryCriticalPercent, "unset keys keep defaults")

	require.Contains(t, cfg.Notifications.Channels, "ntfy")
	assert.True(t, cfg.Notifications.Channels["ntfy"].Enabled)
	assert.Equal(t, []string{"webhook"}, cfg.Notifications.Overrides["budget"])

	rc := cfg.RouterConfig(root)
	assert.Equal(t, 15*time.Minute, rc.DigestInterval)
	assert.Equal(t, root, rc.ProjectRoot)
}

func TestLoadMalformedFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".warden")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("supervisor: ["), 0644))

	_, err := Load(root)
	assert.Error(t, err)
}
