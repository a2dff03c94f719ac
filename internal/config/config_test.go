package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"WORKBOX_SHELL", "WORKBOX_WORK_DIR", "WORKBOX_EXEC_TIMEOUT",
	"WORKBOX_LOG_LEVEL", "WORKBOX_LOG_DEVELOPMENT", "WORKBOX_METRICS_ADDR",
}

// isolate points HOME at a fresh directory and clears WORKBOX_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

func writeFile(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".workbox")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(Flags{})
	require.NoError(t, err)

	assert.Equal(t, home, cfg.WorkDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Shell)
	assert.Zero(t, cfg.ExecTimeout)
	assert.False(t, cfg.LogDevelopment)
}

func TestLoad_File(t *testing.T) {
	home := isolate(t)
	writeFile(t, home, `
shell: /bin/zsh
work_dir: /srv/work
exec_timeout: 45s
log_level: debug
log_development: true
metrics_addr: 127.0.0.1:9100
`)

	cfg, err := Load(Flags{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".workbox", "config.yaml"), FilePath())
	assert.Equal(t, "/bin/zsh", cfg.Shell)
	assert.Equal(t, "/srv/work", cfg.WorkDir)
	assert.Equal(t, 45*time.Second, cfg.ExecTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogDevelopment)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
}

func TestLoad_Precedence(t *testing.T) {
	home := isolate(t)
	writeFile(t, home, "shell: /bin/zsh\nexec_timeout: 45s\nlog_level: debug\n")
	t.Setenv("WORKBOX_SHELL", "/bin/bash")
	t.Setenv("WORKBOX_EXEC_TIMEOUT", "10s")

	cfg, err := Load(Flags{ExecTimeout: 2 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, "/bin/bash", cfg.Shell, "env overrides file")
	assert.Equal(t, 2*time.Second, cfg.ExecTimeout, "flag overrides env")
	assert.Equal(t, "debug", cfg.LogLevel, "file value survives")
}

func TestLoad_RelativeWorkDir(t *testing.T) {
	isolate(t)

	cfg, err := Load(Flags{WorkDir: "sub"})
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "sub"), cfg.WorkDir)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		home := isolate(t)
		writeFile(t, home, "shell: [unterminated\n")
		_, err := Load(Flags{})
		assert.Error(t, err)
	})

	t.Run("bad env duration", func(t *testing.T) {
		isolate(t)
		t.Setenv("WORKBOX_EXEC_TIMEOUT", "soon")
		_, err := Load(Flags{})
		assert.Error(t, err)
	})

	t.Run("negative timeout", func(t *testing.T) {
		isolate(t)
		t.Setenv("WORKBOX_EXEC_TIMEOUT", "-1s")
		_, err := Load(Flags{})
		assert.Error(t, err)
	})
}
