package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, AppDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppDir, name), []byte(body), 0o644))
	return dir
}

func TestReadTOML(t *testing.T) {
	dir := writeConfig(t, "config.toml", "log_level = \"debug\"\nremote_vulkan = false\napp_id = \"game\"\n")
	cfg := Default()
	require.NoError(t, cfg.ReadFile(filepath.Join(dir, AppDir, "config.toml")))
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.False(t, cfg.RemoteVulkan)
	assert.Equal(t, "game", cfg.AppID)
	assert.Equal(t, "libvulkan.so.1", cfg.VulkanLibrary)
}

func TestReadYAML(t *testing.T) {
	dir := writeConfig(t, "config.yaml", "vulkan_library: /opt/vk.so\nshow_systray: false\n")
	cfg := Default()
	require.NoError(t, cfg.ReadFile(filepath.Join(dir, AppDir, "config.yaml")))
	assert.Equal(t, "/opt/vk.so", cfg.VulkanLibrary)
	assert.False(t, cfg.ShowSystray)
}

func TestReadUnknownFormat(t *testing.T) {
	dir := writeConfig(t, "config.ini", "x=1")
	assert.Error(t, Default().ReadFile(filepath.Join(dir, AppDir, "config.ini")))
}

func TestLoadEnvOverride(t *testing.T) {
	dir := writeConfig(t, "config.toml", "app_id = \"fromfile\"\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("WINEWAYLAND_APP_ID", "fromenv")
	t.Setenv("WINEWAYLAND_LOG_LEVEL", "trace")
	xdg.Reload()
	defer xdg.Reload()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.AppID)
	assert.Equal(t, logrus.TraceLevel, cfg.Level())
}

func TestLevelFallback(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}
	assert.Equal(t, logrus.WarnLevel, cfg.Level())
}
