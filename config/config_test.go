package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pboyd/framehook/overlay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "framehook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.Equal("opengl32.dll", cfg.Target.Module)
	assert.Equal("wglSwapBuffers", cfg.Target.Symbol)
	assert.True(cfg.Hook.Enabled)
	assert.False(cfg.Hook.UninstallOnDetach)
	assert.NoError(cfg.Validate())
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	path := writeConfig(t, t.TempDir(), `
log_level: debug
target:
  module: d3d9.dll
  symbol: Present
overlay:
  corner: bottom-right
  font_size: 18
hook:
  uninstall_on_detach: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal("debug", cfg.LogLevel)
	assert.Equal("d3d9.dll", cfg.Target.Module)
	assert.Equal("Present", cfg.Target.Symbol)
	assert.True(cfg.Hook.UninstallOnDetach)

	// Unset fields keep their defaults.
	assert.True(cfg.Overlay.Enabled)
	assert.Equal(DefaultConfig().Overlay.Width, cfg.Overlay.Width)

	panel, err := cfg.Overlay.Panel()
	require.NoError(t, err)
	assert.Equal(overlay.BottomRight, panel.Corner)
	assert.Equal(18.0, panel.FontSize)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "target: [")
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("values", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
log_level: loud
target:
  symbol: ""
overlay:
  width: 0
  corner: middle
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.ErrorContains(t, err, "validate config")
		assert.ErrorContains(t, err, "log_level")
		assert.ErrorContains(t, err, "target.symbol is required")
		assert.ErrorContains(t, err, "overlay.width")
		assert.ErrorContains(t, err, "overlay.corner")
	})

	t.Run("disabled overlay is not checked", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
overlay:
  enabled: false
  width: 0
`)
		_, err := Load(path)
		assert.NoError(t, err)
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("FRAMEHOOK_TARGET_MODULE", "graphics.dll")
	t.Setenv("FRAMEHOOK_TARGET_SYMBOL", "present")
	t.Setenv("FRAMEHOOK_HOOK_ENABLED", "no")
	t.Setenv("FRAMEHOOK_HOOK_UNINSTALL_ON_DETACH", "yes")
	t.Setenv("FRAMEHOOK_OVERLAY_WIDTH", "300")
	t.Setenv("FRAMEHOOK_OVERLAY_HEIGHT", "tall")
	t.Setenv("FRAMEHOOK_OVERLAY_FONT_SIZE", "11.5")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal("graphics.dll", cfg.Target.Module)
	assert.Equal("present", cfg.Target.Symbol)
	assert.False(cfg.Hook.Enabled)
	assert.True(cfg.Hook.UninstallOnDetach)
	assert.Equal(300, cfg.Overlay.Width)
	assert.Equal(DefaultConfig().Overlay.Height, cfg.Overlay.Height)
	assert.Equal(11.5, cfg.Overlay.FontSize)
}
