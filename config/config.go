// Package config loads the injector configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pboyd/framehook/overlay"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the full injector configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Target   TargetConfig  `yaml:"target"`
	Overlay  OverlayConfig `yaml:"overlay"`
	Hook     HookConfig    `yaml:"hook"`

	// Watch reloads the file on change and applies hook.enabled live.
	Watch bool `yaml:"watch"`
}

// TargetConfig names the function to intercept.
type TargetConfig struct {
	Module string `yaml:"module"`
	Symbol string `yaml:"symbol"`
}

// OverlayConfig configures the stats panel.
type OverlayConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	FontSize float64 `yaml:"font_size"`
	Corner   string  `yaml:"corner"`
}

// HookConfig controls the redirect.
type HookConfig struct {
	// Enabled is whether calls are redirected once the hook is installed.
	Enabled bool `yaml:"enabled"`

	// UninstallOnDetach removes the hook when the module is unloaded.
	UninstallOnDetach bool `yaml:"uninstall_on_detach"`
}

// Panel converts the overlay section to the panel configuration.
func (o OverlayConfig) Panel() (overlay.Config, error) {
	corner, err := overlay.ParseCorner(o.Corner)
	if err != nil {
		return overlay.Config{}, err
	}
	return overlay.Config{
		Width:    o.Width,
		Height:   o.Height,
		FontSize: o.FontSize,
		Corner:   corner,
	}, nil
}

// DefaultConfig returns a configuration targeting wglSwapBuffers.
func DefaultConfig() *Config {
	panel := overlay.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Target: TargetConfig{
			Module: "opengl32.dll",
			Symbol: "wglSwapBuffers",
		},
		Overlay: OverlayConfig{
			Enabled:  true,
			Width:    panel.Width,
			Height:   panel.Height,
			FontSize: panel.FontSize,
			Corner:   panel.Corner.String(),
		},
		Hook: HookConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML configuration file over the defaults, then applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides reads FRAMEHOOK_* environment variables and applies
// them to the config, overriding YAML values.
func (c *Config) ApplyEnvOverrides() {
	envOverrides := map[string]func(string){
		"FRAMEHOOK_LOG_LEVEL":      func(v string) { c.LogLevel = v },
		"FRAMEHOOK_TARGET_MODULE":  func(v string) { c.Target.Module = v },
		"FRAMEHOOK_TARGET_SYMBOL":  func(v string) { c.Target.Symbol = v },
		"FRAMEHOOK_OVERLAY_CORNER": func(v string) { c.Overlay.Corner = v },
	}

	boolOverrides := map[string]*bool{
		"FRAMEHOOK_OVERLAY_ENABLED":          &c.Overlay.Enabled,
		"FRAMEHOOK_HOOK_ENABLED":             &c.Hook.Enabled,
		"FRAMEHOOK_HOOK_UNINSTALL_ON_DETACH": &c.Hook.UninstallOnDetach,
		"FRAMEHOOK_WATCH":                    &c.Watch,
	}

	intOverrides := map[string]*int{
		"FRAMEHOOK_OVERLAY_WIDTH":  &c.Overlay.Width,
		"FRAMEHOOK_OVERLAY_HEIGHT": &c.Overlay.Height,
	}

	for envKey, setter := range envOverrides {
		if val := os.Getenv(envKey); val != "" {
			setter(val)
		}
	}

	for envKey, target := range boolOverrides {
		if val := os.Getenv(envKey); val != "" {
			*target = parseBool(val)
		}
	}

	for envKey, target := range intOverrides {
		if val := os.Getenv(envKey); val != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				*target = n
			}
		}
	}

	if val := os.Getenv("FRAMEHOOK_OVERLAY_FONT_SIZE"); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			c.Overlay.FontSize = f
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks the configuration for errors. All problems are reported.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if c.Target.Module == "" {
		errs = append(errs, errors.New("target.module is required"))
	}
	if c.Target.Symbol == "" {
		errs = append(errs, errors.New("target.symbol is required"))
	}

	if c.Overlay.Enabled {
		if c.Overlay.Width <= 0 || c.Overlay.Height <= 0 {
			errs = append(errs, errors.New("overlay.width and overlay.height must be positive"))
		}
		if c.Overlay.FontSize <= 0 {
			errs = append(errs, errors.New("overlay.font_size must be positive"))
		}
		if _, err := overlay.ParseCorner(c.Overlay.Corner); err != nil {
			errs = append(errs, fmt.Errorf("overlay.corner: %w", err))
		}
	}

	return errors.Join(errs...)
}
