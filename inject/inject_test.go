//go:build amd64

package inject

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pboyd/framehook"
	"github.com/pboyd/framehook/config"
	"github.com/pboyd/framehook/overlay"
	"github.com/pboyd/framehook/symbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var presented int

//go:noinline
func present(surface uintptr) uintptr {
	presented++
	return surface + 1
}

// graphics stands in for a graphics driver exporting present.
var graphics = symbol.ResolverFunc(func(module, sym string) (symbol.Target, error) {
	if module != "graphics.dll" {
		return symbol.Target{}, &symbol.ResolutionError{Kind: symbol.ModuleNotFound, Module: module, Symbol: sym}
	}
	if sym != "present" {
		return symbol.Target{}, &symbol.ResolutionError{Kind: symbol.SymbolNotFound, Module: module, Symbol: sym}
	}
	return symbol.Target{Module: module, Symbol: sym, Address: framehook.EntryOf(present)}, nil
})

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Target.Module = "graphics.dll"
	cfg.Target.Symbol = "present"
	return cfg
}

type countingUI struct {
	builds int
}

func (u *countingUI) Build(f *overlay.UIFrame) error {
	u.builds++
	f.Canvas.SetRGBA(0, 1, 0, 1)
	f.Canvas.DrawRectangle(0, 0, 4, 4)
	return f.Canvas.Fill()
}

func newInjector(t *testing.T, cfg *config.Config, opts ...Option) *Injector {
	t.Helper()
	presented = 0
	i := New(cfg, append([]Option{WithResolver(graphics)}, opts...)...)
	t.Cleanup(func() {
		assert.NoError(t, i.Close())
		if h := i.Hook(); h != nil {
			assert.Equal(t, framehook.Uninstalled, h.Status(), "hook left behind")
		}
	})
	return i
}

func TestEntry_Attach(t *testing.T) {
	assert := assert.New(t)

	fb := image.NewRGBA(image.Rect(0, 0, 32, 32))
	ui := &countingUI{}
	i := newInjector(t, testConfig(),
		WithRenderer(overlay.NewImageRenderer(fb).Factory(), nil),
		WithUI(ui),
	)

	require.True(t, i.Entry(ProcessAttach))
	assert.Equal(framehook.Enabled, i.Hook().Status())

	for n := uintptr(0); n < 5; n++ {
		assert.Equal(n+1, present(n))
	}

	assert.Equal(5, presented)
	assert.Equal(5, ui.builds)
	assert.Equal(uint64(5), i.Frames())
	assert.Equal(overlay.Ready, i.Overlay().Lifecycle())
	assert.Equal(uint8(255), fb.RGBAAt(1, 1).G)
}

func TestEntry_AttachTwice(t *testing.T) {
	i := newInjector(t, testConfig())

	require.True(t, i.Entry(ProcessAttach))
	h := i.Hook()

	require.True(t, i.Entry(ProcessAttach))
	assert.Same(t, h, i.Hook())

	present(0)
	assert.Equal(t, uint64(1), i.Frames())
}

func TestEntry_ResolveFails(t *testing.T) {
	cfg := testConfig()
	cfg.Target.Module = "missing.dll"
	i := newInjector(t, cfg)

	assert.False(t, i.Entry(ProcessAttach))
	assert.Nil(t, i.Hook())

	err := i.Attach()
	assert.ErrorIs(t, err, ErrInjectionFailed)
	assert.ErrorIs(t, err, symbol.ErrModuleNotFound)

	assert.Equal(t, uintptr(1), present(0))
	assert.Zero(t, i.Frames())
}

func TestEntry_OverlayInitFails(t *testing.T) {
	ui := &countingUI{}
	factoryCalls := 0
	factory := func(resolve overlay.ProcResolver) (overlay.Renderer, error) {
		factoryCalls++
		if resolve("glDrawPixels") == 0 {
			return nil, errors.New("glDrawPixels not found")
		}
		return nil, nil
	}
	procs := func(string) uintptr { return 0 }

	i := newInjector(t, testConfig(), WithRenderer(factory, procs), WithUI(ui))
	require.True(t, i.Entry(ProcessAttach))

	for n := 0; n < 10; n++ {
		assert.Equal(t, uintptr(8), present(7))
	}

	assert.Equal(t, 10, presented)
	assert.Equal(t, 1, factoryCalls)
	assert.Zero(t, ui.builds)
	assert.Equal(t, overlay.Failed, i.Overlay().Lifecycle())

	var rerr *overlay.RenderError
	require.ErrorAs(t, i.Overlay().Err(), &rerr)
	assert.Equal(t, overlay.ContextInitFailed, rerr.Op)
}

func TestEntry_InstallFails(t *testing.T) {
	other, err := framehook.Install(framehook.EntryOf(present), func(surface uintptr) uintptr { return 0 })
	require.NoError(t, err)
	defer other.Uninstall()

	i := newInjector(t, testConfig())
	assert.False(t, i.Entry(ProcessAttach))

	err = i.Attach()
	assert.ErrorIs(t, err, ErrInjectionFailed)
	assert.ErrorIs(t, err, framehook.ErrAlreadyInstalled)
	assert.Nil(t, i.Hook())
}

func TestEntry_HookDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Hook.Enabled = false
	i := newInjector(t, cfg)

	require.True(t, i.Entry(ProcessAttach))
	assert.Equal(t, framehook.Installed, i.Hook().Status())

	present(0)
	assert.Zero(t, i.Frames())

	require.NoError(t, i.SetEnabled(true))
	present(0)
	assert.Equal(t, uint64(1), i.Frames())

	require.NoError(t, i.SetEnabled(false))
	require.NoError(t, i.SetEnabled(false))
	present(0)
	assert.Equal(t, uint64(1), i.Frames())
	assert.Equal(t, 3, presented)
}

func TestEntry_WatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framehook.yaml")
	save := func(body string) {
		require.NoError(t, os.WriteFile(path+".tmp", []byte(body), 0o644))
		require.NoError(t, os.Rename(path+".tmp", path))
	}
	save("hook:\n  enabled: true\n")

	cfg := testConfig()
	cfg.Watch = true
	i := newInjector(t, cfg, WithConfigPath(path))
	require.True(t, i.Entry(ProcessAttach))
	require.Equal(t, framehook.Enabled, i.Hook().Status())

	save("hook:\n  enabled: false\n")
	require.Eventually(t, func() bool {
		return i.Hook().Status() == framehook.Disabled
	}, 5*time.Second, 10*time.Millisecond)

	present(0)
	assert.Zero(t, i.Frames())
	assert.Equal(t, 1, presented)

	save("hook:\n  enabled: true\n")
	require.Eventually(t, func() bool {
		return i.Hook().Status() == framehook.Enabled
	}, 5*time.Second, 10*time.Millisecond)

	present(0)
	assert.Equal(t, uint64(1), i.Frames())
	assert.Equal(t, 2, presented)
}

func TestEntry_Detach(t *testing.T) {
	t.Run("keeps hook", func(t *testing.T) {
		i := newInjector(t, testConfig())
		require.True(t, i.Entry(ProcessAttach))

		assert.True(t, i.Entry(ProcessDetach))
		assert.Equal(t, framehook.Enabled, i.Hook().Status())
		present(0)
		assert.Equal(t, uint64(1), i.Frames())
	})

	t.Run("uninstalls hook", func(t *testing.T) {
		cfg := testConfig()
		cfg.Hook.UninstallOnDetach = true
		i := newInjector(t, cfg)
		require.True(t, i.Entry(ProcessAttach))

		assert.True(t, i.Entry(ProcessDetach))
		assert.Equal(t, framehook.Uninstalled, i.Hook().Status())
		present(0)
		assert.Zero(t, i.Frames())
	})
}

func TestEntry_ThreadReasons(t *testing.T) {
	i := newInjector(t, testConfig())

	assert.True(t, i.Entry(ThreadAttach))
	assert.True(t, i.Entry(ThreadDetach))
	assert.True(t, i.Entry(Reason(42)))
	assert.Nil(t, i.Hook())
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "process attach", ProcessAttach.String())
	assert.Equal(t, "reason(9)", Reason(9).String())
}
