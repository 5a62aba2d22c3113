// Package inject wires the resolver, the detour engine and the overlay
// together when the module is loaded into a host process.
package inject

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pboyd/framehook"
	"github.com/pboyd/framehook/config"
	"github.com/pboyd/framehook/frame"
	"github.com/pboyd/framehook/overlay"
	"github.com/pboyd/framehook/symbol"
	"go.uber.org/zap"
)

// PresentFunc is the signature of the intercepted function.
type PresentFunc = frame.PresentFunc

// Reason is why the entry point was called. The values match the Windows
// DllMain reason codes.
type Reason uint32

const (
	ProcessDetach Reason = 0
	ProcessAttach Reason = 1
	ThreadAttach  Reason = 2
	ThreadDetach  Reason = 3
)

func (r Reason) String() string {
	switch r {
	case ProcessDetach:
		return "process detach"
	case ProcessAttach:
		return "process attach"
	case ThreadAttach:
		return "thread attach"
	case ThreadDetach:
		return "thread detach"
	default:
		return fmt.Sprintf("reason(%d)", uint32(r))
	}
}

// ErrInjectionFailed wraps whatever stopped Attach.
var ErrInjectionFailed = errors.New("injection failed")

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(i *Injector) {
		if l != nil {
			i.log = l
		}
	}
}

// WithResolver replaces symbol.Default.
func WithResolver(r symbol.Resolver) Option {
	return func(i *Injector) {
		i.resolver = r
	}
}

// WithRenderer sets how the overlay renderer is built and where it finds
// graphics procedures.
func WithRenderer(factory overlay.RendererFactory, procs overlay.ProcResolver) Option {
	return func(i *Injector) {
		i.factory = factory
		i.procs = procs
	}
}

// WithUI replaces the built-in stats panel.
func WithUI(ui overlay.UI) Option {
	return func(i *Injector) {
		i.ui = ui
	}
}

// WithConfigPath is the file the configuration was loaded from. It is
// watched for changes when the configuration enables watching.
func WithConfigPath(path string) Option {
	return func(i *Injector) {
		i.configPath = path
	}
}

var _ config.Switch = (*Injector)(nil)

// Injector attaches the overlay to the configured target function.
type Injector struct {
	cfg        *config.Config
	configPath string
	resolver   symbol.Resolver
	factory    overlay.RendererFactory
	procs      overlay.ProcResolver
	ui         overlay.UI
	log        *zap.Logger

	attachOnce sync.Once
	attachErr  error

	mu      sync.Mutex
	hook    *framehook.Hook[PresentFunc]
	state   *overlay.State
	orch    *frame.Orchestrator
	watcher *config.Watcher
}

// New returns an Injector for cfg. A nil cfg means config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) *Injector {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	i := &Injector{
		cfg:      cfg,
		resolver: symbol.Default,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Entry is called by the loader. Only ProcessAttach and ProcessDetach do
// anything; it returns false only when attaching failed.
func (i *Injector) Entry(reason Reason) bool {
	i.log.Debug("entry", zap.Stringer("reason", reason))

	switch reason {
	case ProcessAttach:
		return i.Attach() == nil
	case ProcessDetach:
		i.Detach()
	}
	return true
}

// Attach resolves the target, installs the hook and enables it. It runs
// once; later calls return the first result. On failure nothing is left
// installed.
func (i *Injector) Attach() error {
	i.attachOnce.Do(func() {
		i.attachErr = i.attach()
		if i.attachErr != nil {
			i.log.Error("attach failed", zap.Error(i.attachErr))
		}
	})
	return i.attachErr
}

func (i *Injector) attach() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			i.rollback()
			err = fmt.Errorf("%w: %w", ErrInjectionFailed, err)
		}
	}()

	i.mu.Lock()
	defer i.mu.Unlock()

	target, err := i.resolver.Resolve(i.cfg.Target.Module, i.cfg.Target.Symbol)
	if err != nil {
		return err
	}
	i.log.Info("target resolved",
		zap.String("module", target.Module),
		zap.String("symbol", target.Symbol),
		zap.String("address", fmt.Sprintf("%#x", target.Address)),
	)

	if i.cfg.Overlay.Enabled {
		i.state, err = i.newOverlay()
		if err != nil {
			return err
		}
	}
	i.orch = frame.New(i.state, frame.WithLogger(i.log.Named("frame")))

	var hook *framehook.Hook[PresentFunc]
	original := func() PresentFunc { return hook.Original() }
	hook, err = framehook.Install(target.Address, i.orch.Replacement(original), framehook.WithLogger(i.log.Named("hook")))
	if err != nil {
		return err
	}
	i.hook = hook

	if i.cfg.Hook.Enabled {
		if err := hook.Enable(); err != nil {
			return err
		}
	}

	if i.cfg.Watch && i.configPath != "" {
		i.startWatcher()
	}

	i.log.Info("attached", zap.Stringer("status", hook.Status()))
	return nil
}

func (i *Injector) newOverlay() (*overlay.State, error) {
	panel, err := i.cfg.Overlay.Panel()
	if err != nil {
		return nil, err
	}

	ui := i.ui
	if ui == nil {
		ui, err = overlay.NewStatsPanel(panel)
		if err != nil {
			return nil, err
		}
	}

	return overlay.New(panel, i.factory, i.procs, ui, overlay.WithLogger(i.log.Named("overlay"))), nil
}

// startWatcher is best effort: a failure is logged and attach goes on.
func (i *Injector) startWatcher() {
	enabled := i.hook.Status() == framehook.Enabled
	w, err := config.Watch(i.configPath, i, enabled, i.log.Named("config"))
	if err != nil {
		i.log.Warn("config watch failed", zap.Error(err))
		return
	}
	i.watcher = w
}

// SetEnabled enables or disables the redirect without uninstalling it.
func (i *Injector) SetEnabled(enabled bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.hook == nil {
		return errors.New("not attached")
	}

	switch st := i.hook.Status(); {
	case enabled && st != framehook.Enabled:
		return i.hook.Enable()
	case !enabled && st == framehook.Enabled:
		return i.hook.Disable()
	}
	return nil
}

// rollback undoes a partial attach.
func (i *Injector) rollback() {
	i.stopWatcher()

	i.mu.Lock()
	defer i.mu.Unlock()
	i.teardown()
}

// Detach runs when the module is unloaded. The hook stays installed unless
// the configuration asks for it to be removed, because the host may still
// be inside the replacement or the trampoline.
func (i *Injector) Detach() {
	i.stopWatcher()

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.cfg.Hook.UninstallOnDetach {
		i.log.Info("detached, hook left in place")
		return
	}

	i.teardown()
	i.log.Info("detached, hook removed")
}

// Close removes the hook and releases the overlay regardless of the
// configuration. Nothing may be calling the target while it runs.
func (i *Injector) Close() error {
	i.stopWatcher()

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.teardown()
}

func (i *Injector) teardown() error {
	var errs []error
	if i.hook != nil && i.hook.Status() != framehook.Uninstalled {
		errs = append(errs, i.hook.Uninstall())
	}
	if i.state != nil {
		errs = append(errs, i.state.Close())
	}
	return errors.Join(errs...)
}

// stopWatcher must be called without i.mu held, because a reload in
// progress takes it.
func (i *Injector) stopWatcher() {
	i.mu.Lock()
	w := i.watcher
	i.watcher = nil
	i.mu.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			i.log.Debug("close config watcher", zap.Error(err))
		}
	}
}

// Hook returns the installed hook, or nil before a successful attach.
func (i *Injector) Hook() *framehook.Hook[PresentFunc] {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hook
}

// Overlay returns the overlay state, or nil when the overlay is disabled.
func (i *Injector) Overlay() *overlay.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Frames returns the number of intercepted frames.
func (i *Injector) Frames() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.orch == nil {
		return 0
	}
	return i.orch.Frames()
}
