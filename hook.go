package framehook

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pboyd/framehook/internal/abi"
	"github.com/pboyd/framehook/internal/gosym"
	"github.com/pboyd/framehook/internal/patch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu        sync.Mutex
	installed = map[uintptr]any{}
)

// Hook redirects calls from a target function to a replacement of type T.
type Hook[T any] struct {
	mu     sync.Mutex
	status atomic.Int32

	target  uintptr
	foreign bool
	log     *zap.Logger

	// Keep the replacement reachable; the stub or callback refers to it.
	replacement T
	entry       uintptr
	stub        *patch.Block

	trampoline *patch.Block
	original   T

	site *patch.Site
}

// Install prepares a redirect from the code at target to replacement. The
// target is not modified until Enable is called.
//
// If target is the entry of a Go function in this binary, its body is
// cloned so Original keeps working while the hook is enabled. Otherwise
// target is treated as foreign code, the instructions overwritten by the
// redirect are moved to a trampoline and T must satisfy the foreign
// calling convention.
//
// Install fails with ErrAlreadyInstalled if target already has a hook that
// has not been uninstalled, and with ErrInstallFailed for anything else.
func Install[T any](target uintptr, replacement T, opts ...Option) (*Hook[T], error) {
	o := newOptions(opts)

	if target == 0 {
		return nil, fmt.Errorf("%w: nil target", ErrInstallFailed)
	}
	if _, err := abi.FuncValue(replacement); err != nil {
		return nil, fmt.Errorf("%w: replacement: %w", ErrInstallFailed, err)
	}

	mu.Lock()
	defer mu.Unlock()

	if _, ok := installed[target]; ok {
		return nil, fmt.Errorf("%w at %#x", ErrAlreadyInstalled, target)
	}

	h := &Hook[T]{
		target:      target,
		replacement: replacement,
		log:         o.logger.With(zap.String("target", fmt.Sprintf("%#x", target))),
	}

	var err error
	if fn, ok := gosym.FuncAt(target); ok {
		h.log = h.log.With(zap.String("func", fn.Name))
		err = h.prepareGo(fn)
	} else {
		h.foreign = true
		err = h.prepareForeign()
	}
	if err != nil {
		h.release()
		return nil, fmt.Errorf("%w at %#x: %w", ErrInstallFailed, target, err)
	}

	installed[target] = h
	h.status.Store(int32(Installed))

	h.log.Info("hook installed", zap.Bool("foreign", h.foreign), zap.Int("patch_size", h.site.Size()))
	if ce := h.log.Check(zapcore.DebugLevel, "trampoline"); ce != nil {
		dis, _ := patch.Disassemble(h.trampoline.Code())
		ce.Write(zap.String("code", dis))
	}

	return h, nil
}

func (h *Hook[T]) prepareGo(fn gosym.Func) error {
	if _, err := abi.CheckFunc[T](); err != nil {
		return err
	}

	fv, err := abi.FuncValue(h.replacement)
	if err != nil {
		return err
	}
	h.stub, err = patch.ClosureStub(fv)
	if err != nil {
		return fmt.Errorf("replacement stub: %w", err)
	}
	h.entry = h.stub.Addr()

	h.trampoline, err = patch.CloneFunc(fn.Code)
	if err != nil {
		return fmt.Errorf("clone %s: %w", fn.Name, err)
	}
	h.original, err = abi.FuncOf[T](h.trampoline.Addr())
	if err != nil {
		return err
	}

	h.site, err = patch.NewSite(h.target, h.entry, len(fn.Code))
	return err
}

func (h *Hook[T]) prepareForeign() error {
	var err error
	h.entry, err = abi.ForeignCallback(h.replacement)
	if err != nil {
		return err
	}

	size := patch.JumpSize(h.target, h.entry)
	if size == 0 {
		return patch.ErrUnsupportedArch
	}

	var stolen int
	h.trampoline, stolen, err = patch.StealPrologue(h.target, size)
	if err != nil {
		return fmt.Errorf("trampoline: %w", err)
	}
	h.original, err = abi.ForeignFunc[T](h.trampoline.Addr())
	if err != nil {
		return err
	}

	h.site, err = patch.NewSite(h.target, h.entry, stolen)
	return err
}

// Enable redirects calls to the target. The hook must be Installed or
// Disabled.
func (h *Hook[T]) Enable() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.Status()
	if cur == Enabled || !allowedTransition(cur, Enabled) {
		return fmt.Errorf("%w: hook is %v", ErrEnableFailed, cur)
	}

	if err := h.site.Apply(); err != nil {
		return fmt.Errorf("%w: %w", ErrEnableFailed, err)
	}
	h.status.Store(int32(Enabled))

	h.log.Debug("hook enabled")
	return nil
}

// Disable restores the original entry so new calls reach the original
// code directly. Calls already redirected finish in the replacement.
func (h *Hook[T]) Disable() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.Status()
	if cur != Enabled {
		return fmt.Errorf("%w: hook is %v", ErrDisableFailed, cur)
	}

	if err := h.site.Revert(); err != nil {
		return fmt.Errorf("%w: %w", ErrDisableFailed, err)
	}
	h.status.Store(int32(Disabled))

	h.log.Debug("hook disabled")
	return nil
}

// Uninstall disables the hook if needed, releases the trampoline and lets
// the target be hooked again. Nothing may be running in the trampoline or
// the replacement stub when it is called, and Original must not be called
// afterwards.
func (h *Hook[T]) Uninstall() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.Status()
	if !allowedTransition(cur, Uninstalled) {
		return fmt.Errorf("%w at %#x", ErrUninstalled, h.target)
	}

	if cur == Enabled {
		if err := h.site.Revert(); err != nil {
			return fmt.Errorf("%w: %w", ErrDisableFailed, err)
		}
	}

	mu.Lock()
	delete(installed, h.target)
	mu.Unlock()

	h.status.Store(int32(Uninstalled))
	h.release()

	h.log.Info("hook uninstalled")
	return nil
}

func (h *Hook[T]) release() {
	h.stub.Free()
	h.trampoline.Free()
	h.stub = nil
	h.trampoline = nil
}

// Original returns a function that behaves like the target before it was
// hooked. It stays valid until Uninstall.
func (h *Hook[T]) Original() T {
	return h.original
}

// Status returns the current lifecycle state.
func (h *Hook[T]) Status() Status {
	return Status(h.status.Load())
}

// Target returns the hooked address.
func (h *Hook[T]) Target() uintptr {
	return h.target
}

// EntryOf returns the address of the first instruction of the Go function
// fn, suitable as an Install target. It returns 0 if fn is nil.
func EntryOf[T any](fn T) uintptr {
	return abi.Entry(fn)
}

// Redefine hooks the Go function fn with replacement and enables the hook.
//
// Note that if fn has been inlined this will silently fail for the inlined
// call sites. If possible, add a noinline directive to work-around this
// problem:
//
//	//go:noinline
//	func myfunc() {
//		...
//	}
func Redefine[T any](fn, replacement T, opts ...Option) (*Hook[T], error) {
	entry := abi.Entry(fn)
	if entry == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInstallFailed, abi.ErrNotFunc)
	}

	h, err := Install(entry, replacement, opts...)
	if err != nil {
		return nil, err
	}

	if err := h.Enable(); err != nil {
		return nil, errors.Join(err, h.Uninstall())
	}
	return h, nil
}

// Original returns a function with the same behavior as the original version
// of fn. If fn has not been hooked, fn itself is returned.
func Original[T any](fn T) T {
	mu.Lock()
	defer mu.Unlock()

	if h, ok := installed[abi.Entry(fn)].(*Hook[T]); ok {
		return h.original
	}
	return fn
}
