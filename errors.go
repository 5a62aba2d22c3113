package framehook

import "errors"

var (
	// ErrAlreadyInstalled is returned by Install when the target already
	// has a hook that has not been uninstalled.
	ErrAlreadyInstalled = errors.New("hook already installed")

	// ErrInstallFailed wraps any failure to prepare the redirect or the
	// trampoline.
	ErrInstallFailed = errors.New("hook install failed")

	// ErrEnableFailed is returned by Enable from a state other than
	// Installed or Disabled, or when the entry cannot be patched.
	ErrEnableFailed = errors.New("hook enable failed")

	// ErrDisableFailed is returned by Disable when the hook is not enabled
	// or the entry cannot be restored.
	ErrDisableFailed = errors.New("hook disable failed")

	// ErrUninstalled is returned by Uninstall on a hook that is already
	// uninstalled.
	ErrUninstalled = errors.New("hook is uninstalled")
)
