// Package framehook redirects calls to a function at runtime and keeps the
// original reachable through a trampoline.
//
// A hook goes through Install, Enable, Disable and Uninstall:
//
//	var hook *framehook.Hook[func(uintptr) uintptr]
//	hook, err := framehook.Install(addr, func(surface uintptr) uintptr {
//		drawOverlay()
//		return hook.Original()(surface)
//	})
//	if err != nil {
//		return err
//	}
//	err = hook.Enable()
//
// The target may be the entry of a Go function in this binary, in which
// case the replacement can be any func value of the same type (closures
// included), or foreign code such as an exported DLL function. Foreign
// targets need word-sized arguments and a single word-sized result and are
// only supported on Windows.
//
// Limitations:
//   - Only supports amd64
//   - Relies on internal Go APIs that can break at any time
//   - Silently fails to redirect inlined call sites
//   - Disable does not wait for calls that already passed the redirect
package framehook
