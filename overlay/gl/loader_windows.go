//go:build windows

package gl

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	opengl32          = windows.NewLazySystemDLL("opengl32.dll")
	wglGetProcAddress = opengl32.NewProc("wglGetProcAddress")
)

// ProcAddress resolves a GL function for the current context. Extension and
// post-1.1 functions come from wglGetProcAddress; core 1.1 functions are
// only exported by opengl32.dll. It returns 0 if neither has the function.
func ProcAddress(name string) uintptr {
	cname, err := windows.BytePtrFromString(name)
	if err != nil {
		return 0
	}

	if wglGetProcAddress.Find() == nil {
		addr, _, _ := wglGetProcAddress.Call(uintptr(unsafe.Pointer(cname)))
		// Some drivers return small integers instead of NULL on failure.
		switch addr {
		case 0, 1, 2, 3, ^uintptr(0):
		default:
			return addr
		}
	}

	proc := opengl32.NewProc(name)
	if proc.Find() != nil {
		return 0
	}
	return proc.Addr()
}
