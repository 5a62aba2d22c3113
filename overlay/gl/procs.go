// Package gl presents the overlay into the host's current OpenGL context.
package gl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pboyd/framehook/overlay"
)

const (
	glBlend            = 0x0BE2
	glBlendDst         = 0x0BE0
	glBlendSrc         = 0x0BE1
	glViewport         = 0x0BA2
	glRGBA             = 0x1908
	glUnsignedByte     = 0x1401
	glOne              = 1
	glOneMinusSrcAlpha = 0x0303
)

// procs are the GL entry points the presenter calls.
type procs struct {
	getIntegerv uintptr
	isEnabled   uintptr
	enable      uintptr
	disable     uintptr
	blendFunc   uintptr
	windowPos2i uintptr
	drawPixels  uintptr
}

// loadProcs resolves every entry point. A missing one is a
// ContextInitFailed error naming all that are missing.
func loadProcs(resolve overlay.ProcResolver) (*procs, error) {
	if resolve == nil {
		return nil, &overlay.RenderError{Op: overlay.ContextInitFailed, Err: errors.New("no procedure resolver")}
	}

	p := &procs{}
	entries := []struct {
		name string
		addr *uintptr
	}{
		{"glGetIntegerv", &p.getIntegerv},
		{"glIsEnabled", &p.isEnabled},
		{"glEnable", &p.enable},
		{"glDisable", &p.disable},
		{"glBlendFunc", &p.blendFunc},
		{"glWindowPos2i", &p.windowPos2i},
		{"glDrawPixels", &p.drawPixels},
	}

	var missing []string
	for _, e := range entries {
		*e.addr = resolve(e.name)
		if *e.addr == 0 {
			missing = append(missing, e.name)
		}
	}
	if len(missing) > 0 {
		return nil, &overlay.RenderError{
			Op:  overlay.ContextInitFailed,
			Err: fmt.Errorf("null procedure address for %s", strings.Join(missing, ", ")),
		}
	}
	return p, nil
}
