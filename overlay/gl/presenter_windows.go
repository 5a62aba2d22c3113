//go:build windows

package gl

import (
	"image"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/pboyd/framehook/overlay"
	"golang.org/x/image/draw"
)

// Presenter draws overlay frames with glDrawPixels into whatever GL context
// is current on the calling thread. It must only be used from the host's
// render thread.
type Presenter struct {
	gl  *procs
	buf []byte
}

// NewPresenter resolves the GL entry points it needs.
func NewPresenter(resolve overlay.ProcResolver) (*Presenter, error) {
	p, err := loadProcs(resolve)
	if err != nil {
		return nil, err
	}
	return &Presenter{gl: p}, nil
}

// Factory is an overlay.RendererFactory for Presenter.
func Factory(resolve overlay.ProcResolver) (overlay.Renderer, error) {
	return NewPresenter(resolve)
}

func (p *Presenter) Viewport() image.Rectangle {
	var vp [4]int32
	p.getIntegerv(glViewport, vp[:])
	return image.Rect(0, 0, int(vp[2]), int(vp[3]))
}

func (p *Presenter) Draw(dd *overlay.DrawData) error {
	src, ok := dd.Image.(*image.RGBA)
	if !ok {
		b := dd.Image.Bounds()
		src = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(src, src.Bounds(), dd.Image, b.Min, draw.Src)
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	pix := p.flip(src)

	var blendFunc [2]int32
	p.getIntegerv(glBlendSrc, blendFunc[0:1])
	p.getIntegerv(glBlendDst, blendFunc[1:2])
	blend, _, _ := syscall.SyscallN(p.gl.isEnabled, glBlend)

	syscall.SyscallN(p.gl.enable, glBlend)
	// Pixels are premultiplied.
	syscall.SyscallN(p.gl.blendFunc, glOne, glOneMinusSrcAlpha)
	syscall.SyscallN(p.gl.windowPos2i, uintptr(dd.Bounds.Min.X), 0)
	syscall.SyscallN(p.gl.drawPixels, uintptr(w), uintptr(h), glRGBA, glUnsignedByte, uintptr(unsafe.Pointer(&pix[0])))
	runtime.KeepAlive(pix)

	syscall.SyscallN(p.gl.blendFunc, uintptr(blendFunc[0]), uintptr(blendFunc[1]))
	if blend&0xff == 0 {
		syscall.SyscallN(p.gl.disable, glBlend)
	}
	return nil
}

func (p *Presenter) getIntegerv(pname uintptr, dst []int32) {
	syscall.SyscallN(p.gl.getIntegerv, pname, uintptr(unsafe.Pointer(&dst[0])))
}

// flip returns the rows of src bottom-up, which is the order glDrawPixels
// reads them in.
func (p *Presenter) flip(src *image.RGBA) []byte {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	rowLen := w * 4
	if cap(p.buf) < rowLen*h {
		p.buf = make([]byte, rowLen*h)
	}
	p.buf = p.buf[:rowLen*h]

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+rowLen]
		copy(p.buf[(h-1-y)*rowLen:], row)
	}
	return p.buf
}
