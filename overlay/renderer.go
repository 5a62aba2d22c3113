package overlay

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// ProcResolver returns the address of a graphics API procedure, or 0 if it
// is not available. It is only used while the renderer is built.
type ProcResolver func(name string) uintptr

// Renderer presents overlay draw data into the host's frame.
type Renderer interface {
	// Viewport returns the area of the host frame the overlay covers.
	Viewport() image.Rectangle

	// Draw composites the draw data over the host frame.
	Draw(*DrawData) error
}

// RendererFactory builds the Renderer on the host's render thread.
type RendererFactory func(resolve ProcResolver) (Renderer, error)

// ImageRenderer composites the overlay onto an in-memory framebuffer.
type ImageRenderer struct {
	mu  sync.Mutex
	dst *image.RGBA
}

// NewImageRenderer returns a Renderer drawing onto dst.
func NewImageRenderer(dst *image.RGBA) *ImageRenderer {
	return &ImageRenderer{dst: dst}
}

// Factory returns a RendererFactory that always yields r.
func (r *ImageRenderer) Factory() RendererFactory {
	return func(ProcResolver) (Renderer, error) {
		return r, nil
	}
}

func (r *ImageRenderer) Viewport() image.Rectangle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dst.Bounds()
}

func (r *ImageRenderer) Draw(dd *DrawData) error {
	if dd.Image == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	draw.Draw(r.dst, dd.Bounds, dd.Image, dd.Image.Bounds().Min, draw.Over)
	return nil
}

// SetTarget replaces the framebuffer, e.g. after the host resized.
func (r *ImageRenderer) SetTarget(dst *image.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dst = dst
}
