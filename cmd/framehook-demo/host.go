package main

import (
	"image"
	"math"
	"time"

	"github.com/gogpu/gg"
	"github.com/pboyd/framehook/overlay"
	"golang.org/x/image/draw"
)

// current is the host whose frame swapBuffers presents.
var current *host

// swapBuffers plays the driver's present call. It is what gets hooked.
//
//go:noinline
func swapBuffers(surface uintptr) uintptr {
	current.presented++
	return 1
}

// host simulates an application rendering into a framebuffer and
// presenting it once per frame.
type host struct {
	scene       *gg.Context
	framebuffer *image.RGBA
	renderer    *overlay.ImageRenderer
	presented   int
}

func newHost(width, height int) *host {
	fb := image.NewRGBA(image.Rect(0, 0, width, height))
	h := &host{
		scene:       gg.NewContext(width, height),
		framebuffer: fb,
		renderer:    overlay.NewImageRenderer(fb),
	}
	current = h
	return h
}

func (h *host) run(frames int, fps float64) {
	var interval time.Duration
	if fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}

	for i := 0; i < frames; i++ {
		start := time.Now()

		h.drawScene(i)
		swapBuffers(uintptr(i))

		if interval > 0 {
			time.Sleep(interval - time.Since(start))
		}
	}
}

func (h *host) drawScene(i int) {
	c := h.scene
	w, hh := float64(c.Width()), float64(c.Height())
	t := float64(i) / 30

	c.ClearWithColor(gg.Hex("#1d2433"))
	c.SetRGB(0.95, 0.55, 0.2)
	c.DrawCircle(w/2+math.Cos(t)*w/3, hh/2+math.Sin(t)*hh/3, hh/8)
	_ = c.Fill()

	draw.Draw(h.framebuffer, h.framebuffer.Bounds(), c.Image(), image.Point{}, draw.Src)
}
