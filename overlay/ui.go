package overlay

import (
	"fmt"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Frame identifies one host frame.
type Frame struct {
	// Delta is the time since the previous frame in seconds.
	Delta float64
	Index uint64
}

// Stats are the timing figures kept across frames.
type Stats struct {
	Elapsed float64
	FPS     float64
	Frames  uint64
}

// UIFrame is passed to UI.Build once per frame. Canvas is cleared and sized
// to the renderer's viewport.
type UIFrame struct {
	Canvas *gg.Context
	Frame  Frame
	Stats  Stats
}

// UI builds the overlay's contents.
type UI interface {
	Build(*UIFrame) error
}

// UIFunc adapts a function to the UI interface.
type UIFunc func(*UIFrame) error

func (f UIFunc) Build(fr *UIFrame) error {
	return f(fr)
}

const panelMargin = 10

// StatsPanel shows frame timing in a corner of the frame.
type StatsPanel struct {
	cfg  Config
	face text.Face
}

// NewStatsPanel loads the built-in font and returns a panel sized by cfg.
func NewStatsPanel(cfg Config) (*StatsPanel, error) {
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	return &StatsPanel{cfg: cfg, face: source.Face(cfg.FontSize)}, nil
}

func (p *StatsPanel) Build(f *UIFrame) error {
	c := f.Canvas
	w, h := float64(p.cfg.Width), float64(p.cfg.Height)
	x, y := p.origin(float64(c.Width()), float64(c.Height()))

	c.SetRGBA(0.08, 0.08, 0.1, 0.8)
	c.DrawRoundedRectangle(x, y, w, h, 6)
	if err := c.Fill(); err != nil {
		return err
	}

	frameTime := time.Duration(f.Frame.Delta * float64(time.Second))
	lines := []string{
		"framehook",
		fmt.Sprintf("%.1f FPS", f.Stats.FPS),
		fmt.Sprintf("%.2f ms/frame", float64(frameTime.Microseconds())/1000),
		fmt.Sprintf("frame %d", f.Frame.Index),
	}

	c.SetFont(p.face)
	c.SetRGBA(1, 1, 1, 1)
	lineHeight := p.cfg.FontSize * 1.4
	for i, line := range lines {
		c.DrawString(line, x+8, y+8+p.cfg.FontSize+float64(i)*lineHeight)
	}
	return nil
}

func (p *StatsPanel) origin(cw, ch float64) (float64, float64) {
	w, h := float64(p.cfg.Width), float64(p.cfg.Height)
	switch p.cfg.Corner {
	case TopRight:
		return cw - w - panelMargin, panelMargin
	case BottomLeft:
		return panelMargin, ch - h - panelMargin
	case BottomRight:
		return cw - w - panelMargin, ch - h - panelMargin
	default:
		return panelMargin, panelMargin
	}
}
