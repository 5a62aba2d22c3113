package overlay

import "fmt"

// Corner selects where the stats panel is anchored.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

var cornerNames = map[string]Corner{
	"top-left":     TopLeft,
	"top-right":    TopRight,
	"bottom-left":  BottomLeft,
	"bottom-right": BottomRight,
}

// ParseCorner parses names like "top-left".
func ParseCorner(s string) (Corner, error) {
	c, ok := cornerNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown corner %q", s)
	}
	return c, nil
}

func (c Corner) String() string {
	for name, v := range cornerNames {
		if v == c {
			return name
		}
	}
	return "unknown"
}

// Config sizes the stats panel.
type Config struct {
	Width    int
	Height   int
	FontSize float64
	Corner   Corner
}

// DefaultConfig returns a small panel in the top left corner.
func DefaultConfig() Config {
	return Config{
		Width:    220,
		Height:   96,
		FontSize: 14,
		Corner:   TopLeft,
	}
}
