package visual

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGB color. It marshals as "#rrggbb".
type Color struct {
	R, G, B uint8
}

// Hex returns the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := colorful.Hex(string(text))
	if err != nil {
		return err
	}
	c.R, c.G, c.B = parsed.Clamped().RGB255()
	return nil
}

// Default gradient stops: green at silence, blue mid-range, red at peak.
const (
	LowColor  = "#2ecc71"
	MidColor  = "#3498db"
	HighColor = "#e74c3c"

	// Thresholds of the stepped palette.
	MediumThreshold = 0.3
	HighThreshold   = 0.6
)

type stop struct {
	pos   float64
	color colorful.Color
}

// Gradient maps an intensity in [0, 1] to a color.
type Gradient struct {
	stops   []stop
	stepped bool
}

// NewGradient builds a gradient of evenly spaced hex colors blended in Lab
// space. With stepped set, intensities snap to the low/medium/high colors
// at MediumThreshold and HighThreshold instead.
func NewGradient(stepped bool, hexColors ...string) (Gradient, error) {
	if len(hexColors) < 2 {
		return Gradient{}, fmt.Errorf("gradient needs at least 2 colors, got %d", len(hexColors))
	}
	g := Gradient{stepped: stepped}
	for i, h := range hexColors {
		c, err := colorful.Hex(h)
		if err != nil {
			return Gradient{}, fmt.Errorf("invalid color %q: %w", h, err)
		}
		g.stops = append(g.stops, stop{pos: float64(i) / float64(len(hexColors)-1), color: c})
	}
	return g, nil
}

// DefaultGradient is green -> blue -> red.
func DefaultGradient(stepped bool) Gradient {
	g, err := NewGradient(stepped, LowColor, MidColor, HighColor)
	if err != nil {
		panic(err)
	}
	return g
}

// At returns the color for intensity v. Values outside [0, 1] are clamped.
func (g Gradient) At(v float64) Color {
	v = max(0, min(1, v))
	if g.stepped {
		return g.steppedAt(v)
	}

	last := g.stops[len(g.stops)-1]
	for i := 1; i < len(g.stops); i++ {
		lo, hi := g.stops[i-1], g.stops[i]
		if v > hi.pos {
			continue
		}
		switch t := (v - lo.pos) / (hi.pos - lo.pos); {
		case t <= 0:
			return toColor(lo.color)
		case t >= 1:
			return toColor(hi.color)
		default:
			return toColor(lo.color.BlendLab(hi.color, t))
		}
	}
	return toColor(last.color)
}

func (g Gradient) steppedAt(v float64) Color {
	n := len(g.stops)
	switch {
	case v < MediumThreshold:
		return toColor(g.stops[0].color)
	case v < HighThreshold:
		return toColor(g.stops[n/2].color)
	default:
		return toColor(g.stops[n-1].color)
	}
}

func toColor(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color{R: r, G: g, B: b}
}
