package datatypes

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Color3 is an RGB color with each channel in [0, 1].
type Color3 struct {
	R, G, B float32
}

// NewColor3 clamps every channel into [0, 1].
func NewColor3(r, g, b float32) Color3 {
	return Color3{R: clamp01(r), G: clamp01(g), B: clamp01(b)}
}

// FromRGB builds a color from 0-255 channels.
func FromRGB(r, g, b int) Color3 {
	return NewColor3(float32(r)/255, float32(g)/255, float32(b)/255)
}

// FromHSV builds a color from hue, saturation and value, all in [0, 1].
func FromHSV(h, s, v float32) Color3 {
	h = clamp01(h)
	s = clamp01(s)
	v = clamp01(v)
	if s == 0 {
		return NewColor3(v, v, v)
	}

	h6 := float64(h) * 6
	if h6 >= 6 {
		h6 = 0
	}
	sector := math.Floor(h6)
	f := float32(h6 - sector)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch int(sector) {
	case 0:
		return NewColor3(v, t, p)
	case 1:
		return NewColor3(q, v, p)
	case 2:
		return NewColor3(p, v, t)
	case 3:
		return NewColor3(p, q, v)
	case 4:
		return NewColor3(t, p, v)
	default:
		return NewColor3(v, p, q)
	}
}

func (c Color3) Lerp(o Color3, alpha float32) Color3 {
	return NewColor3(
		c.R+(o.R-c.R)*alpha,
		c.G+(o.G-c.G)*alpha,
		c.B+(o.B-c.B)*alpha,
	)
}

// ToHSV is the inverse of FromHSV.
func (c Color3) ToHSV() (h, s, v float32) {
	maxC := max(c.R, c.G, c.B)
	minC := min(c.R, c.G, c.B)
	v = maxC
	d := maxC - minC
	if maxC == 0 || d == 0 {
		return 0, 0, v
	}
	s = d / maxC
	switch maxC {
	case c.R:
		h = (c.G - c.B) / d
		if c.G < c.B {
			h += 6
		}
	case c.G:
		h = (c.B-c.R)/d + 2
	default:
		h = (c.R-c.G)/d + 4
	}
	return h / 6, s, v
}

// RL converts to a raylib color, using alpha in [0, 1].
func (c Color3) RL(alpha float32) rl.Color {
	return rl.NewColor(to8(c.R), to8(c.G), to8(c.B), to8(alpha))
}

func (c Color3) String() string {
	return fmt.Sprintf("%g, %g, %g", c.R, c.G, c.B)
}

func clamp01(f float32) float32 {
	if f != f {
		return 0
	}
	return min(max(f, 0), 1)
}

func to8(f float32) uint8 {
	return uint8(math.Round(float64(clamp01(f)) * 255))
}
