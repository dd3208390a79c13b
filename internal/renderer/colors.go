package renderer

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/csscolorparser"
)

// parseColor parses a style colour value. It returns nil for "none" and
// def for an empty value or one of the theme keywords.
func parseColor(raw string, def color.Color) (color.Color, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return def, nil
	case "none", "transparent":
		return nil, nil
	case "default", "inherit":
		return def, nil
	}
	c, err := csscolorparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", raw, err)
	}
	return color.NRGBA{
		R: unit8(c.R),
		G: unit8(c.G),
		B: unit8(c.B),
		A: unit8(c.A),
	}, nil
}

func unit8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// withOpacity scales the alpha of c by opacity in [0, 1].
func withOpacity(c color.Color, opacity float64) color.Color {
	if c == nil || opacity >= 1 {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(float64(n.A) * math.Max(0, opacity)))
	return n
}

func toColorful(c color.Color) (colorful.Color, uint8) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return colorful.Color{R: float64(n.R) / 255, G: float64(n.G) / 255, B: float64(n.B) / 255}, n.A
}

func fromColorful(c colorful.Color, a uint8) color.Color {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// lightenColor raises the lightness of c by amount in [0, 1].
func lightenColor(c color.Color, amount float64) color.Color {
	if c == nil {
		return nil
	}
	cf, a := toColorful(c)
	h, s, l := cf.Hsl()
	return fromColorful(colorful.Hsl(h, s, math.Min(1, l+amount)), a)
}

// darkenColor lowers the lightness of c by amount in [0, 1].
func darkenColor(c color.Color, amount float64) color.Color {
	if c == nil {
		return nil
	}
	cf, a := toColorful(c)
	h, s, l := cf.Hsl()
	return fromColorful(colorful.Hsl(h, s, math.Max(0, l-amount)), a)
}

// blendColors mixes a and b in Lab space; t=0 gives a.
func blendColors(a, b color.Color, t float64) color.Color {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	ca, alpha := toColorful(a)
	cb, _ := toColorful(b)
	return fromColorful(ca.BlendLab(cb, t), alpha)
}
