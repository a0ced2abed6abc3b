package annotation

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// DefaultColor is used when an annotation colour cannot be parsed.
const DefaultColor = "#FF0000"

var defaultNRGBA = color.NRGBA{255, 0, 0, 255}

// ParseColor accepts #RRGGBB, #RRGGBBAA and CSS colour names. Channels are
// not premultiplied.
func ParseColor(s string) (color.NRGBA, error) {
	spec := strings.ToLower(strings.TrimSpace(s))
	if spec == "" {
		return color.NRGBA{}, fmt.Errorf("color cannot be empty")
	}
	if c, ok := colornames.Map[spec]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	if !strings.HasPrefix(spec, "#") || (len(spec) != 7 && len(spec) != 9) {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	channel := func(i int) (uint8, error) {
		v, err := strconv.ParseUint(spec[i:i+2], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q", s)
		}
		return uint8(v), nil
	}
	var out color.NRGBA
	var err error
	if out.R, err = channel(1); err != nil {
		return color.NRGBA{}, err
	}
	if out.G, err = channel(3); err != nil {
		return color.NRGBA{}, err
	}
	if out.B, err = channel(5); err != nil {
		return color.NRGBA{}, err
	}
	out.A = 255
	if len(spec) == 9 {
		if out.A, err = channel(7); err != nil {
			return color.NRGBA{}, err
		}
	}
	return out, nil
}

// ColorOrDefault parses s and falls back to DefaultColor.
func ColorOrDefault(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		return defaultNRGBA
	}
	return c
}

// FormatColor renders c as #RRGGBB, or #RRGGBBAA when it is translucent.
func FormatColor(c color.NRGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}
