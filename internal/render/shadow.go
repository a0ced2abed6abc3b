package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Shadow is a blurred drop shadow placed behind an exported image.
type Shadow struct {
	Radius  int
	Offset  image.Point
	Opacity float64
}

// DefaultShadow suits screenshots and photos alike.
func DefaultShadow() Shadow {
	return Shadow{Radius: 16, Offset: image.Pt(10, 10), Opacity: 0.5}
}

// Apply returns img on a larger transparent canvas with the shadow behind
// it. The result has a zero origin; the second value is where img's top-left
// corner ended up. With no opacity img is returned unchanged.
func (s Shadow) Apply(img *image.RGBA) (*image.RGBA, image.Point) {
	if img == nil || img.Bounds().Empty() || s.Opacity <= 0 {
		return img, image.Point{}
	}
	opacity := min(s.Opacity, 1)
	radius := max(s.Radius, 0)

	src := img.Bounds()
	padded := src.Inset(-radius)
	shadowRect := padded.Add(s.Offset)
	canvas := src.Union(shadowRect)
	shift := src.Min.Sub(canvas.Min)

	// The silhouette follows the image's alpha so cut-outs cast cut-out
	// shadows.
	mask := image.NewNRGBA(padded.Sub(padded.Min))
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			a := img.RGBAAt(x, y).A
			if a == 0 {
				continue
			}
			mask.SetNRGBA(x-padded.Min.X, y-padded.Min.Y, color.NRGBA{A: uint8(float64(a)*opacity + 0.5)})
		}
	}
	blurred := mask
	if radius > 0 {
		blurred = imaging.Blur(mask, float64(radius)/2)
	}

	dst := image.NewRGBA(canvas.Sub(canvas.Min))
	draw.Draw(dst, blurred.Bounds().Add(shadowRect.Min.Sub(canvas.Min)), blurred, image.Point{}, draw.Over)
	draw.Draw(dst, src.Sub(canvas.Min), img, src.Min, draw.Over)
	return dst, shift
}
