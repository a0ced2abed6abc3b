// Package render draws the annotation canvas: base image, committed
// annotations with their label chips and the shape currently being drawn.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/theme"
	"github.com/example/labelshot/internal/viewport"
)

// ErrNotReady is returned when there is no image or no fitted viewport yet.
var ErrNotReady = viewport.ErrNotReady

const (
	ManualFillAlpha = 0.25
	AIFillAlpha     = 0.12
	aiStrokeAlpha   = 0.7

	strokeWidth      = 2.0
	selectedWidth    = 4.0
	pointRadius      = 5.0
	vertexRadius     = 3.0
	chipTextSize     = 12.0
	chipPadding      = 3.0
	checkerSize      = 8
	dashOn, dashOff  = 6.0, 4.0
	chipTextFallback = "?"
)

// View supplies the image-to-screen transform.
type View interface {
	Transform() (scale, tx, ty float64, err error)
}

// Draft is the shape currently being drawn. Rect is set while a box is
// dragged; Points holds polygon vertices placed so far.
type Draft struct {
	Rect   *annotation.BoundingBox
	Points []annotation.Point
	Cursor *annotation.Point
	Color  string
}

// Scene is everything one frame needs.
type Scene struct {
	Image       image.Image
	View        View
	Annotations []annotation.Annotation
	SelectedID  string
	Draft       Draft
}

// Renderer redraws the whole canvas on every call.
type Renderer struct {
	theme    *theme.Theme
	backdrop *image.RGBA
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTheme sets the colours used for the background and checkerboard.
func WithTheme(t *theme.Theme) Option {
	return func(r *Renderer) {
		if t != nil {
			r.theme = t
		}
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{theme: theme.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

var chipFace = sync.OnceValues(func() (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: chipTextSize, DPI: 72, Hinting: font.HintingFull})
})

// Render draws scene into dst.
func (r *Renderer) Render(dst *image.RGBA, scene Scene) error {
	if scene.Image == nil || scene.View == nil {
		return ErrNotReady
	}
	scale, tx, ty, err := scene.View.Transform()
	if err != nil {
		return err
	}
	xf := transform{scale: scale, tx: tx, ty: ty}

	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.theme.Background), image.Point{}, draw.Src)
	ib := scene.Image.Bounds()
	imgRect := image.Rect(
		int(math.Floor(tx)), int(math.Floor(ty)),
		int(math.Ceil(tx+float64(ib.Dx())*scale)), int(math.Ceil(ty+float64(ib.Dy())*scale)),
	).Intersect(dst.Bounds())
	r.drawBackdrop(dst, imgRect)

	dc := gg.NewContextForRGBA(dst)
	dc.Push()
	dc.Translate(tx, ty)
	dc.Scale(scale, scale)
	dc.DrawImage(scene.Image, -ib.Min.X, -ib.Min.Y)
	dc.Pop()

	face, err := chipFace()
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	// Store order: a later annotation may cover an earlier one's chip.
	for _, a := range scene.Annotations {
		drawAnnotation(dc, xf, a, a.ID == scene.SelectedID)
		drawChip(dc, xf, a)
	}
	drawDraft(dc, xf, scene.Draft)
	return nil
}

// Export renders annotations over img at native resolution. When maxWidth is
// positive and smaller than the image the result is downscaled.
func (r *Renderer) Export(img image.Image, list []annotation.Annotation, maxWidth int) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrNotReady
	}
	b := img.Bounds()
	var m viewport.Mapper
	m.Fit(float64(b.Dx()), float64(b.Dy()), float64(b.Dx()), float64(b.Dy()))
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if err := r.Render(out, Scene{Image: img, View: &m, Annotations: list}); err != nil {
		return nil, err
	}
	if maxWidth <= 0 || maxWidth >= b.Dx() {
		return out, nil
	}
	small := imaging.Resize(out, maxWidth, 0, imaging.Lanczos)
	res := image.NewRGBA(small.Bounds())
	draw.Draw(res, res.Bounds(), small, small.Bounds().Min, draw.Src)
	return res, nil
}

type transform struct {
	scale, tx, ty float64
}

func (t transform) pt(p annotation.Point) (float64, float64) {
	return p.X*t.scale + t.tx, p.Y*t.scale + t.ty
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(float64(c.A) * alpha))}
}

func drawAnnotation(dc *gg.Context, xf transform, a annotation.Annotation, selected bool) {
	col := annotation.ColorOrDefault(a.Color)
	fill, stroke := ManualFillAlpha, 1.0
	if a.AIGenerated {
		fill, stroke = AIFillAlpha, aiStrokeAlpha
	}
	width := strokeWidth
	if selected {
		width = selectedWidth
	}
	dc.SetLineWidth(width)

	switch s := a.Shape.(type) {
	case annotation.Bbox:
		x, y := xf.pt(annotation.Point{X: s.Box.X, Y: s.Box.Y})
		dc.DrawRectangle(x, y, s.Box.Width*xf.scale, s.Box.Height*xf.scale)
	case annotation.Polygon:
		for i, p := range s.Points {
			x, y := xf.pt(p)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
	case annotation.PointMark:
		x, y := xf.pt(s.Point)
		r := pointRadius
		if selected {
			r += 2
		}
		dc.DrawCircle(x, y, r)
		dc.SetColor(withAlpha(col, stroke))
		dc.FillPreserve()
		dc.SetColor(color.White)
		dc.SetLineWidth(width / 2)
		dc.Stroke()
		return
	default:
		return
	}
	dc.SetColor(withAlpha(col, fill))
	dc.FillPreserve()
	dc.SetColor(withAlpha(col, stroke))
	dc.Stroke()
}

// ChipText is the text shown on an annotation's label chip.
func ChipText(a annotation.Annotation) string {
	label := a.Label
	if label == "" {
		label = chipTextFallback
	}
	if a.Confidence != nil {
		return fmt.Sprintf("%s %d%%", label, int(math.Round(*a.Confidence*100)))
	}
	return label
}

func drawChip(dc *gg.Context, xf transform, a annotation.Annotation) {
	if a.Shape == nil {
		return
	}
	b := annotation.Bounds(a.Shape)
	x, y := xf.pt(annotation.Point{X: b.X, Y: b.Y})
	text := ChipText(a)
	tw, th := dc.MeasureString(text)
	w, h := tw+2*chipPadding, th+2*chipPadding
	top := y - h
	if top < 0 {
		top = y
	}
	col := annotation.ColorOrDefault(a.Color)
	dc.DrawRectangle(x, top, w, h)
	dc.SetColor(withAlpha(col, 0.85))
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, x+chipPadding, top+h/2, 0, 0.35)
}

func drawDraft(dc *gg.Context, xf transform, d Draft) {
	if d.Rect == nil && len(d.Points) == 0 {
		return
	}
	col := annotation.ColorOrDefault(d.Color)
	dc.SetColor(col)
	dc.SetLineWidth(strokeWidth)
	dc.SetDash(dashOn, dashOff)
	defer dc.SetDash()

	if d.Rect != nil {
		x, y := xf.pt(annotation.Point{X: d.Rect.X, Y: d.Rect.Y})
		dc.DrawRectangle(x, y, d.Rect.Width*xf.scale, d.Rect.Height*xf.scale)
		dc.Stroke()
	}
	if len(d.Points) == 0 {
		return
	}
	for i, p := range d.Points {
		x, y := xf.pt(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	if d.Cursor != nil {
		x, y := xf.pt(*d.Cursor)
		dc.LineTo(x, y)
	}
	dc.Stroke()
	dc.SetDash()
	for _, p := range d.Points {
		x, y := xf.pt(p)
		dc.DrawCircle(x, y, vertexRadius)
		dc.Fill()
	}
}

// drawBackdrop fills rect of dst with a cached checkerboard so transparent
// images stay visible.
func (r *Renderer) drawBackdrop(dst *image.RGBA, rect image.Rectangle) {
	if rect.Empty() {
		return
	}
	b := dst.Bounds()
	if r.backdrop == nil || r.backdrop.Bounds() != b {
		r.backdrop = image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := r.theme.CheckerLight
				if ((x/checkerSize)+(y/checkerSize))%2 != 0 {
					c = r.theme.CheckerDark
				}
				r.backdrop.SetRGBA(x, y, c)
			}
		}
	}
	draw.Draw(dst, rect, r.backdrop, rect.Min, draw.Src)
}
