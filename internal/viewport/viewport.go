// Package viewport maps between window pixels and native image pixels.
package viewport

import (
	"errors"
	"math"

	"github.com/example/labelshot/internal/annotation"
)

// ErrNotReady is returned by conversions before the first Fit.
var ErrNotReady = errors.New("viewport not ready")

const (
	MinScale = 0.05
	MaxScale = 8.0
)

// Mapper converts coordinates for one image shown in one container. The
// zero value is Uninitialized.
type Mapper struct {
	imageW, imageH         float64
	containerW, containerH float64
	originX, originY       float64
	scale                  float64
	offsetX, offsetY       float64
	zoom                   float64
	ready                  bool
}

// SetOrigin sets the top-left corner of the canvas inside the window.
func (m *Mapper) SetOrigin(x, y float64) {
	m.originX, m.originY = x, y
}

// Fit shows a new image in the container. The image is never upscaled by the
// fit. Offset and zoom are reset.
func (m *Mapper) Fit(imageW, imageH, containerW, containerH float64) float64 {
	m.imageW, m.imageH = imageW, imageH
	m.offsetX, m.offsetY = 0, 0
	m.zoom = 1
	m.ready = imageW > 0 && imageH > 0
	m.Resize(containerW, containerH)
	return m.scale
}

// Resize recomputes the fit scale for a new container size keeping offset
// and zoom.
func (m *Mapper) Resize(containerW, containerH float64) {
	m.containerW, m.containerH = containerW, containerH
	if !m.ready {
		return
	}
	m.scale = clampScale(fitScale(m.imageW, m.imageH, containerW, containerH) * m.zoom)
}

func fitScale(iw, ih, cw, ch float64) float64 {
	if cw <= 0 || ch <= 0 {
		return 1
	}
	return math.Min(math.Min(cw/iw, ch/ih), 1)
}

func clampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// Ready reports whether Fit has been called with a usable image.
func (m *Mapper) Ready() bool { return m.ready }

// Scale returns the current image-to-screen scale.
func (m *Mapper) Scale() float64 { return m.scale }

// ImageSize returns the native image size.
func (m *Mapper) ImageSize() (w, h float64) { return m.imageW, m.imageH }

// ScreenToImage converts a window position into image pixels, clamped to the
// image rectangle.
func (m *Mapper) ScreenToImage(sx, sy float64) (annotation.Point, error) {
	if !m.ready {
		return annotation.Point{}, ErrNotReady
	}
	x := (sx - m.originX - m.offsetX) / m.scale
	y := (sy - m.originY - m.offsetY) / m.scale
	return annotation.Point{
		X: math.Max(0, math.Min(m.imageW, x)),
		Y: math.Max(0, math.Min(m.imageH, y)),
	}, nil
}

// ImageToScreen is the inverse of ScreenToImage without clamping.
func (m *Mapper) ImageToScreen(p annotation.Point) (annotation.Point, error) {
	if !m.ready {
		return annotation.Point{}, ErrNotReady
	}
	return annotation.Point{
		X: p.X*m.scale + m.offsetX + m.originX,
		Y: p.Y*m.scale + m.offsetY + m.originY,
	}, nil
}

// Pan moves the image by (dx, dy) screen pixels.
func (m *Mapper) Pan(dx, dy float64) error {
	if !m.ready {
		return ErrNotReady
	}
	m.offsetX += dx
	m.offsetY += dy
	return nil
}

// Zoom multiplies the scale by factor. The result is clamped to
// [MinScale, MaxScale].
func (m *Mapper) Zoom(factor float64) error {
	if !m.ready {
		return ErrNotReady
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil
	}
	base := fitScale(m.imageW, m.imageH, m.containerW, m.containerH)
	m.scale = clampScale(m.scale * factor)
	m.zoom = m.scale / base
	return nil
}

// Transform returns the scale and the screen translation of the image origin.
func (m *Mapper) Transform() (scale, tx, ty float64, err error) {
	if !m.ready {
		return 0, 0, 0, ErrNotReady
	}
	return m.scale, m.offsetX + m.originX, m.offsetY + m.originY, nil
}
