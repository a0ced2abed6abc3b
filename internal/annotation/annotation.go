// Package annotation holds the annotation model shared by the editor, the
// renderer and the AI result merger, together with the store that owns the
// annotations of one editing session.
package annotation

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNotFound is returned when an operation references an unknown id.
	ErrNotFound = errors.New("annotation not found")
	// ErrInvalid is returned when geometry or confidence break the model rules.
	ErrInvalid = errors.New("invalid annotation")
)

// Point is a position in image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned rectangle in image space with a top-left origin.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxFromCorners returns the axis-aligned box spanned by two corners given in
// any order.
func BoxFromCorners(a, b Point) BoundingBox {
	return BoundingBox{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Kind discriminates the shape variants.
type Kind string

const (
	KindBbox    Kind = "bbox"
	KindPolygon Kind = "polygon"
	KindPoint   Kind = "point"
)

// Shape is the geometry of an annotation. It is implemented only by Bbox,
// Polygon and PointMark.
type Shape interface {
	Kind() Kind
	shape()
}

// Bbox is a rectangle annotation.
type Bbox struct {
	Box BoundingBox
}

// Polygon is a closed polygon annotation.
type Polygon struct {
	Points []Point
}

// PointMark is a single point annotation.
type PointMark struct {
	Point Point
}

func (Bbox) Kind() Kind      { return KindBbox }
func (Polygon) Kind() Kind   { return KindPolygon }
func (PointMark) Kind() Kind { return KindPoint }

func (Bbox) shape()      {}
func (Polygon) shape()   {}
func (PointMark) shape() {}

// Annotation is a single labelled shape.
type Annotation struct {
	ID          string
	Label       string
	Color       string
	Confidence  *float64
	AIGenerated bool
	CreatedAt   time.Time
	Shape       Shape
}

// Spec describes an annotation that has not been stored yet.
type Spec struct {
	Label       string
	Color       string
	Confidence  *float64
	AIGenerated bool
	Shape       Shape
}

// Conf returns a pointer to v, convenient for building a Spec.
func Conf(v float64) *float64 { return &v }

// ValidateShape checks the geometry rules that every stored shape must obey.
func ValidateShape(s Shape) error {
	switch s := s.(type) {
	case Bbox:
		b := s.Box
		if !finite(b.X, b.Y, b.Width, b.Height) {
			return fmt.Errorf("%w: bbox has non-finite coordinates", ErrInvalid)
		}
		if b.Width <= 0 || b.Height <= 0 {
			return fmt.Errorf("%w: bbox %gx%g is degenerate", ErrInvalid, b.Width, b.Height)
		}
	case Polygon:
		if len(s.Points) < 3 {
			return fmt.Errorf("%w: polygon needs at least 3 points, got %d", ErrInvalid, len(s.Points))
		}
		for _, p := range s.Points {
			if !finite(p.X, p.Y) {
				return fmt.Errorf("%w: polygon has non-finite point", ErrInvalid)
			}
		}
	case PointMark:
		if !finite(s.Point.X, s.Point.Y) {
			return fmt.Errorf("%w: point is not finite", ErrInvalid)
		}
	case nil:
		return fmt.Errorf("%w: missing shape", ErrInvalid)
	default:
		return fmt.Errorf("%w: unknown shape kind %q", ErrInvalid, s.Kind())
	}
	return nil
}

// ValidateConfidence checks an optional confidence score.
func ValidateConfidence(c *float64) error {
	if c == nil {
		return nil
	}
	if !finite(*c) || *c < 0 || *c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalid, *c)
	}
	return nil
}

// Validate checks a spec against the model rules.
func (s Spec) Validate() error {
	if err := ValidateShape(s.Shape); err != nil {
		return err
	}
	return ValidateConfidence(s.Confidence)
}

// Clone returns a deep copy so callers never share point slices with the store.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Confidence != nil {
		c := *a.Confidence
		out.Confidence = &c
	}
	out.Shape = cloneShape(a.Shape)
	return out
}

func cloneShape(s Shape) Shape {
	if p, ok := s.(Polygon); ok {
		pts := make([]Point, len(p.Points))
		copy(pts, p.Points)
		return Polygon{Points: pts}
	}
	return s
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
