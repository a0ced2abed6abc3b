package annotation

import "math"

// Contains reports whether p lies within the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width &&
		p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// PointInPolygon uses the even-odd ray casting rule so concave polygons
// drawn by hand are tested correctly.
func PointInPolygon(p Point, pts []Point) bool {
	if len(pts) < 3 {
		return false
	}
	inside := false
	j := len(pts) - 1
	for i := range pts {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Hit reports whether p touches the shape. radius is the tolerance used for
// point marks, in image pixels.
func Hit(s Shape, p Point, radius float64) bool {
	switch s := s.(type) {
	case Bbox:
		return s.Box.Contains(p)
	case Polygon:
		return PointInPolygon(p, s.Points)
	case PointMark:
		return math.Hypot(p.X-s.Point.X, p.Y-s.Point.Y) <= radius
	default:
		return false
	}
}

// Bounds returns the axis-aligned bounding box of a shape.
func Bounds(s Shape) BoundingBox {
	switch s := s.(type) {
	case Bbox:
		return s.Box
	case Polygon:
		if len(s.Points) == 0 {
			return BoundingBox{}
		}
		minX, minY := s.Points[0].X, s.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range s.Points[1:] {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
		return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	case PointMark:
		return BoundingBox{X: s.Point.X, Y: s.Point.Y}
	default:
		return BoundingBox{}
	}
}

// Translate returns the shape moved by (dx, dy).
func Translate(s Shape, dx, dy float64) Shape {
	switch s := s.(type) {
	case Bbox:
		b := s.Box
		b.X += dx
		b.Y += dy
		return Bbox{Box: b}
	case Polygon:
		pts := make([]Point, len(s.Points))
		for i, p := range s.Points {
			pts[i] = Point{X: p.X + dx, Y: p.Y + dy}
		}
		return Polygon{Points: pts}
	case PointMark:
		return PointMark{Point: Point{X: s.Point.X + dx, Y: s.Point.Y + dy}}
	default:
		return s
	}
}
