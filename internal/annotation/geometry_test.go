package annotation

import (
	"image/color"
	"testing"
)

func TestBoxFromCorners(t *testing.T) {
	got := BoxFromCorners(Point{X: 100, Y: 80}, Point{X: 10, Y: 10})
	want := BoundingBox{X: 10, Y: 10, Width: 90, Height: 70}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestPointInPolygonConcave(t *testing.T) {
	// U shape opening upwards.
	u := []Point{{0, 0}, {10, 0}, {10, 30}, {20, 30}, {20, 0}, {30, 0}, {30, 40}, {0, 40}}
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{5, 10}, true},
		{Point{15, 10}, false},
		{Point{15, 35}, true},
		{Point{50, 10}, false},
	}
	for _, tt := range tests {
		if got := PointInPolygon(tt.p, u); got != tt.want {
			t.Errorf("PointInPolygon(%v) = %v want %v", tt.p, got, tt.want)
		}
	}
}

func TestHitPointMarkRadius(t *testing.T) {
	s := PointMark{Point: Point{X: 10, Y: 10}}
	if !Hit(s, Point{X: 13, Y: 14}, 5) {
		t.Fatalf("expected hit within radius")
	}
	if Hit(s, Point{X: 20, Y: 20}, 5) {
		t.Fatalf("unexpected hit outside radius")
	}
}

func TestBoundsAndTranslate(t *testing.T) {
	poly := Polygon{Points: []Point{{5, 5}, {15, 2}, {9, 20}}}
	b := Bounds(poly)
	if b != (BoundingBox{X: 5, Y: 2, Width: 10, Height: 18}) {
		t.Fatalf("unexpected bounds %+v", b)
	}
	moved := Translate(poly, 1, -1).(Polygon)
	if moved.Points[0] != (Point{6, 4}) || poly.Points[0] != (Point{5, 5}) {
		t.Fatalf("translate should copy points, got %v / %v", moved.Points[0], poly.Points[0])
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#FF6B6B", color.NRGBA{0xFF, 0x6B, 0x6B, 0xFF}, true},
		{"#00ff0080", color.NRGBA{0, 0xFF, 0, 0x80}, true},
		{"red", color.NRGBA{0xFF, 0, 0, 0xFF}, true},
		{"#GGGGGG", color.NRGBA{}, false},
		{"", color.NRGBA{}, false},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseColor(%q) err=%v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseColor(%q) = %v want %v", tt.in, got, tt.want)
		}
	}
	if ColorOrDefault("nope") != (color.NRGBA{255, 0, 0, 255}) {
		t.Fatalf("fallback should be red")
	}
	if FormatColor(color.NRGBA{0x12, 0x34, 0x56, 0xFF}) != "#123456" {
		t.Fatalf("unexpected format")
	}
	if got := FormatColor(color.NRGBA{0x12, 0x34, 0x56, 0x80}); got != "#12345680" {
		t.Fatalf("translucent format %q", got)
	}
}
