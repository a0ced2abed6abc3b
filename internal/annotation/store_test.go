package annotation

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestStore(t *testing.T, l Listener) *Store {
	t.Helper()
	n := 0
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewStore(
		WithIDFunc(func() string { n++; return fmt.Sprintf("a%d", n) }),
		WithClock(func() time.Time { return clock }),
		WithListener(l),
	)
}

func TestCreateAssignsIDAndKeepsOrder(t *testing.T) {
	var created []string
	s := newTestStore(t, Listener{OnCreate: func(a Annotation) { created = append(created, a.ID) }})

	a, ok := s.Create(Spec{Label: "cat", Color: "#00FF00", Shape: Bbox{Box: BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}}})
	if !ok {
		t.Fatalf("create bbox failed")
	}
	if a.ID != "a1" || a.CreatedAt.IsZero() {
		t.Fatalf("unexpected stored annotation %+v", a)
	}
	if _, ok := s.Create(Spec{Shape: PointMark{Point: Point{X: 5, Y: 5}}}); !ok {
		t.Fatalf("create point failed")
	}

	list := s.List()
	if len(list) != 2 || list[0].ID != "a1" || list[1].ID != "a2" {
		t.Fatalf("unexpected list order %+v", list)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 OnCreate calls, got %d", len(created))
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := newTestStore(t, Listener{})
	cases := []Spec{
		{Shape: Bbox{Box: BoundingBox{Width: 0, Height: 10}}},
		{Shape: Polygon{Points: []Point{{0, 0}, {1, 1}}}},
		{Shape: PointMark{Point: Point{X: 1, Y: 1}}, Confidence: Conf(1.5)},
		{},
	}
	for i, c := range cases {
		if _, ok := s.Create(c); ok {
			t.Errorf("case %d: expected rejection", i)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("store should be empty, has %d", s.Len())
	}
}

func TestSelectUnknownClearsSelection(t *testing.T) {
	s := newTestStore(t, Listener{})
	a, _ := s.Create(Spec{Shape: PointMark{Point: Point{X: 1, Y: 1}}})
	s.Select(a.ID)
	if s.SelectedID() != a.ID {
		t.Fatalf("expected %s selected", a.ID)
	}
	s.Select("missing")
	if s.SelectedID() != "" {
		t.Fatalf("unknown id should clear selection, got %q", s.SelectedID())
	}
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	var selects []string
	s := newTestStore(t, Listener{OnSelect: func(id string) { selects = append(selects, id) }})
	a, _ := s.Create(Spec{Shape: Bbox{Box: BoundingBox{Width: 10, Height: 10}}})
	b, _ := s.Create(Spec{Shape: Bbox{Box: BoundingBox{X: 20, Width: 10, Height: 10}}})
	s.Select(a.ID)
	s.Delete(a.ID)

	if s.SelectedID() != "" {
		t.Fatalf("selection should be cleared")
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatalf("deleted annotation still present")
	}
	if got, ok := s.Get(b.ID); !ok || got.ID != b.ID {
		t.Fatalf("remaining annotation lost")
	}
	if len(selects) != 2 || selects[1] != "" {
		t.Fatalf("unexpected select notifications %v", selects)
	}

	s.Delete("missing")
	if s.Len() != 1 {
		t.Fatalf("deleting an unknown id changed the store")
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t, Listener{})
	a, _ := s.Create(Spec{Label: "old", Shape: Bbox{Box: BoundingBox{Width: 10, Height: 10}}})

	label := "new"
	got, err := s.Update(a.ID, Patch{Label: &label})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Label != "new" {
		t.Fatalf("label not updated: %q", got.Label)
	}

	if _, err := s.Update("missing", Patch{Label: &label}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = s.Update(a.ID, Patch{Shape: Polygon{Points: []Point{{0, 0}}}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	stored, _ := s.Get(a.ID)
	if stored.Shape.Kind() != KindBbox {
		t.Fatalf("invalid update must leave the record unchanged")
	}
}

func TestListIsSnapshot(t *testing.T) {
	s := newTestStore(t, Listener{})
	s.Create(Spec{Shape: Polygon{Points: []Point{{0, 0}, {10, 0}, {10, 10}}}})
	list := s.List()
	list[0].Shape.(Polygon).Points[0] = Point{X: 99, Y: 99}

	again := s.List()
	if again[0].Shape.(Polygon).Points[0] != (Point{}) {
		t.Fatalf("mutating a snapshot changed the store")
	}
}

func TestLoadSkipsInvalidAndDuplicates(t *testing.T) {
	s := newTestStore(t, Listener{})
	n := s.Load([]Annotation{
		{ID: "x", Shape: PointMark{Point: Point{X: 1, Y: 1}}},
		{ID: "x", Shape: PointMark{Point: Point{X: 2, Y: 2}}},
		{ID: "y", Shape: Polygon{Points: []Point{{0, 0}}}},
		{ID: "z", Shape: Bbox{Box: BoundingBox{Width: 2, Height: 2}}},
	})
	if n != 2 || s.Len() != 2 {
		t.Fatalf("expected 2 loaded, got n=%d len=%d", n, s.Len())
	}
}

func TestHitTestPrefersTopmost(t *testing.T) {
	s := newTestStore(t, Listener{})
	s.Create(Spec{Shape: Bbox{Box: BoundingBox{Width: 100, Height: 100}}})
	top, _ := s.Create(Spec{Shape: Bbox{Box: BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}}})

	got, ok := s.HitTest(Point{X: 15, Y: 15}, 0)
	if !ok || got.ID != top.ID {
		t.Fatalf("expected topmost %s, got %+v", top.ID, got)
	}
	if _, ok := s.HitTest(Point{X: 500, Y: 500}, 0); ok {
		t.Fatalf("expected miss")
	}
}
