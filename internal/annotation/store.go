package annotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patch lists the fields an Update may change. Nil fields are left alone.
type Patch struct {
	Label      *string
	Color      *string
	Confidence *float64
	Shape      Shape
}

// Listener receives store notifications. Any field may be nil.
type Listener struct {
	OnCreate func(Annotation)
	OnUpdate func(Annotation)
	OnDelete func(id string)
	OnSelect func(id string)
}

// Store is the ordered annotation collection of one editing session. It has a
// single owner and is not safe for concurrent use.
type Store struct {
	items    []Annotation
	index    map[string]int
	selected string

	newID    func() string
	now      func() time.Time
	listener Listener
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) StoreOption { return func(s *Store) { s.newID = fn } }

// WithClock overrides the CreatedAt clock.
func WithClock(fn func() time.Time) StoreOption { return func(s *Store) { s.now = fn } }

// WithListener registers the change callbacks.
func WithListener(l Listener) StoreOption { return func(s *Store) { s.listener = l } }

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		index: make(map[string]int),
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetListener replaces the change callbacks.
func (s *Store) SetListener(l Listener) { s.listener = l }

// Create stores a new annotation built from spec. It reports false and
// stores nothing when the spec breaks the model rules.
func (s *Store) Create(spec Spec) (Annotation, bool) {
	if err := spec.Validate(); err != nil {
		return Annotation{}, false
	}
	id := s.newID()
	for _, taken := s.index[id]; taken; _, taken = s.index[id] {
		id = s.newID()
	}
	a := Annotation{
		ID:          id,
		Label:       spec.Label,
		Color:       spec.Color,
		Confidence:  spec.Confidence,
		AIGenerated: spec.AIGenerated,
		CreatedAt:   s.now(),
		Shape:       spec.Shape,
	}.Clone()
	s.index[a.ID] = len(s.items)
	s.items = append(s.items, a)
	if s.listener.OnCreate != nil {
		s.listener.OnCreate(a.Clone())
	}
	return a.Clone(), true
}

// Load appends existing annotations, keeping their ids and timestamps.
// Invalid records and duplicate ids are skipped; the number loaded is returned.
func (s *Store) Load(list []Annotation) int {
	n := 0
	for _, a := range list {
		if a.ID == "" {
			continue
		}
		if _, dup := s.index[a.ID]; dup {
			continue
		}
		if ValidateShape(a.Shape) != nil || ValidateConfidence(a.Confidence) != nil {
			continue
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = s.now()
		}
		s.index[a.ID] = len(s.items)
		s.items = append(s.items, a.Clone())
		n++
	}
	return n
}

// Select sets the selected annotation. Unknown ids clear the selection.
func (s *Store) Select(id string) {
	if _, ok := s.index[id]; !ok {
		id = ""
	}
	if id == s.selected {
		return
	}
	s.selected = id
	if s.listener.OnSelect != nil {
		s.listener.OnSelect(id)
	}
}

// SelectedID returns the selected id or "" when nothing is selected.
func (s *Store) SelectedID() string { return s.selected }

// Selected returns the selected annotation.
func (s *Store) Selected() (Annotation, bool) {
	if s.selected == "" {
		return Annotation{}, false
	}
	return s.Get(s.selected)
}

// Get returns a copy of the annotation with the given id.
func (s *Store) Get(id string) (Annotation, bool) {
	i, ok := s.index[id]
	if !ok {
		return Annotation{}, false
	}
	return s.items[i].Clone(), true
}

// Update merges patch into the annotation. The record is left untouched when
// the patch is invalid.
func (s *Store) Update(id string, patch Patch) (Annotation, error) {
	i, ok := s.index[id]
	if !ok {
		return Annotation{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	a := s.items[i].Clone()
	if patch.Label != nil {
		a.Label = *patch.Label
	}
	if patch.Color != nil {
		a.Color = *patch.Color
	}
	if patch.Confidence != nil {
		if err := ValidateConfidence(patch.Confidence); err != nil {
			return Annotation{}, fmt.Errorf("update %s: %w", id, err)
		}
		c := *patch.Confidence
		a.Confidence = &c
	}
	if patch.Shape != nil {
		if err := ValidateShape(patch.Shape); err != nil {
			return Annotation{}, fmt.Errorf("update %s: %w", id, err)
		}
		a.Shape = cloneShape(patch.Shape)
	}
	s.items[i] = a
	if s.listener.OnUpdate != nil {
		s.listener.OnUpdate(a.Clone())
	}
	return a.Clone(), nil
}

// Delete removes the annotation and clears the selection when it pointed at
// it. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	if s.listener.OnDelete != nil {
		s.listener.OnDelete(id)
	}
	if s.selected == id {
		s.selected = ""
		if s.listener.OnSelect != nil {
			s.listener.OnSelect("")
		}
	}
}

// List returns a snapshot of all annotations in insertion order.
func (s *Store) List() []Annotation {
	out := make([]Annotation, len(s.items))
	for i, a := range s.items {
		out[i] = a.Clone()
	}
	return out
}

// Len returns the number of stored annotations.
func (s *Store) Len() int { return len(s.items) }

// HitTest returns the topmost annotation touched by p. Later annotations are
// drawn on top, so the search runs backwards.
func (s *Store) HitTest(p Point, radius float64) (Annotation, bool) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if Hit(s.items[i].Shape, p, radius) {
			return s.items[i].Clone(), true
		}
	}
	return Annotation{}, false
}
