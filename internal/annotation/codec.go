package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type record struct {
	ID          string       `json:"id"`
	Type        Kind         `json:"type"`
	Label       string       `json:"label"`
	Color       string       `json:"color"`
	Confidence  *float64     `json:"confidence,omitempty"`
	AIGenerated bool         `json:"isAIGenerated,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Bbox        *BoundingBox `json:"bbox,omitempty"`
	Points      []Point      `json:"points,omitempty"`
	Point       *Point       `json:"point,omitempty"`
}

// MarshalJSON encodes the annotation with a "type" discriminator.
func (a Annotation) MarshalJSON() ([]byte, error) {
	r := record{
		ID:          a.ID,
		Label:       a.Label,
		Color:       a.Color,
		Confidence:  a.Confidence,
		AIGenerated: a.AIGenerated,
		CreatedAt:   a.CreatedAt,
	}
	switch s := a.Shape.(type) {
	case Bbox:
		r.Type = KindBbox
		b := s.Box
		r.Bbox = &b
	case Polygon:
		r.Type = KindPolygon
		r.Points = s.Points
	case PointMark:
		r.Type = KindPoint
		p := s.Point
		r.Point = &p
	case nil:
		return nil, fmt.Errorf("encode %s: %w: missing shape", a.ID, ErrInvalid)
	default:
		return nil, fmt.Errorf("encode %s: %w: unknown shape kind %q", a.ID, ErrInvalid, s.Kind())
	}
	return json.Marshal(r)
}

// UnmarshalJSON decodes and validates one annotation record.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	var shape Shape
	switch r.Type {
	case KindBbox:
		if r.Bbox == nil {
			return fmt.Errorf("decode %s: %w: bbox record without bbox", r.ID, ErrInvalid)
		}
		shape = Bbox{Box: *r.Bbox}
	case KindPolygon:
		shape = Polygon{Points: r.Points}
	case KindPoint:
		if r.Point == nil {
			return fmt.Errorf("decode %s: %w: point record without point", r.ID, ErrInvalid)
		}
		shape = PointMark{Point: *r.Point}
	default:
		return fmt.Errorf("decode %s: %w: unknown type %q", r.ID, ErrInvalid, r.Type)
	}
	if err := ValidateShape(shape); err != nil {
		return fmt.Errorf("decode %s: %w", r.ID, err)
	}
	if err := ValidateConfidence(r.Confidence); err != nil {
		return fmt.Errorf("decode %s: %w", r.ID, err)
	}
	*a = Annotation{
		ID:          r.ID,
		Label:       r.Label,
		Color:       r.Color,
		Confidence:  r.Confidence,
		AIGenerated: r.AIGenerated,
		CreatedAt:   r.CreatedAt,
		Shape:       shape,
	}
	return nil
}

// Encode writes the annotations as an indented JSON array.
func Encode(w io.Writer, list []Annotation) error {
	if list == nil {
		list = []Annotation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

// Decode reads a JSON array of annotations. The first invalid record aborts
// decoding.
func Decode(r io.Reader) ([]Annotation, error) {
	var list []Annotation
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return list, nil
}

// ReadFile decodes the annotation document at path.
func ReadFile(path string) ([]Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	list, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// WriteFile replaces path with the encoded annotations. Missing parent
// directories are created.
func WriteFile(path string, list []Annotation) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, list); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
