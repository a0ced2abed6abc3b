// Package aimerge turns the result of an external vision analysis into
// annotations and tag suggestions.
package aimerge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/example/labelshot/internal/annotation"
)

// Payload is the analysis result as produced by the detection service.
type Payload struct {
	Detections     []Detection     `json:"detections"`
	Classification *Classification `json:"classification,omitempty"`
	Segmentation   *Segmentation   `json:"segmentation,omitempty"`
	SuggestedTags  *SuggestedTags  `json:"suggested_tags,omitempty"`

	// Undecoded counts detections and masks dropped while decoding.
	Undecoded int `json:"-"`
}

// UnmarshalJSON decodes detections and masks one at a time so a broken
// entry is dropped instead of failing the whole payload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw struct {
		Detections     []json.RawMessage `json:"detections"`
		Classification *Classification   `json:"classification"`
		Segmentation   *struct {
			Masks []json.RawMessage `json:"masks"`
		} `json:"segmentation"`
		SuggestedTags *SuggestedTags `json:"suggested_tags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Payload{Classification: raw.Classification, SuggestedTags: raw.SuggestedTags}
	for _, msg := range raw.Detections {
		var d Detection
		if err := json.Unmarshal(msg, &d); err != nil {
			out.Undecoded++
			continue
		}
		out.Detections = append(out.Detections, d)
	}
	if raw.Segmentation != nil {
		out.Segmentation = &Segmentation{}
		for _, msg := range raw.Segmentation.Masks {
			var m Mask
			if err := json.Unmarshal(msg, &m); err != nil {
				out.Undecoded++
				continue
			}
			out.Segmentation.Masks = append(out.Segmentation.Masks, m)
		}
	}
	*p = out
	return nil
}

// Detection is one detected object in image pixels. Confidence is nil when
// the service left it out.
type Detection struct {
	ClassName  string   `json:"class_name"`
	Confidence *float64 `json:"confidence"`
	BBox       *Box     `json:"bbox"`
}

// Box uses corner coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Classification is the whole-image class.
type Classification struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

type Segmentation struct {
	Masks []Mask `json:"masks"`
}

// Mask is a segmentation outline belonging to a detection. A nil
// DetectionIndex means the mask names no detection.
type Mask struct {
	DetectionIndex *int      `json:"detection_index,omitempty"`
	Polygon        PointList `json:"polygon"`
	Area           float64   `json:"area,omitempty"`
	IoUScore       *float64  `json:"iou_score,omitempty"`
}

// PointList decodes either [{"x":1,"y":2}] or [[1,2]].
type PointList []annotation.Point

func (pl *PointList) UnmarshalJSON(data []byte) error {
	var objs []annotation.Point
	if err := json.Unmarshal(data, &objs); err == nil {
		*pl = objs
		return nil
	}
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("polygon: %w", err)
	}
	out := make(PointList, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("polygon: point with %d coordinates", len(p))
		}
		out = append(out, annotation.Point{X: p[0], Y: p[1]})
	}
	*pl = out
	return nil
}

// SuggestedTags groups the tag suggestions by the field the host applies
// them to.
type SuggestedTags struct {
	Tag       StringList `json:"tag,omitempty"`
	DetailTag StringList `json:"detailTag,omitempty"`
	HpTag     StringList `json:"hpTag,omitempty"`
}

// StringList accepts a single string or a list of strings.
type StringList []string

func (sl *StringList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*sl = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*sl = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*sl = many
	return nil
}

// Normalize trims every entry and drops empty ones and repeats within a
// group. A tag may appear in more than one group.
func (t SuggestedTags) Normalize() SuggestedTags {
	clean := func(in StringList) StringList {
		var out StringList
		seen := map[string]bool{}
		for _, s := range in {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		return out
	}
	return SuggestedTags{Tag: clean(t.Tag), DetailTag: clean(t.DetailTag), HpTag: clean(t.HpTag)}
}

// All returns every tag once, as one flat list for display.
func (t SuggestedTags) All() []string {
	n := t.Normalize()
	out := make([]string, 0, len(n.Tag)+len(n.DetailTag)+len(n.HpTag))
	seen := map[string]bool{}
	for _, group := range []StringList{n.Tag, n.DetailTag, n.HpTag} {
		for _, s := range group {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// Empty reports whether no tag is suggested.
func (t SuggestedTags) Empty() bool { return len(t.All()) == 0 }

// DecodePayload reads a JSON analysis payload. Only a payload whose overall
// shape is broken is an error; bad detections and masks are counted in
// Undecoded.
func DecodePayload(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decode ai payload: %w", err)
	}
	return p, nil
}
