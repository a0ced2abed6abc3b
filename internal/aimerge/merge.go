package aimerge

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/annotation"
)

// FallbackMaskLabel labels masks whose detection cannot be resolved.
const FallbackMaskLabel = "segment"

// Creator stores annotations. *annotation.Store satisfies it.
type Creator interface {
	Create(annotation.Spec) (annotation.Annotation, bool)
}

// Result summarises one merge.
type Result struct {
	Created []annotation.Annotation
	Skipped int
	// Tags is nil when the payload carried no suggestions.
	Tags *SuggestedTags
}

// Merger converts payloads into annotations.
type Merger struct {
	colors *ClassColors
	log    logrus.FieldLogger
}

// Option configures a Merger.
type Option func(*Merger)

// WithClassColors sets the class colour table.
func WithClassColors(c *ClassColors) Option {
	return func(m *Merger) {
		if c != nil {
			m.colors = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Merger) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a Merger using the default class table.
func New(opts ...Option) *Merger {
	m := &Merger{colors: DefaultClassColors(), log: logrus.StandardLogger()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Colors returns the class colour table in use.
func (m *Merger) Colors() *ClassColors { return m.colors }

// Merge creates one annotation per valid detection and mask. Invalid entries
// are skipped; existing annotations are never touched and nothing is
// deduplicated.
func (m *Merger) Merge(store Creator, p Payload) Result {
	res := Result{Skipped: p.Undecoded}
	for i, d := range p.Detections {
		spec, ok := m.detectionSpec(d)
		if !ok {
			m.log.WithFields(logrus.Fields{"index": i, "class": d.ClassName}).Debug("skipping invalid detection")
			res.Skipped++
			continue
		}
		if a, ok := store.Create(spec); ok {
			res.Created = append(res.Created, a)
		} else {
			res.Skipped++
		}
	}
	if p.Segmentation != nil {
		for i, mask := range p.Segmentation.Masks {
			spec, ok := m.maskSpec(mask, p.Detections)
			if !ok {
				m.log.WithFields(logrus.Fields{"index": i, "points": len(mask.Polygon)}).Debug("skipping invalid mask")
				res.Skipped++
				continue
			}
			if a, ok := store.Create(spec); ok {
				res.Created = append(res.Created, a)
			} else {
				res.Skipped++
			}
		}
	}
	if p.SuggestedTags != nil {
		t := *p.SuggestedTags
		res.Tags = &t
	}
	fields := logrus.Fields{"created": len(res.Created), "skipped": res.Skipped}
	if p.Classification != nil && p.Classification.ClassName != "" {
		fields["classification"] = p.Classification.ClassName
	}
	m.log.WithFields(fields).Info("merged ai payload")
	return res
}

func (m *Merger) detectionSpec(d Detection) (annotation.Spec, bool) {
	name := strings.TrimSpace(d.ClassName)
	if name == "" || d.BBox == nil || d.Confidence == nil || !unit(*d.Confidence) {
		return annotation.Spec{}, false
	}
	b := *d.BBox
	if !finite(b.X1, b.Y1, b.X2, b.Y2) || b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return annotation.Spec{}, false
	}
	return annotation.Spec{
		Label:       name,
		Color:       m.colors.Lookup(name),
		Confidence:  annotation.Conf(*d.Confidence),
		AIGenerated: true,
		Shape: annotation.Bbox{Box: annotation.BoundingBox{
			X: b.X1, Y: b.Y1, Width: b.X2 - b.X1, Height: b.Y2 - b.Y1,
		}},
	}, true
}

func (m *Merger) maskSpec(mask Mask, dets []Detection) (annotation.Spec, bool) {
	if len(mask.Polygon) < 3 || (mask.IoUScore != nil && !unit(*mask.IoUScore)) {
		return annotation.Spec{}, false
	}
	for _, p := range mask.Polygon {
		if !finite(p.X, p.Y) {
			return annotation.Spec{}, false
		}
	}
	label := FallbackMaskLabel
	if i := mask.DetectionIndex; i != nil && *i >= 0 && *i < len(dets) {
		if n := strings.TrimSpace(dets[*i].ClassName); n != "" {
			label = n
		}
	}
	pts := make([]annotation.Point, len(mask.Polygon))
	copy(pts, mask.Polygon)
	var conf *float64
	if mask.IoUScore != nil {
		conf = annotation.Conf(*mask.IoUScore)
	}
	return annotation.Spec{
		Label:       label,
		Color:       m.colors.Lookup(label),
		Confidence:  conf,
		AIGenerated: true,
		Shape:       annotation.Polygon{Points: pts},
	}, true
}

func unit(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
