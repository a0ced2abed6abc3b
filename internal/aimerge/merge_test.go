package aimerge

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/annotation"
)

func quietMerger(opts ...Option) *Merger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(append([]Option{WithLogger(l)}, opts...)...)
}

func index(i int) *int { return &i }

func TestMergeSkipsInvalidDetection(t *testing.T) {
	store := annotation.NewStore()
	p := Payload{Detections: []Detection{
		{ClassName: "person", Confidence: annotation.Conf(0.9), BBox: &Box{X1: 10, Y1: 20, X2: 110, Y2: 220}},
		{ClassName: "car", Confidence: annotation.Conf(0.8), BBox: &Box{X1: 50, Y1: 20, X2: 40, Y2: 60}},
	}}
	res := quietMerger().Merge(store, p)
	if len(res.Created) != 1 || res.Skipped != 1 {
		t.Fatalf("expected 1 created 1 skipped, got %d/%d", len(res.Created), res.Skipped)
	}
	a := res.Created[0]
	if !a.AIGenerated || a.Confidence == nil || *a.Confidence != 0.9 {
		t.Fatalf("unexpected annotation %+v", a)
	}
	box := a.Shape.(annotation.Bbox).Box
	if box != (annotation.BoundingBox{X: 10, Y: 20, Width: 100, Height: 200}) {
		t.Fatalf("unexpected box %+v", box)
	}
	if a.Color != "#FF0000" {
		t.Fatalf("expected person colour, got %s", a.Color)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d annotations", store.Len())
	}
}

func TestMergeMasks(t *testing.T) {
	store := annotation.NewStore()
	p := Payload{
		Detections: []Detection{{ClassName: "dog", Confidence: annotation.Conf(0.7), BBox: &Box{X1: 0, Y1: 0, X2: 10, Y2: 10}}},
		Segmentation: &Segmentation{Masks: []Mask{
			{DetectionIndex: index(0), Polygon: PointList{{X: 0, Y: 0}, {X: 5, Y: 0}}, IoUScore: annotation.Conf(0.5)},
			{DetectionIndex: index(0), Polygon: PointList{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}, IoUScore: annotation.Conf(0.6)},
			{DetectionIndex: index(7), Polygon: PointList{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}, IoUScore: annotation.Conf(0.4)},
		}},
	}
	res := quietMerger().Merge(store, p)
	if len(res.Created) != 3 || res.Skipped != 1 {
		t.Fatalf("expected 3 created 1 skipped, got %d/%d", len(res.Created), res.Skipped)
	}
	if res.Created[1].Label != "dog" || res.Created[1].Shape.Kind() != annotation.KindPolygon {
		t.Fatalf("unexpected mask annotation %+v", res.Created[1])
	}
	if res.Created[2].Label != FallbackMaskLabel {
		t.Fatalf("expected fallback label, got %q", res.Created[2].Label)
	}
}

func TestMergeTwiceDuplicates(t *testing.T) {
	store := annotation.NewStore()
	p := Payload{Detections: []Detection{{ClassName: "cat", Confidence: annotation.Conf(1), BBox: &Box{X2: 5, Y2: 5}}}}
	m := quietMerger()
	m.Merge(store, p)
	m.Merge(store, p)
	if store.Len() != 2 {
		t.Fatalf("expected duplicates, got %d", store.Len())
	}
}

func TestMergeKeepsManualAnnotations(t *testing.T) {
	store := annotation.NewStore()
	manual, _ := store.Create(annotation.Spec{Label: "mine", Shape: annotation.PointMark{Point: annotation.Point{X: 1, Y: 1}}})
	quietMerger().Merge(store, Payload{Detections: []Detection{{ClassName: "cat", Confidence: annotation.Conf(0.5), BBox: &Box{X2: 5, Y2: 5}}}})
	got, ok := store.Get(manual.ID)
	if !ok || got.Label != "mine" || got.AIGenerated {
		t.Fatalf("manual annotation changed: %+v", got)
	}
}

func TestDecodePayloadAndTags(t *testing.T) {
	in := `{
	  "detections": [{"class_name": "person", "confidence": 0.91, "bbox": {"x1": 1, "y1": 2, "x2": 3, "y2": 4}}],
	  "segmentation": {"masks": [{"detection_index": 0, "polygon": [[0,0],[4,0],[4,4]], "area": 8, "iou_score": 0.8}]},
	  "suggested_tags": {"tag": " outdoor ", "detailTag": ["street", "outdoor", ""], "hpTag": null}
	}`
	p, err := DecodePayload(strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(p.Segmentation.Masks[0].Polygon) != 3 {
		t.Fatalf("pair polygon not decoded: %+v", p.Segmentation.Masks[0])
	}
	res := quietMerger().Merge(annotation.NewStore(), p)
	if res.Tags == nil {
		t.Fatalf("tags dropped")
	}
	all := res.Tags.All()
	if len(all) != 2 || all[0] != "outdoor" || all[1] != "street" {
		t.Fatalf("unexpected tags %v", all)
	}
}

func TestDecodeKeepsValidEntries(t *testing.T) {
	const person = `{"class_name": "person", "confidence": 0.9, "bbox": {"x1": 1, "y1": 1, "x2": 9, "y2": 9}}`
	for name, bad := range map[string]string{
		"bbox string":  `{"class_name": "car", "confidence": 0.5, "bbox": "oops"}`,
		"x1 string":    `{"class_name": "car", "confidence": 0.5, "bbox": {"x1": "a", "y1": 0, "x2": 5, "y2": 5}}`,
		"class number": `{"class_name": 7, "confidence": 0.5, "bbox": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}}`,
	} {
		in := `{"detections": [` + person + `, ` + bad + `]}`
		p, err := DecodePayload(strings.NewReader(in))
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		res := quietMerger().Merge(annotation.NewStore(), p)
		if len(res.Created) != 1 || res.Created[0].Label != "person" || res.Skipped != 1 {
			t.Errorf("%s: expected person created and 1 skipped, got %d/%d", name, len(res.Created), res.Skipped)
		}
	}

	for name, bad := range map[string]string{
		"three coordinates": `{"detection_index": 0, "polygon": [[0,0,1],[5,0],[5,5]], "iou_score": 0.5}`,
		"polygon string":    `{"detection_index": 0, "polygon": "bad", "iou_score": 0.5}`,
	} {
		in := `{"detections": [` + person + `], "segmentation": {"masks": [` +
			`{"detection_index": 0, "polygon": [[0,0],[5,0],[5,5]], "iou_score": 0.7}, ` + bad + `]}}`
		p, err := DecodePayload(strings.NewReader(in))
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		res := quietMerger().Merge(annotation.NewStore(), p)
		if len(res.Created) != 2 || res.Skipped != 1 {
			t.Errorf("%s: expected 2 created 1 skipped, got %d/%d", name, len(res.Created), res.Skipped)
		}
	}

	for _, in := range []string{`[]`, `{"detections": {}}`, `{"segmentation": "x"}`, `{"detections": [`} {
		if _, err := DecodePayload(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestMergeMissingFields(t *testing.T) {
	in := `{
	  "detections": [
	    {"class_name": "person", "bbox": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}},
	    {"class_name": "dog", "confidence": 0.8, "bbox": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}}
	  ],
	  "segmentation": {"masks": [{"polygon": [[0,0],[4,0],[4,4]]}]}
	}`
	p, err := DecodePayload(strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res := quietMerger().Merge(annotation.NewStore(), p)
	if len(res.Created) != 2 || res.Skipped != 1 {
		t.Fatalf("expected 2 created 1 skipped, got %d/%d", len(res.Created), res.Skipped)
	}
	if res.Created[0].Label != "dog" {
		t.Errorf("detection without confidence was kept: %+v", res.Created[0])
	}
	mask := res.Created[1]
	if mask.Label != FallbackMaskLabel {
		t.Errorf("mask without detection_index should use %q, got %q", FallbackMaskLabel, mask.Label)
	}
	if mask.Confidence != nil {
		t.Errorf("mask without iou_score got confidence %v", *mask.Confidence)
	}
}

func TestMergeForwardsTagsPerGroup(t *testing.T) {
	p := Payload{SuggestedTags: &SuggestedTags{
		Tag:   StringList{"polyp"},
		HpTag: StringList{"polyp", "adenoma"},
	}}
	res := quietMerger().Merge(annotation.NewStore(), p)
	if res.Tags == nil {
		t.Fatalf("tags dropped")
	}
	if len(res.Tags.HpTag) != 2 || res.Tags.HpTag[0] != "polyp" {
		t.Fatalf("hpTag changed: %v", res.Tags.HpTag)
	}
	if n := res.Tags.Normalize(); len(n.Tag) != 1 || len(n.HpTag) != 2 {
		t.Fatalf("normalize dropped a shared tag: %+v", n)
	}
	if all := res.Tags.All(); len(all) != 2 || all[0] != "polyp" || all[1] != "adenoma" {
		t.Fatalf("unexpected flat list %v", all)
	}
}

func TestClassColorsYAML(t *testing.T) {
	in := `
classes:
  Forklift: "#123456"
  person: "#00FF00"
fallback: "#ABCDEF"
`
	cc, err := LoadClassColors(strings.NewReader(in))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cc.Lookup("forklift") != "#123456" || cc.Lookup("Person") != "#00FF00" {
		t.Fatalf("table not applied: %+v", cc.Classes)
	}
	if cc.Lookup("unknown") != "#ABCDEF" {
		t.Fatalf("fallback not applied")
	}
	if cc.Lookup("car") != defaultClasses["car"] {
		t.Fatalf("defaults lost")
	}
	if _, err := LoadClassColors(strings.NewReader("classes:\n  x: notacolour\n")); err == nil {
		t.Fatalf("expected error for bad colour")
	}
	var nilTable *ClassColors
	if nilTable.Lookup("x") != FallbackColor {
		t.Fatalf("nil table should use fallback")
	}
}
