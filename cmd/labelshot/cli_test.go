package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/editor"
	"github.com/example/labelshot/internal/ui"
)

const personPayload = `{
  "detections": [
    {"class_name": "person", "confidence": 0.9, "bbox": {"x1": 2, "y1": 2, "x2": 20, "y2": 16}},
    {"class_name": "", "confidence": 0.5, "bbox": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}}
  ],
  "suggested_tags": {"tag": "outdoor", "detailTag": ["street", "outdoor"]}
}`

type testRoot struct {
	*root
	dir    string
	cfg    string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestRoot points -config at a file in a temp dir so the user's own
// configuration never leaks into a test.
func newTestRoot(t *testing.T, rc string) *testRoot {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.rc")
	if err := os.WriteFile(cfg, []byte(rc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	r := newRoot()
	tr := &testRoot{root: r, dir: dir, cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	r.stdout, r.stderr = tr.stdout, tr.stderr
	t.Setenv("LABELSHOT_THEME", "")
	return tr
}

func (tr *testRoot) run(args ...string) error {
	return tr.root.Run(append([]string{"-config", tr.cfg}, args...))
}

func (tr *testRoot) write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(tr.dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func (tr *testRoot) writePNG(t *testing.T, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return tr.write(t, name, buf.String())
}

func TestRootUsage(t *testing.T) {
	tr := newTestRoot(t, "")
	err := tr.root.Run(nil)
	var uerr *UsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UsageError, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"Usage: labelshot", "annotate", "-config", "-notify-save"} {
		if !strings.Contains(msg, want) {
			t.Errorf("root help missing %q:\n%s", want, msg)
		}
	}
}

func TestSubcommandUsage(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"merge"}, "merge [flags] <payload.json>"},
		{[]string{"render"}, "render [flags] <image>"},
		{[]string{"preview"}, "preview [flags] <image>"},
		{[]string{"config"}, "<print|save|path>"},
		{[]string{"watch"}, "-broker"},
		{[]string{"merge", "-h"}, "-annotations"},
		{[]string{"lasso"}, "Commands:"},
	}
	for _, c := range cases {
		tr := newTestRoot(t, "")
		err := tr.run(c.args...)
		var uerr *UsageError
		if !errors.As(err, &uerr) {
			t.Fatalf("%v: expected UsageError, got %v", c.args, err)
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%v: help missing %q:\n%s", c.args, c.want, err.Error())
		}
	}
}

func TestSplitSource(t *testing.T) {
	for _, args := range [][]string{
		{"img.png", "-output", "x"},
		{"-output", "x", "img.png"},
	} {
		rc, err := parseRenderCmd(args, newTestRoot(t, "").root)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if rc.source != "img.png" || rc.output != "x" {
			t.Errorf("%v: got source %q output %q", args, rc.source, rc.output)
		}
	}
}

func TestMergeCommand(t *testing.T) {
	tr := newTestRoot(t, "[classes]\nperson = #123456\n")
	payload := tr.write(t, "payload.json", personPayload)
	out := filepath.Join(tr.dir, "out", "annotations.json")

	if err := tr.run("merge", "-annotations", out, payload); err != nil {
		t.Fatalf("merge: %v", err)
	}
	list, err := annotation.ReadFile(out)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(list))
	}
	a := list[0]
	if a.Label != "person" || !a.AIGenerated || a.Color != "#123456" {
		t.Errorf("unexpected annotation %+v", a)
	}
	if b, ok := a.Shape.(annotation.Bbox); !ok || b.Box.Width != 18 || b.Box.Height != 14 {
		t.Errorf("unexpected shape %#v", a.Shape)
	}
	got := tr.stdout.String()
	if !strings.Contains(got, "merged 1 annotations (1 skipped)") {
		t.Errorf("summary missing: %q", got)
	}
	if !strings.Contains(got, "suggested tags: outdoor, street") {
		t.Errorf("tags missing: %q", got)
	}

	// Merging again appends rather than replacing.
	if err := tr.run("merge", "-annotations", out, payload); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	list, err = annotation.ReadFile(out)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 annotations after second merge, got %d", len(list))
	}
}

func TestMergeFromStdin(t *testing.T) {
	old := stdin
	stdin = strings.NewReader(personPayload)
	t.Cleanup(func() { stdin = old })

	tr := newTestRoot(t, "")
	out := filepath.Join(tr.dir, "a.json")
	if err := tr.run("merge", "-output", out, "-"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	list, err := annotation.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(list) != 1 || list[0].Color != "#FF0000" {
		t.Fatalf("unexpected result %+v", list)
	}
}

func TestRenderCommand(t *testing.T) {
	tr := newTestRoot(t, "")
	img := tr.writePNG(t, "photo.png", 40, 30)
	payload := tr.write(t, "payload.json", personPayload)
	out := filepath.Join(tr.dir, "out.png")
	saved := filepath.Join(tr.dir, "saved.json")

	if err := tr.run("render", "-ai", payload, "-output", out, "-save-annotations", saved, "-max-width", "20", img); err != nil {
		t.Fatalf("render: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	res, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := res.Bounds(); b.Dx() != 20 || b.Dy() != 15 {
		t.Errorf("expected 20x15 output, got %v", b)
	}
	list, err := annotation.ReadFile(saved)
	if err != nil || len(list) != 1 {
		t.Fatalf("saved annotations: %v %d", err, len(list))
	}
	if !strings.Contains(tr.stdout.String(), "1 annotations") {
		t.Errorf("unexpected output %q", tr.stdout.String())
	}
}

func TestRenderShadow(t *testing.T) {
	tr := newTestRoot(t, "")
	img := tr.writePNG(t, "photo.png", 40, 30)
	out := filepath.Join(tr.dir, "shadow.png")
	if err := tr.run("render", "-shadow", "-output", out, img); err != nil {
		t.Fatalf("render: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	res, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := res.Bounds(); b.Dx() <= 40 || b.Dy() <= 30 {
		t.Errorf("shadow should enlarge the canvas, got %v", b)
	}
}

func TestRenderMissingImage(t *testing.T) {
	tr := newTestRoot(t, "")
	err := tr.run("render", filepath.Join(tr.dir, "missing.png"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestAnnotatedName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":                     "photo-annotated.png",
		"/tmp/shots/a.b.png":            "a.b-annotated.png",
		"https://host/img/cat.webp?x=1": "cat-annotated.png",
		"/":                             "image-annotated.png",
	}
	for in, want := range cases {
		if got := annotatedName(in); got != want {
			t.Errorf("annotatedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassesCommand(t *testing.T) {
	tr := newTestRoot(t, "[classes]\nkite = #00FF00\n")
	colors := tr.write(t, "colors.yaml", "classes:\n  kite: \"#0000FF\"\n  drone: \"#ABCDEF\"\nfallback: \"#111111\"\n")

	if err := tr.run("-colors", colors, "classes"); err != nil {
		t.Fatalf("classes: %v", err)
	}
	out := tr.stdout.String()
	for _, want := range []string{"person", "#FF0000", "kite", "#0000FF", "drone", "(other)", "#111111"} {
		if !strings.Contains(out, want) {
			t.Errorf("classes output missing %q:\n%s", want, out)
		}
	}

	tr.stdout.Reset()
	if err := tr.run("classes", "-yaml"); err != nil {
		t.Fatalf("classes -yaml: %v", err)
	}
	cc, err := aimerge.LoadClassColors(strings.NewReader(tr.stdout.String()))
	if err != nil {
		t.Fatalf("reload yaml: %v", err)
	}
	if got := cc.Lookup("drone"); got != "#ABCDEF" {
		t.Errorf("drone = %q", got)
	}
}

func TestConfigPrintAndSave(t *testing.T) {
	tr := newTestRoot(t, "save_dir = /tmp/labels\n[editor]\ntool = polygon\n")
	if err := tr.run("config", "print"); err != nil {
		t.Fatalf("config print: %v", err)
	}
	out := tr.stdout.String()
	if !strings.Contains(out, "save_dir = /tmp/labels") || !strings.Contains(out, "tool = polygon") {
		t.Fatalf("unexpected config output:\n%s", out)
	}

	dest := filepath.Join(tr.dir, "saved", "config.rc")
	if err := tr.run("config", "-output", dest, "save"); err != nil {
		t.Fatalf("config save: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if string(data) != out {
		t.Errorf("saved config differs from print:\n%s\nvs\n%s", data, out)
	}

	if err := tr.run("config", "frobnicate"); err == nil {
		t.Errorf("expected error for unknown config command")
	}
}

func TestNotifyFlagsOverrideConfig(t *testing.T) {
	tr := newTestRoot(t, "[notify]\nsave = true\nmerge = true\n")
	if err := tr.run("-notify-merge=false", "version"); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !tr.saveAlerts || tr.mergeAlerts || tr.copyAlerts {
		t.Errorf("alerts save=%v merge=%v copy=%v", tr.saveAlerts, tr.mergeAlerts, tr.copyAlerts)
	}
	if !strings.Contains(tr.stdout.String(), "labelshot version "+version) {
		t.Errorf("unexpected version output %q", tr.stdout.String())
	}
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	l := initLogger(&buf, false, false)
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug message logged at info level: %q", buf.String())
	}

	buf.Reset()
	l = initLogger(&buf, true, true)
	l.WithField("k", "v").Debug("shown")
	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["level"] != "debug" || entry["k"] != "v" {
		t.Errorf("unexpected entry %v", entry)
	}
}

type fakeDetector struct {
	payload aimerge.Payload
	got     image.Rectangle
}

func (d *fakeDetector) Detect(_ context.Context, img image.Image) (aimerge.Payload, error) {
	d.got = img.Bounds()
	return d.payload, nil
}

func TestAnalyzeCommand(t *testing.T) {
	p, err := aimerge.DecodePayload(strings.NewReader(personPayload))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	det := &fakeDetector{payload: p}
	old := newPayloadDetector
	newPayloadDetector = func(*root, ollamaFlags) (ui.Detector, error) { return det, nil }
	t.Cleanup(func() { newPayloadDetector = old })

	tr := newTestRoot(t, "[ollama]\nmodel = llava:13b\n")
	img := tr.writePNG(t, "photo.png", 32, 24)
	ann := filepath.Join(tr.dir, "ann.json")
	if err := tr.run("analyze", "-merge", ann, img); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if det.got.Dx() != 32 || det.got.Dy() != 24 {
		t.Errorf("detector saw %v", det.got)
	}
	printed, err := aimerge.DecodePayload(strings.NewReader(tr.stdout.String()))
	if err != nil {
		t.Fatalf("stdout is not a payload: %v\n%s", err, tr.stdout.String())
	}
	if len(printed.Detections) != 2 {
		t.Errorf("expected 2 detections printed, got %d", len(printed.Detections))
	}
	list, err := annotation.ReadFile(ann)
	if err != nil || len(list) != 1 {
		t.Fatalf("merged annotations: %v %d", err, len(list))
	}
}

func TestAnalyzeModelDefaultsFromConfig(t *testing.T) {
	tr := newTestRoot(t, "[ollama]\nmodel = llava:13b\nurl = http://gpu:11434\n")
	if err := tr.run("version"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	c, err := parseAnalyzeCmd([]string{"x.png"}, tr.root)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.ollama.model != "llava:13b" || c.ollama.url != "http://gpu:11434" {
		t.Errorf("got %+v", c.ollama)
	}
	c, err = parseAnalyzeCmd([]string{"-model", "bakllava", "x.png"}, tr.root)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.ollama.model != "bakllava" {
		t.Errorf("flag did not override config: %+v", c.ollama)
	}
}

func TestWatchCommand(t *testing.T) {
	tr := newTestRoot(t, "")
	payload := tr.write(t, "payload.json", personPayload)
	old := newSubscriber
	newSubscriber = func(*root, mqttFlags) (ui.Subscriber, error) {
		return payloadFiles{payload, payload}, nil
	}
	t.Cleanup(func() { newSubscriber = old })

	ann := filepath.Join(tr.dir, "watched.json")
	if err := tr.run("watch", "-count", "2", ann); err != nil {
		t.Fatalf("watch: %v", err)
	}
	list, err := annotation.ReadFile(ann)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(list))
	}
	if n := strings.Count(tr.stdout.String(), "merged 1"); n != 2 {
		t.Errorf("expected 2 merge lines, got %d:\n%s", n, tr.stdout.String())
	}
}

func TestAnnotateBuildsEditor(t *testing.T) {
	var got *ui.App
	old := runApp
	runApp = func(a *ui.App) { got = a }
	t.Cleanup(func() { runApp = old })

	tr := newTestRoot(t, "[editor]\ndefault_label = sign\nmin_box_size = 3\n")
	existing := filepath.Join(tr.dir, "existing.json")
	store := annotation.NewStore()
	store.Create(annotation.Spec{Label: "door", Color: "#00FF00", Shape: annotation.PointMark{Point: annotation.Point{X: 1, Y: 1}}})
	if err := annotation.WriteFile(existing, store.List()); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := tr.run("annotate", "-tool", "polygon", "-color", "#0000FF", "-annotations", existing, "photo.png"); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if got == nil {
		t.Fatalf("app not started")
	}
	ed := got.Editor()
	st := ed.State()
	if st.Tool != editor.ToolPolygon || st.Label != "sign" || st.Color != "#0000FF" {
		t.Errorf("unexpected state %+v", st)
	}
	if ed.MinBoxSize() != 3 || ed.ReadOnly() {
		t.Errorf("min box %v read-only %v", ed.MinBoxSize(), ed.ReadOnly())
	}
	if ed.Store().Len() != 1 {
		t.Errorf("expected existing annotation loaded, got %d", ed.Store().Len())
	}

	if err := tr.run("annotate", "-tool", "lasso", "photo.png"); err == nil {
		t.Errorf("expected error for unknown tool")
	}
}

func TestPreviewIsReadOnly(t *testing.T) {
	var got *ui.App
	old := runApp
	runApp = func(a *ui.App) { got = a }
	t.Cleanup(func() { runApp = old })

	tr := newTestRoot(t, "")
	if err := tr.run("preview", "photo.png"); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got == nil || !got.Editor().ReadOnly() {
		t.Fatalf("preview editor should be read-only")
	}
	if err := tr.run("preview", "-tool", "bbox", "photo.png"); err == nil {
		t.Errorf("preview should not accept drawing flags")
	}
}

func TestInteractive(t *testing.T) {
	old := stdin
	stdin = strings.NewReader("\nclasses\nbogus\nexit\nversion\n")
	t.Cleanup(func() { stdin = old })

	tr := newTestRoot(t, "")
	if err := tr.run("interactive"); err != nil {
		t.Fatalf("interactive: %v", err)
	}
	out := tr.stdout.String()
	if !strings.Contains(out, "person") {
		t.Errorf("classes did not run:\n%s", out)
	}
	if strings.Contains(out, "labelshot version") {
		t.Errorf("commands after exit ran:\n%s", out)
	}
	if !strings.Contains(tr.stderr.String(), "Commands:") {
		t.Errorf("bogus command should print usage to stderr:\n%s", tr.stderr.String())
	}
}
