// Package editor is the annotation editor controller. It owns the store, the
// viewport mapping and the renderer, and drives them from pointer and
// keyboard events. An Editor is used from a single goroutine.
package editor

import (
	"errors"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/render"
	"github.com/example/labelshot/internal/viewport"
)

// DefaultMinBoxSize is the smallest box side, in image pixels, a drag must
// reach to create an annotation.
const DefaultMinBoxSize = 5.0

// hitSlop is the point mark pick radius in screen pixels.
const hitSlop = 8.0

// Editor is the controller of one annotation session.
type Editor struct {
	store    *annotation.Store
	mapper   viewport.Mapper
	renderer *render.Renderer
	merger   *aimerge.Merger
	log      logrus.FieldLogger

	state      EditorState
	minBox     float64
	readOnly   bool
	img        image.Image
	frame      *image.RGBA
	containerW int
	containerH int

	storeOpts   []annotation.StoreOption
	listener    annotation.Listener
	onApplyTags func(aimerge.SuggestedTags)
	onFrame     func(*image.RGBA)
	onLoadError func(error)
}

// Option configures an Editor.
type Option func(*Editor)

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

func WithRenderer(r *render.Renderer) Option { return func(e *Editor) { e.renderer = r } }
func WithMerger(m *aimerge.Merger) Option { return func(e *Editor) { e.merger = m } }

// WithMinBoxSize sets the box size threshold. Values <= 0 are ignored.
func WithMinBoxSize(v float64) Option {
	return func(e *Editor) {
		if v > 0 {
			e.minBox = v
		}
	}
}

// WithReadOnly disables every operation that changes annotations.
func WithReadOnly(ro bool) Option { return func(e *Editor) { e.readOnly = ro } }

func WithTool(t Tool) Option { return func(e *Editor) { e.state.Tool = t } }
func WithLabel(l string) Option { return func(e *Editor) { e.state.Label = l } }
func WithColor(c string) Option { return func(e *Editor) { e.state.Color = c } }
func WithContainer(w, h int) Option { return func(e *Editor) { e.containerW, e.containerH = w, h } }

// WithListener registers store change callbacks.
func WithListener(l annotation.Listener) Option { return func(e *Editor) { e.listener = l } }

// WithStoreOptions passes options to the underlying store.
func WithStoreOptions(opts ...annotation.StoreOption) Option {
	return func(e *Editor) { e.storeOpts = append(e.storeOpts, opts...) }
}

// WithOnApplyTags receives tag suggestions from merged AI results.
func WithOnApplyTags(fn func(aimerge.SuggestedTags)) Option {
	return func(e *Editor) { e.onApplyTags = fn }
}

// WithOnFrame receives the canvas after each redraw. The image is reused by
// the next redraw.
func WithOnFrame(fn func(*image.RGBA)) Option { return func(e *Editor) { e.onFrame = fn } }

func WithOnLoadError(fn func(error)) Option { return func(e *Editor) { e.onLoadError = fn } }

// New creates an Editor. It stays uninitialized until ImageLoaded.
func New(opts ...Option) *Editor {
	e := &Editor{
		minBox: DefaultMinBoxSize,
		log:    logrus.StandardLogger(),
		state:  EditorState{Tool: ToolSelect, Color: annotation.DefaultColor},
	}
	for _, o := range opts {
		o(e)
	}
	if e.renderer == nil {
		e.renderer = render.New()
	}
	if e.merger == nil {
		e.merger = aimerge.New(aimerge.WithLogger(e.log))
	}
	if e.readOnly {
		e.state.Tool = ToolSelect
	}
	e.store = annotation.NewStore(append(e.storeOpts, annotation.WithListener(e.listener))...)
	return e
}

// Store returns the annotation store.
func (e *Editor) Store() *annotation.Store { return e.store }

// State returns a copy of the interaction state.
func (e *Editor) State() EditorState { return e.state.clone() }

// Ready reports whether an image has been loaded.
func (e *Editor) Ready() bool { return e.img != nil && e.mapper.Ready() }

// ReadOnly reports whether editing is disabled.
func (e *Editor) ReadOnly() bool { return e.readOnly }

// MinBoxSize returns the box size threshold.
func (e *Editor) MinBoxSize() float64 { return e.minBox }

// Image returns the loaded image or nil.
func (e *Editor) Image() image.Image { return e.img }

// Frame returns the last rendered canvas.
func (e *Editor) Frame() *image.RGBA { return e.frame }

// Scale returns the current viewport scale.
func (e *Editor) Scale() float64 { return e.mapper.Scale() }

// ImageLoaded finishes initialization with the decoded image: the viewport
// is fitted and the first frame is drawn.
func (e *Editor) ImageLoaded(img image.Image) {
	if img == nil || img.Bounds().Empty() {
		e.LoadFailed(errors.New("empty image"))
		return
	}
	e.img = img
	b := img.Bounds()
	cw, ch := e.containerW, e.containerH
	if cw <= 0 || ch <= 0 {
		cw, ch = b.Dx(), b.Dy()
		e.containerW, e.containerH = cw, ch
	}
	scale := e.mapper.Fit(float64(b.Dx()), float64(b.Dy()), float64(cw), float64(ch))
	e.state.resetDraft()
	e.state.Cursor = nil
	e.log.WithFields(logrus.Fields{"width": b.Dx(), "height": b.Dy(), "scale": scale}).Debug("image loaded")
	e.Redraw()
}

// LoadFailed reports an image load error. The editor state is unchanged.
func (e *Editor) LoadFailed(err error) {
	e.log.WithError(err).Warn("image load failed")
	if e.onLoadError != nil {
		e.onLoadError(err)
	}
}

// Resize sets the canvas size and redraws. Annotation geometry is unchanged.
func (e *Editor) Resize(w, h int) {
	e.containerW, e.containerH = w, h
	e.mapper.Resize(float64(w), float64(h))
	e.Redraw()
}

// Pan moves the image by screen pixels.
func (e *Editor) Pan(dx, dy float64) {
	if e.mapper.Pan(dx, dy) == nil {
		e.Redraw()
	}
}

// Zoom scales the view by factor.
func (e *Editor) Zoom(factor float64) {
	if e.mapper.Zoom(factor) == nil {
		e.Redraw()
	}
}

// ScreenToImage converts a canvas position to image pixels.
func (e *Editor) ScreenToImage(x, y float64) (annotation.Point, error) {
	return e.mapper.ScreenToImage(x, y)
}

// SetTool switches tools and drops any shape under construction.
func (e *Editor) SetTool(t Tool) {
	if e.readOnly && t != ToolSelect {
		return
	}
	e.state.Tool = t
	e.state.resetDraft()
	e.Redraw()
}

// SetLabel sets the label given to new annotations.
func (e *Editor) SetLabel(l string) { e.state.Label = l }

// SetColor sets the colour given to new annotations.
func (e *Editor) SetColor(c string) {
	e.state.Color = c
	if e.state.Drawing() {
		e.Redraw()
	}
}

// Load adds existing annotations, typically read from a file.
func (e *Editor) Load(list []annotation.Annotation) int {
	n := e.store.Load(list)
	e.Redraw()
	return n
}

// Select selects an annotation by id. Unknown ids clear the selection.
func (e *Editor) Select(id string) {
	e.store.Select(id)
	e.Redraw()
}

// UpdateSelected applies patch to the selected annotation.
func (e *Editor) UpdateSelected(patch annotation.Patch) (annotation.Annotation, error) {
	if e.readOnly {
		return annotation.Annotation{}, errReadOnly
	}
	id := e.store.SelectedID()
	if id == "" {
		return annotation.Annotation{}, annotation.ErrNotFound
	}
	a, err := e.store.Update(id, patch)
	if err != nil {
		return a, err
	}
	e.Redraw()
	return a, nil
}

// DeleteSelected deletes the selected annotation, if any.
func (e *Editor) DeleteSelected() {
	if e.readOnly {
		return
	}
	id := e.store.SelectedID()
	if id == "" {
		return
	}
	e.store.Delete(id)
	e.log.WithField("id", id).Debug("annotation deleted")
	e.Redraw()
}

// Cancel drops the shape under construction and clears the selection.
func (e *Editor) Cancel() {
	e.state.resetDraft()
	e.store.Select("")
	e.Redraw()
}

// MergeAI adds the annotations of an analysis result and forwards its tag
// suggestions.
func (e *Editor) MergeAI(p aimerge.Payload) aimerge.Result {
	if e.readOnly {
		return aimerge.Result{}
	}
	res := e.merger.Merge(e.store, p)
	if res.Tags != nil && e.onApplyTags != nil {
		e.onApplyTags(*res.Tags)
	}
	e.Redraw()
	return res
}

// Scene returns what the next frame will show.
func (e *Editor) Scene() render.Scene {
	sc := render.Scene{
		Image:       e.img,
		View:        &e.mapper,
		Annotations: e.store.List(),
		SelectedID:  e.store.SelectedID(),
		Draft:       render.Draft{Color: e.state.Color},
	}
	if e.state.Drag != nil {
		r := e.state.Drag.Rect()
		sc.Draft.Rect = &r
	}
	if len(e.state.Pending) > 0 {
		sc.Draft.Points = append([]annotation.Point(nil), e.state.Pending...)
		if e.state.Cursor != nil {
			c := *e.state.Cursor
			sc.Draft.Cursor = &c
		}
	}
	return sc
}

// Redraw renders a complete frame. It does nothing before an image is loaded.
func (e *Editor) Redraw() {
	if !e.Ready() || e.containerW <= 0 || e.containerH <= 0 {
		return
	}
	r := image.Rect(0, 0, e.containerW, e.containerH)
	if e.frame == nil || e.frame.Bounds() != r {
		e.frame = image.NewRGBA(r)
	}
	if err := e.renderer.Render(e.frame, e.Scene()); err != nil {
		e.log.WithError(err).Debug("render skipped")
		return
	}
	if e.onFrame != nil {
		e.onFrame(e.frame)
	}
}

var errReadOnly = errors.New("editor is read-only")
