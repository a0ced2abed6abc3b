// Package ui is the desktop front end: a shiny window with a tool bar, a
// label field and a status bar around the editor canvas. All editor calls
// happen on the window's event goroutine; background work posts events back
// with Window.Send.
package ui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/colornames"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/editor"
	"github.com/example/labelshot/internal/feed"
	"github.com/example/labelshot/internal/imageload"
	"github.com/example/labelshot/internal/notify"
	"github.com/example/labelshot/internal/render"
	"github.com/example/labelshot/internal/theme"
)

// Detector produces an analysis payload for an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (aimerge.Payload, error)
}

// Subscriber delivers analysis payloads as they arrive.
type Subscriber interface {
	Subscribe(ctx context.Context, h feed.Handler) error
}

type loadedEvent imageload.Result

type aiEvent struct {
	source  string
	payload aimerge.Payload
	err     error
}

var paletteNames = []string{"red", "lime", "blue", "yellow", "cyan", "magenta", "orange", "purple", "white", "black", "gray", "brown"}

// App holds the window state around one editor.
type App struct {
	source     string
	output     string
	saveDir    string
	initial    []annotation.Annotation
	theme      *theme.Theme
	editorOpts []editor.Option
	notifier   *notify.Notifier
	detector   Detector
	feed       Subscriber
	log        logrus.FieldLogger
	onTags     func(aimerge.SuggestedTags)
	onClose    func()

	ed       *editor.Editor
	exporter *render.Renderer
	ctx      context.Context
	send     func(event interface{})
	now      func() time.Time

	width, height int
	clicks        clickTracker
	captured      bool
	panFrom       *image.Point

	buttons     []*CacheButton
	hoverButton int
	swatches    []swatch
	shortcuts   []Shortcut
	keys        map[KeyShortcut]string
	actions     map[string]func()

	labelEditing bool
	labelText    []rune
	tags         []string
	pending      []aiEvent
	message      string
	messageUntil time.Time
	quit         bool
}

// Option modifies an App during creation.
type Option func(*App)

// WithOutput sets the annotation file written by save.
func WithOutput(path string) Option { return func(a *App) { a.output = path } }

// WithSaveDir sets the directory for saves when no output is set.
func WithSaveDir(dir string) Option { return func(a *App) { a.saveDir = dir } }

// WithAnnotations preloads existing annotations.
func WithAnnotations(list []annotation.Annotation) Option {
	return func(a *App) { a.initial = list }
}

func WithTheme(t *theme.Theme) Option {
	return func(a *App) {
		if t != nil {
			a.theme = t
		}
	}
}

// WithEditorOptions configures the embedded editor.
func WithEditorOptions(opts ...editor.Option) Option {
	return func(a *App) { a.editorOpts = append(a.editorOpts, opts...) }
}

func WithNotifier(n *notify.Notifier) Option { return func(a *App) { a.notifier = n } }

// WithDetector enables the detect action.
func WithDetector(d Detector) Option { return func(a *App) { a.detector = d } }

// WithFeed merges payloads from a connected analysis feed.
func WithFeed(s Subscriber) Option { return func(a *App) { a.feed = s } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithDoubleClick sets the double-click window.
func WithDoubleClick(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.clicks.window = d
		}
	}
}

// WithSize sets the initial window size.
func WithSize(w, h int) Option {
	return func(a *App) {
		if w > 0 && h > 0 {
			a.width, a.height = w, h
		}
	}
}

// WithOnApplyTags receives tag suggestions from merged analysis results.
func WithOnApplyTags(fn func(aimerge.SuggestedTags)) Option {
	return func(a *App) { a.onTags = fn }
}

// WithOnClose registers a callback invoked when the window closes.
func WithOnClose(fn func()) Option { return func(a *App) { a.onClose = fn } }

// New creates an App that shows the image at source.
func New(source string, opts ...Option) *App {
	a := &App{
		source:      source,
		theme:       theme.Default(),
		log:         logrus.StandardLogger(),
		ctx:         context.Background(),
		send:        func(interface{}) {},
		now:         time.Now,
		width:       1024,
		height:      768,
		clicks:      clickTracker{window: DefaultDoubleClick},
		hoverButton: -1,
	}
	for _, o := range opts {
		o(a)
	}
	canvas := a.canvasRect()
	eopts := append([]editor.Option{
		editor.WithLogger(a.log),
		editor.WithRenderer(render.New(render.WithTheme(a.theme))),
		editor.WithContainer(canvas.Dx(), canvas.Dy()),
	}, a.editorOpts...)
	eopts = append(eopts,
		editor.WithOnApplyTags(a.applyTags),
		editor.WithOnLoadError(func(err error) { a.flash("load failed: %v", err) }),
	)
	a.ed = editor.New(eopts...)
	a.exporter = render.New(render.WithTheme(a.theme))
	if len(a.initial) > 0 {
		n := a.ed.Load(a.initial)
		a.log.WithFields(logrus.Fields{"loaded": n, "given": len(a.initial)}).Info("annotations loaded")
	}
	a.labelText = []rune(a.ed.State().Label)
	for _, name := range paletteNames {
		c := colornames.Map[name]
		a.swatches = append(a.swatches, swatch{name: name, hex: annotation.FormatColor(color.NRGBA(c)), col: c})
	}
	a.configure()
	a.layout()
	return a
}

// Editor returns the embedded editor.
func (a *App) Editor() *editor.Editor { return a.ed }

// Run executes the UI loop using shiny's driver.
func (a *App) Run() { driver.Main(a.Main) }

// Main runs the window until it is closed.
func (a *App) Main(s screen.Screen) {
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: a.width, Height: a.height, Title: "labelshot"})
	if err != nil {
		a.log.WithError(err).Error("new window")
		return
	}
	defer w.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		if a.onClose != nil {
			a.onClose()
		}
	}()
	a.ctx = ctx
	a.send = w.Send
	a.start(ctx)

	for {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return
			}
		case size.Event:
			a.resize(e.WidthPx, e.HeightPx)
			w.Send(paint.Event{})
		case paint.Event:
			a.paint(s, w)
		case loadedEvent:
			a.imageLoaded(imageload.Result(e))
			w.Send(paint.Event{})
		case aiEvent:
			a.merge(e)
			w.Send(paint.Event{})
		case key.Event:
			if a.handleKey(e) {
				w.Send(paint.Event{})
			}
			if a.quit {
				return
			}
		case mouse.Event:
			if a.handleMouse(e) {
				w.Send(paint.Event{})
			}
		case error:
			a.log.WithError(e).Error("window")
		}
	}
}

func (a *App) start(ctx context.Context) {
	a.log.WithField("source", a.source).Info("loading image")
	imageload.Load(ctx, a.source, func(r imageload.Result) { a.send(loadedEvent(r)) })
	if a.feed != nil {
		go func() {
			err := a.feed.Subscribe(ctx, func(topic string, p aimerge.Payload) {
				a.send(aiEvent{source: topic, payload: p})
			})
			if err != nil {
				a.send(aiEvent{source: "feed", err: err})
			}
		}()
	}
}

func (a *App) imageLoaded(r imageload.Result) {
	if r.Err != nil {
		a.ed.LoadFailed(r.Err)
		return
	}
	a.ed.ImageLoaded(r.Image)
	b := r.Image.Bounds()
	a.flash("%s %dx%d", r.Source, b.Dx(), b.Dy())
	queued := a.pending
	a.pending = nil
	for _, e := range queued {
		a.merge(e)
	}
}

func (a *App) merge(e aiEvent) {
	if e.err != nil {
		a.log.WithError(e.err).WithField("source", e.source).Warn("analysis failed")
		a.flash("%s: %v", e.source, e.err)
		return
	}
	if !a.ed.Ready() {
		a.pending = append(a.pending, e)
		a.flash("analysis from %s queued until the image loads", e.source)
		return
	}
	res := a.ed.MergeAI(e.payload)
	a.notifier.Merge(len(res.Created), res.Skipped)
	a.flash("merged %d from %s (%d skipped)", len(res.Created), e.source, res.Skipped)
}

func (a *App) applyTags(t aimerge.SuggestedTags) {
	a.tags = t.All()
	if a.onTags != nil {
		a.onTags(t)
	}
}

func (a *App) resize(w, h int) {
	a.width, a.height = w, h
	a.layout()
	canvas := a.canvasRect()
	a.ed.Resize(canvas.Dx(), canvas.Dy())
}

func (a *App) canvasRect() image.Rectangle {
	return image.Rect(toolbarWidth, headerHeight,
		max(a.width, toolbarWidth+1), max(a.height-statusHeight, headerHeight+1))
}

func (a *App) flash(format string, args ...interface{}) {
	a.message = fmt.Sprintf(format, args...)
	a.messageUntil = a.now().Add(2 * time.Second)
	a.log.Debug(a.message)
}

// handleKey returns true when the window needs a repaint.
func (a *App) handleKey(e key.Event) bool {
	if e.Direction != key.DirPress {
		return false
	}
	if a.labelEditing {
		text, done, commit := editLine(a.labelText, e)
		a.labelText = text
		if done {
			a.labelEditing = false
			if commit {
				a.commitLabel()
			} else {
				a.labelText = []rune(a.ed.State().Label)
			}
		}
		return true
	}
	name, ok := lookupShortcut(a.keys, e)
	if !ok {
		return false
	}
	a.trigger(name)
	return true
}

func (a *App) trigger(name string) {
	if fn, ok := a.actions[name]; ok {
		fn()
	}
}

// handleMouse routes a pointer event to the canvas or the chrome and
// returns true when the window needs a repaint.
func (a *App) handleMouse(e mouse.Event) bool {
	p := image.Pt(int(e.X), int(e.Y))
	canvas := a.canvasRect()

	if e.Button.IsWheel() {
		if e.Direction == mouse.DirStep || e.Direction == mouse.DirPress {
			switch e.Button {
			case mouse.ButtonWheelUp:
				a.ed.Zoom(1.1)
			case mouse.ButtonWheelDown:
				a.ed.Zoom(1 / 1.1)
			}
			return true
		}
		return false
	}

	if e.Button == mouse.ButtonMiddle || a.panFrom != nil {
		switch {
		case e.Button == mouse.ButtonMiddle && e.Direction == mouse.DirPress:
			a.panFrom = &p
			return false
		case e.Button == mouse.ButtonMiddle && e.Direction == mouse.DirRelease:
			a.panFrom = nil
			return false
		case e.Direction == mouse.DirNone && a.panFrom != nil:
			a.ed.Pan(float64(p.X-a.panFrom.X), float64(p.Y-a.panFrom.Y))
			a.panFrom = &p
			return true
		}
	}

	if a.captured || p.In(canvas) {
		return a.canvasMouse(e, canvas)
	}

	if e.Direction == mouse.DirPress && a.message != "" && a.now().Before(a.messageUntil) {
		a.messageUntil = time.Time{}
	}

	hover := -1
	for i, b := range a.buttons {
		if p.In(b.Rect()) {
			hover = i
			if e.Button == mouse.ButtonLeft && e.Direction == mouse.DirPress {
				b.Activate()
				return true
			}
		}
	}
	changed := hover != a.hoverButton
	a.hoverButton = hover
	if e.Button != mouse.ButtonLeft || e.Direction != mouse.DirPress {
		return changed
	}
	for _, sw := range a.swatches {
		if p.In(sw.rect) {
			a.pickColor(sw.hex)
			return true
		}
	}
	for _, sc := range a.shortcuts {
		if p.In(sc.rect) {
			a.trigger(sc.action)
			return true
		}
	}
	if p.Y < headerHeight && p.X >= toolbarWidth && !a.ed.ReadOnly() {
		a.beginLabelEdit()
		return true
	}
	return changed
}

func (a *App) canvasMouse(e mouse.Event, canvas image.Rectangle) bool {
	x := float64(e.X) - float64(canvas.Min.X)
	y := float64(e.Y) - float64(canvas.Min.Y)
	switch {
	case e.Button == mouse.ButtonLeft && e.Direction == mouse.DirPress:
		a.captured = true
		if a.clicks.press(x, y, a.now()) {
			return a.ed.Handle(editor.DoubleClick{X: x, Y: y})
		}
		return a.ed.Handle(editor.PointerDown{X: x, Y: y})
	case e.Button == mouse.ButtonLeft && e.Direction == mouse.DirRelease:
		a.captured = false
		return a.ed.Handle(editor.PointerUp{X: x, Y: y})
	case e.Direction == mouse.DirNone:
		return a.ed.Handle(editor.PointerMove{X: x, Y: y})
	}
	return false
}

func (a *App) pickColor(hex string) {
	a.ed.SetColor(hex)
	if a.ed.ReadOnly() || a.ed.Store().SelectedID() == "" {
		return
	}
	if _, err := a.ed.UpdateSelected(annotation.Patch{Color: &hex}); err != nil {
		a.flash("recolor: %v", err)
	}
}

func (a *App) beginLabelEdit() {
	a.labelEditing = true
	if sel, ok := a.ed.Store().Selected(); ok {
		a.labelText = []rune(sel.Label)
	}
}

// commitLabel sets the label for new annotations and relabels the
// selection.
func (a *App) commitLabel() {
	label := string(a.labelText)
	a.ed.SetLabel(label)
	if a.ed.ReadOnly() || a.ed.Store().SelectedID() == "" {
		return
	}
	if _, err := a.ed.UpdateSelected(annotation.Patch{Label: &label}); err != nil {
		a.flash("relabel: %v", err)
	}
}

func (a *App) paint(s screen.Screen, w screen.Window) {
	b, err := s.NewBuffer(image.Point{a.width, a.height})
	if err != nil {
		a.log.WithError(err).Error("new buffer")
		return
	}
	defer b.Release()
	a.compose(b.RGBA())
	w.Upload(image.Point{}, b, b.Bounds())
	w.Publish()
}
