package ui

import (
	"bytes"
	"image"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/mobile/event/key"

	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/clipboard"
	"github.com/example/labelshot/internal/editor"
)

var toolLabels = map[editor.Tool]string{
	editor.ToolSelect:  "V:Select",
	editor.ToolBbox:    "B:Box",
	editor.ToolPolygon: "P:Polygon",
	editor.ToolPoint:   "O:Point",
}

var toolRunes = map[editor.Tool]rune{
	editor.ToolSelect:  'v',
	editor.ToolBbox:    'b',
	editor.ToolPolygon: 'p',
	editor.ToolPoint:   'o',
}

// configure builds the buttons, the action table and the key bindings.
// Read-only sessions only get selection and non-mutating actions.
func (a *App) configure() {
	a.actions = map[string]func(){}
	a.keys = map[KeyShortcut]string{}
	a.buttons = nil

	register := func(name string, fn func(), keys ...KeyShortcut) {
		a.actions[name] = fn
		for _, k := range keys {
			a.keys[k] = name
		}
	}
	button := func(label string, action string, active func() bool) {
		a.buttons = append(a.buttons, &CacheButton{Button: &ActionButton{
			label:      label,
			theme:      a.theme,
			active:     active,
			onActivate: func() { a.trigger(action) },
		}})
	}

	readOnly := a.ed.ReadOnly()
	for _, t := range editor.Tools() {
		if readOnly && t != editor.ToolSelect {
			continue
		}
		tool := t
		name := "tool." + string(tool)
		register(name, func() { a.ed.SetTool(tool); a.clicks.reset() }, KeyShortcut{Rune: toolRunes[tool]})
		button(toolLabels[tool], name, func() bool { return a.ed.State().Tool == tool })
	}

	register("cancel", func() { a.ed.Handle(editor.Key{Code: editor.KeyEscape}) }, KeyShortcut{Code: key.CodeEscape})
	register("pan.left", func() { a.ed.Pan(40, 0) }, KeyShortcut{Code: key.CodeLeftArrow})
	register("pan.right", func() { a.ed.Pan(-40, 0) }, KeyShortcut{Code: key.CodeRightArrow})
	register("pan.up", func() { a.ed.Pan(0, 40) }, KeyShortcut{Code: key.CodeUpArrow})
	register("pan.down", func() { a.ed.Pan(0, -40) }, KeyShortcut{Code: key.CodeDownArrow})
	register("zoom.in", func() { a.ed.Zoom(1.25) }, KeyShortcut{Rune: '+'}, KeyShortcut{Rune: '='}, KeyShortcut{Code: key.CodeKeypadPlusSign})
	register("zoom.out", func() { a.ed.Zoom(0.8) }, KeyShortcut{Rune: '-'}, KeyShortcut{Code: key.CodeKeypadHyphenMinus})
	register("copy", a.copyJSON, KeyShortcut{Code: key.CodeC, Modifiers: key.ModControl})
	register("copyimage", a.copyImage, KeyShortcut{Code: key.CodeC, Modifiers: key.ModControl | key.ModShift})
	register("quit", func() { a.quit = true }, KeyShortcut{Rune: 'q'})

	if !readOnly {
		register("finish", a.ed.FinishPolygon, KeyShortcut{Code: key.CodeReturnEnter}, KeyShortcut{Code: key.CodeKeypadEnter})
		register("delete", a.ed.DeleteSelected, KeyShortcut{Code: key.CodeDeleteForward}, KeyShortcut{Code: key.CodeDeleteBackspace})
		register("label", a.beginLabelEdit, KeyShortcut{Rune: 'l'})
		register("save", a.save, KeyShortcut{Code: key.CodeS, Modifiers: key.ModControl})
		register("paste", a.paste, KeyShortcut{Code: key.CodeV, Modifiers: key.ModControl})
		button("Finish", "finish", nil)
		button("Delete", "delete", nil)
		if a.detector != nil {
			register("detect", a.detect, KeyShortcut{Code: key.CodeD, Modifiers: key.ModControl})
			button("Detect", "detect", nil)
		}
	}

	a.shortcuts = nil
	hints := []Shortcut{
		{label: "L:label", action: "label"},
		{label: "^S:save", action: "save"},
		{label: "^C:copy json", action: "copy"},
		{label: "^Shift+C:copy png", action: "copyimage"},
		{label: "^V:paste", action: "paste"},
		{label: "^D:detect", action: "detect"},
		{label: "+/-:zoom", action: "zoom.in"},
		{label: "Esc:cancel", action: "cancel"},
		{label: "Q:quit", action: "quit"},
	}
	for _, h := range hints {
		if _, ok := a.actions[h.action]; ok {
			a.shortcuts = append(a.shortcuts, h)
		}
	}
}

// layout positions the chrome for the current window size.
func (a *App) layout() {
	for _, lbl := range []string{"P:Polygon", "labelshot"} {
		if w := textWidth(lbl) + 8; w > toolbarWidth {
			toolbarWidth = w
		}
	}
	y := headerHeight
	for _, b := range a.buttons {
		b.SetRect(image.Rect(0, y, toolbarWidth, y+buttonHeight))
		y += buttonHeight
	}
	y += 4
	x := 4
	for i := range a.swatches {
		a.swatches[i].rect = image.Rect(x, y, x+swatchSize, y+swatchSize)
		x += swatchSize + 2
		if x+swatchSize > toolbarWidth {
			x = 4
			y += swatchSize + 2
		}
	}
	x = toolbarWidth + 4
	base := a.height - statusHeight + 16
	for i := range a.shortcuts {
		w := textWidth(a.shortcuts[i].label)
		a.shortcuts[i].rect = image.Rect(x-2, base-14, x+w+2, base+4)
		x += w + 12
	}
}

// outputPath is the annotation file written by save: the configured output,
// or <image name>.json in the save directory.
func (a *App) outputPath() string {
	if a.output != "" {
		return a.output
	}
	name := path.Base(strings.TrimRight(a.source, "/"))
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." {
		name = "annotations"
	}
	return filepath.Join(a.saveDir, name+".json")
}

func (a *App) save() {
	p := a.outputPath()
	if err := annotation.WriteFile(p, a.ed.Store().List()); err != nil {
		a.log.WithError(err).WithField("path", p).Error("save failed")
		a.flash("save: %v", err)
		return
	}
	a.output = p
	a.log.WithFields(logrus.Fields{"path": p, "count": a.ed.Store().Len()}).Info("annotations saved")
	a.notifier.Save(p)
	a.flash("saved %s", p)
}

func (a *App) copyJSON() {
	var buf bytes.Buffer
	if err := annotation.Encode(&buf, a.ed.Store().List()); err != nil {
		a.flash("copy: %v", err)
		return
	}
	if err := clipboard.WriteText(buf.String()); err != nil {
		a.log.WithError(err).Warn("copy failed")
		a.flash("copy: %v", err)
		return
	}
	a.notifier.Copy("annotations")
	a.flash("annotations copied to clipboard")
}

func (a *App) copyImage() {
	img, err := a.exporter.Export(a.ed.Image(), a.ed.Store().List(), 0)
	if err != nil {
		a.flash("copy: %v", err)
		return
	}
	if err := clipboard.WriteImage(img); err != nil {
		a.log.WithError(err).Warn("copy failed")
		a.flash("copy: %v", err)
		return
	}
	a.notifier.Copy("image")
	a.flash("image copied to clipboard")
}

func (a *App) paste() {
	text, err := clipboard.ReadText()
	if err != nil {
		a.flash("paste: %v", err)
		return
	}
	list, err := annotation.Decode(strings.NewReader(text))
	if err != nil {
		a.flash("paste: %v", err)
		return
	}
	a.flash("pasted %d annotations", a.ed.Load(list))
}

func (a *App) detect() {
	img := a.ed.Image()
	if img == nil {
		a.flash("detect: no image")
		return
	}
	a.flash("detecting...")
	ctx, send, d := a.ctx, a.send, a.detector
	go func() {
		p, err := d.Detect(ctx, img)
		send(aiEvent{source: "detector", payload: p, err: err})
	}()
}
