package editor

import (
	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/annotation"
)

// Handle feeds one input event to the drawing state machine. It reports
// whether the event was consumed. Events are ignored before an image has
// been loaded.
func (e *Editor) Handle(ev Event) bool {
	if !e.Ready() {
		return false
	}
	switch ev := ev.(type) {
	case PointerDown:
		return e.pointerDown(ev.X, ev.Y)
	case PointerMove:
		return e.pointerMove(ev.X, ev.Y)
	case PointerUp:
		return e.pointerUp(ev.X, ev.Y)
	case DoubleClick:
		if e.state.Tool == ToolPolygon {
			e.FinishPolygon()
			return true
		}
		return e.pointerDown(ev.X, ev.Y)
	case Key:
		return e.key(ev.Code)
	default:
		return false
	}
}

func (e *Editor) pointerDown(x, y float64) bool {
	p, err := e.mapper.ScreenToImage(x, y)
	if err != nil {
		return false
	}
	switch e.state.Tool {
	case ToolSelect:
		id := ""
		if a, ok := e.store.HitTest(p, hitSlop/e.mapper.Scale()); ok {
			id = a.ID
		}
		e.store.Select(id)
	case ToolBbox:
		e.state.Drag = &DragState{Start: p, Current: p}
	case ToolPolygon:
		e.state.Pending = append(e.state.Pending, p)
		e.state.Cursor = &p
	case ToolPoint:
		e.create(annotation.PointMark{Point: p})
	default:
		return false
	}
	e.Redraw()
	return true
}

func (e *Editor) pointerMove(x, y float64) bool {
	p, err := e.mapper.ScreenToImage(x, y)
	if err != nil {
		return false
	}
	e.state.Cursor = &p
	switch {
	case e.state.Drag != nil:
		e.state.Drag.Current = p
	case len(e.state.Pending) > 0:
	default:
		return false
	}
	e.Redraw()
	return true
}

func (e *Editor) pointerUp(x, y float64) bool {
	if e.state.Drag == nil {
		return false
	}
	if p, err := e.mapper.ScreenToImage(x, y); err == nil {
		e.state.Drag.Current = p
	}
	box := e.state.Drag.Rect()
	e.state.Drag = nil
	if box.Width >= e.minBox && box.Height >= e.minBox {
		e.create(annotation.Bbox{Box: box})
	}
	e.Redraw()
	return true
}

func (e *Editor) key(code KeyCode) bool {
	switch code {
	case KeyEscape:
		e.Cancel()
	case KeyDelete, KeyBackspace:
		if e.store.SelectedID() == "" {
			return false
		}
		e.DeleteSelected()
	case KeyEnter:
		if e.state.Tool != ToolPolygon {
			return false
		}
		e.FinishPolygon()
	default:
		return false
	}
	return true
}

// FinishPolygon closes the polygon under construction. Fewer than three
// vertices are discarded. The vertex list is always cleared.
func (e *Editor) FinishPolygon() {
	pts := e.state.Pending
	e.state.Pending = nil
	if len(pts) >= 3 {
		e.create(annotation.Polygon{Points: pts})
	}
	e.Redraw()
}

func (e *Editor) create(shape annotation.Shape) {
	if e.readOnly {
		return
	}
	a, ok := e.store.Create(annotation.Spec{
		Label: e.state.Label,
		Color: e.state.Color,
		Shape: shape,
	})
	if !ok {
		return
	}
	e.log.WithFields(logrus.Fields{"id": a.ID, "kind": a.Shape.Kind(), "label": a.Label}).Debug("annotation created")
}
