package editor

import (
	"fmt"
	"strings"

	"github.com/example/labelshot/internal/annotation"
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolSelect  Tool = "select"
	ToolBbox    Tool = "bbox"
	ToolPolygon Tool = "polygon"
	ToolPoint   Tool = "point"
)

// Tools lists the tools in toolbar order.
func Tools() []Tool { return []Tool{ToolSelect, ToolBbox, ToolPolygon, ToolPoint} }

// ParseTool converts a tool name such as "bbox" into a Tool.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(strings.ToLower(strings.TrimSpace(s))); t {
	case ToolSelect, ToolBbox, ToolPolygon, ToolPoint:
		return t, nil
	case "":
		return ToolSelect, nil
	default:
		return "", fmt.Errorf("unknown tool %q", s)
	}
}

// DragState is the box being dragged, in image space.
type DragState struct {
	Start   annotation.Point
	Current annotation.Point
}

// Rect returns the rectangle spanned by the drag.
func (d DragState) Rect() annotation.BoundingBox {
	return annotation.BoxFromCorners(d.Start, d.Current)
}

// EditorState is the interaction state of one editor. Selection is kept by
// the store.
type EditorState struct {
	Tool    Tool
	Label   string
	Color   string
	Drag    *DragState
	Pending []annotation.Point
	Cursor  *annotation.Point
}

func (s EditorState) clone() EditorState {
	out := s
	if s.Drag != nil {
		d := *s.Drag
		out.Drag = &d
	}
	if s.Pending != nil {
		out.Pending = append([]annotation.Point(nil), s.Pending...)
	}
	if s.Cursor != nil {
		c := *s.Cursor
		out.Cursor = &c
	}
	return out
}

// Drawing reports whether a shape is under construction.
func (s EditorState) Drawing() bool {
	return s.Drag != nil || len(s.Pending) > 0
}

func (s *EditorState) resetDraft() {
	s.Drag = nil
	s.Pending = nil
}

// Event is a pointer or keyboard input in screen coordinates.
type Event interface{ isEvent() }

type PointerDown struct{ X, Y float64 }
type PointerMove struct{ X, Y float64 }
type PointerUp struct{ X, Y float64 }

// DoubleClick replaces the second PointerDown of a double click.
type DoubleClick struct{ X, Y float64 }

// KeyCode names the keys the editor reacts to.
type KeyCode int

const (
	KeyUnknown KeyCode = iota
	KeyEscape
	KeyDelete
	KeyBackspace
	KeyEnter
)

type Key struct{ Code KeyCode }

func (PointerDown) isEvent() {}
func (PointerMove) isEvent() {}
func (PointerUp) isEvent()   {}
func (DoubleClick) isEvent() {}
func (Key) isEvent()         {}
