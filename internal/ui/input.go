package ui

import (
	"math"
	"time"
	"unicode"

	"golang.org/x/mobile/event/key"
)

// DefaultDoubleClick is the longest gap between two presses that still
// counts as a double-click.
const DefaultDoubleClick = 400 * time.Millisecond

// doubleClickSlop is how far, in screen pixels, the second press may land
// from the first.
const doubleClickSlop = 4.0

// clickTracker turns a second press close in time and space into a
// double-click. The second press is consumed so it never adds a vertex.
type clickTracker struct {
	window time.Duration
	last   time.Time
	x, y   float64
	armed  bool
}

func (c *clickTracker) press(x, y float64, at time.Time) bool {
	if c.armed && at.Sub(c.last) <= c.window &&
		math.Abs(x-c.x) <= doubleClickSlop && math.Abs(y-c.y) <= doubleClickSlop {
		c.armed = false
		return true
	}
	c.armed, c.last, c.x, c.y = true, at, x, y
	return false
}

func (c *clickTracker) reset() { c.armed = false }

// KeyShortcut describes a keyboard combination that triggers an action.
// Either Rune or Code is set.
type KeyShortcut struct {
	Rune      rune
	Code      key.Code
	Modifiers key.Modifiers
}

const modMask = key.ModShift | key.ModControl | key.ModAlt | key.ModMeta

// lookupShortcut matches by key code first, then by lower-cased rune with
// shift ignored so '+' works on any layout.
func lookupShortcut(table map[KeyShortcut]string, e key.Event) (string, bool) {
	mods := e.Modifiers & modMask
	if e.Code != key.CodeUnknown {
		if name, ok := table[KeyShortcut{Code: e.Code, Modifiers: mods}]; ok {
			return name, true
		}
	}
	if e.Rune > 0 {
		name, ok := table[KeyShortcut{Rune: unicode.ToLower(e.Rune), Modifiers: mods &^ key.ModShift}]
		return name, ok
	}
	return "", false
}

// editLine applies one key press to a single-line text field. done is true
// when the edit is committed (Enter) or abandoned (Escape).
func editLine(text []rune, e key.Event) (out []rune, done, commit bool) {
	switch e.Code {
	case key.CodeReturnEnter, key.CodeKeypadEnter:
		return text, true, true
	case key.CodeEscape:
		return text, true, false
	case key.CodeDeleteBackspace:
		if len(text) > 0 {
			text = text[:len(text)-1]
		}
		return text, false, false
	}
	if e.Rune > 0 && unicode.IsPrint(e.Rune) && e.Modifiers&(key.ModControl|key.ModMeta) == 0 {
		text = append(text, e.Rune)
	}
	return text, false, false
}
