package theme

import (
	"image/color"
	"sort"
	"strings"
)

// Theme defines the colours of the editor window.
type Theme struct {
	Name string

	// General
	Background color.RGBA // behind the canvas
	Foreground color.RGBA // status and panel text

	// Toolbar & label panel
	ToolbarBackground color.RGBA
	PanelBackground   color.RGBA
	PanelText         color.RGBA
	PanelTextEditing  color.RGBA

	// Tool Buttons
	ButtonBackground       color.RGBA
	ButtonBackgroundHover  color.RGBA
	ButtonBackgroundActive color.RGBA
	ButtonText             color.RGBA
	ButtonTextActive       color.RGBA
	ButtonBorder           color.RGBA

	// Canvas
	CheckerLight color.RGBA
	CheckerDark  color.RGBA
}

// Default returns the hardcoded default light theme (fallback).
func Default() *Theme {
	return &Theme{
		Name:                   "Default",
		Background:             color.RGBA{220, 220, 220, 255},
		Foreground:             color.RGBA{0, 0, 0, 255},
		ToolbarBackground:      color.RGBA{210, 210, 210, 255},
		PanelBackground:        color.RGBA{235, 235, 235, 255},
		PanelText:              color.RGBA{0, 0, 0, 255},
		PanelTextEditing:       color.RGBA{0, 64, 192, 255},
		ButtonBackground:       color.RGBA{200, 200, 200, 255},
		ButtonBackgroundHover:  color.RGBA{180, 180, 180, 255},
		ButtonBackgroundActive: color.RGBA{150, 150, 150, 255},
		ButtonText:             color.RGBA{0, 0, 0, 255},
		ButtonTextActive:       color.RGBA{255, 255, 255, 255},
		ButtonBorder:           color.RGBA{0, 0, 0, 255},
		CheckerLight:           color.RGBA{220, 220, 220, 255},
		CheckerDark:            color.RGBA{192, 192, 192, 255},
	}
}

// Dark returns the built-in dark theme.
func Dark() *Theme {
	return &Theme{
		Name:                   "dark",
		Background:             color.RGBA{32, 33, 36, 255},
		Foreground:             color.RGBA{230, 230, 230, 255},
		ToolbarBackground:      color.RGBA{45, 46, 50, 255},
		PanelBackground:        color.RGBA{40, 41, 45, 255},
		PanelText:              color.RGBA{230, 230, 230, 255},
		PanelTextEditing:       color.RGBA{120, 180, 255, 255},
		ButtonBackground:       color.RGBA{60, 62, 66, 255},
		ButtonBackgroundHover:  color.RGBA{80, 82, 88, 255},
		ButtonBackgroundActive: color.RGBA{100, 140, 220, 255},
		ButtonText:             color.RGBA{230, 230, 230, 255},
		ButtonTextActive:       color.RGBA{255, 255, 255, 255},
		ButtonBorder:           color.RGBA{20, 20, 20, 255},
		CheckerLight:           color.RGBA{70, 70, 70, 255},
		CheckerDark:            color.RGBA{50, 50, 50, 255},
	}
}

var builtins = map[string]func() *Theme{
	"default": Default,
	"light":   Default,
	"dark":    Dark,
}

// Builtin returns a copy of a built-in theme.
func Builtin(name string) (*Theme, bool) {
	fn, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// BuiltinNames lists the built-in theme names.
func BuiltinNames() []string {
	out := make([]string, 0, len(builtins))
	for k := range builtins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
