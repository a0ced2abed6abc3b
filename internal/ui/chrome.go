package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
)

// compose draws the canvas frame and the chrome into dst.
func (a *App) compose(dst *image.RGBA) {
	th := a.theme
	fillRect(dst, dst.Bounds(), th.Background)

	canvas := a.canvasRect()
	if f := a.ed.Frame(); f != nil && a.ed.Ready() {
		draw.Draw(dst, canvas, f, image.Point{}, draw.Src)
	} else {
		drawText(dst, "loading "+a.source, canvas.Min.X+8, canvas.Min.Y+20, th.Foreground)
	}

	a.drawHeader(dst)
	a.drawToolbar(dst)
	a.drawStatus(dst)
	a.drawMessage(dst)
}

func (a *App) drawHeader(dst *image.RGBA) {
	th := a.theme
	fillRect(dst, image.Rect(0, 0, dst.Bounds().Dx(), headerHeight), th.PanelBackground)
	drawText(dst, "labelshot", 4, 16, th.PanelText)

	st := a.ed.State()
	label := string(a.labelText)
	col := th.PanelText
	if a.labelEditing {
		label += "|"
		col = th.PanelTextEditing
	}
	x := toolbarWidth + 4
	field := "Label: " + label
	drawText(dst, field, x, 16, col)
	x += textWidth(field) + 16

	info := fmt.Sprintf("%s  %.0f%%  %d annotations", st.Tool, a.ed.Scale()*100, a.ed.Store().Len())
	if sel, ok := a.ed.Store().Selected(); ok {
		info += fmt.Sprintf("  [%s]", sel.Label)
	}
	if a.ed.ReadOnly() {
		info += "  read-only"
	}
	if len(a.tags) > 0 {
		info += "  tags: " + strings.Join(a.tags, ", ")
	}
	drawText(dst, info, x, 16, th.PanelText)
}

func (a *App) drawToolbar(dst *image.RGBA) {
	th := a.theme
	fillRect(dst, image.Rect(0, headerHeight, toolbarWidth, dst.Bounds().Dy()-statusHeight), th.ToolbarBackground)
	for i, b := range a.buttons {
		pressed := false
		if ab, ok := b.Button.(*ActionButton); ok && ab.active != nil {
			pressed = ab.active()
		}
		b.Draw(dst, buttonState(i == a.hoverButton, pressed))
	}
	current := strings.ToUpper(a.ed.State().Color)
	for _, sw := range a.swatches {
		fillRect(dst, sw.rect, sw.col)
		border := th.ButtonBorder
		if sw.hex == current {
			border = th.PanelTextEditing
		}
		drawRect(dst, sw.rect, border)
	}
}

func (a *App) drawStatus(dst *image.RGBA) {
	th := a.theme
	b := dst.Bounds()
	fillRect(dst, image.Rect(0, b.Dy()-statusHeight, b.Dx(), b.Dy()), th.PanelBackground)
	for _, sc := range a.shortcuts {
		fillRect(dst, sc.rect, th.ButtonBackground)
		drawRect(dst, sc.rect, th.ButtonBorder)
		drawText(dst, sc.label, sc.rect.Min.X+2, sc.rect.Max.Y-4, th.ButtonText)
	}
}

func (a *App) drawMessage(dst *image.RGBA) {
	if a.message == "" || !a.now().Before(a.messageUntil) {
		return
	}
	th := a.theme
	w := textWidth(a.message)
	b := dst.Bounds()
	x := (b.Dx() - w) / 2
	y := b.Dy() - statusHeight - 16
	rect := image.Rect(x-8, y-16, x+w+8, y+6)
	draw.Draw(dst, rect, &image.Uniform{color.RGBA{255, 255, 255, 230}}, image.Point{}, draw.Over)
	drawRect(dst, rect, th.ButtonBorder)
	drawText(dst, a.message, x, y, color.Black)
}
