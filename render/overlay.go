package render

import (
	"image"
	"image/color"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
)

// OverlayStroke is a free-hand stroke in document space.
type OverlayStroke struct {
	Points  []coords.Point
	Color   contentstream.Color
	Width   float64
	Opacity float64
}

// OverlayText is an edit block in document space. Position is the baseline
// start of the box; Width is the box the text is aligned in.
type OverlayText struct {
	Text     string
	Position coords.Point
	FontSize float64
	Family   fonts.Family
	Emphasis fonts.Emphasis
	Align    fonts.Align
	Color    contentstream.Color
	Width    float64
	// Cover is painted white before the text when set.
	Cover *coords.Rect
}

// Overlay paints session state over a rendered page: all strokes first,
// then each edit's cover followed by its text, in slice order.
func Overlay(dst *image.RGBA, view coords.Viewport, edits []OverlayText, strokes []OverlayStroke, opts ...Option) {
	newCanvas(dst, view, opts...).Overlay(edits, strokes)
}

// Overlay paints onto the canvas. See the package-level Overlay.
func (c *Canvas) Overlay(edits []OverlayText, strokes []OverlayStroke) {
	for _, s := range strokes {
		opacity := s.Opacity
		if opacity <= 0 {
			opacity = 1
		}
		c.Polyline(s.Points, s.Width, nrgba(s.Color, opacity))
	}
	for _, e := range edits {
		if e.Cover != nil {
			c.FillRect(*e.Cover, color.White)
		}
		c.DrawLine(e)
	}
}

// DrawLine draws an edit's text without its cover.
func (c *Canvas) DrawLine(e OverlayText) {
	if e.Text == "" || e.FontSize <= 0 {
		return
	}
	w := c.textWidth(e.Family, e.Emphasis, e.Text) * e.FontSize
	x := e.Position.X + e.Align.Offset(w, e.Width)
	m := coords.Matrix{e.FontSize, 0, 0, e.FontSize, x, e.Position.Y}.Multiply(c.view.Matrix())
	c.drawText(e.Text, e.Family, e.Emphasis, m, 0, nrgba(e.Color, 1))
}
