package session

import "github.com/wudi/pdfedit/render"

// Overlay converts a page's state into preview paint items: strokes in
// commit order and edits in insertion order, each edit carrying its cover
// when CoverBackground is set.
func (s State) Overlay(page int, coverPadding float64) ([]render.OverlayText, []render.OverlayStroke) {
	ps := s.Pages[page]
	strokes := make([]render.OverlayStroke, 0, len(ps.Strokes))
	for _, st := range ps.Strokes {
		strokes = append(strokes, render.OverlayStroke{
			Points:  st.Points,
			Color:   st.Color,
			Width:   st.Width,
			Opacity: st.Opacity,
		})
	}
	edits := make([]render.OverlayText, 0, len(ps.Edits))
	for _, e := range ps.Edits {
		item := render.OverlayText{
			Text:     e.Text,
			Position: e.Position,
			FontSize: e.FontSize,
			Family:   e.Family,
			Emphasis: e.Emphasis,
			Align:    e.Align,
			Color:    e.Color,
			Width:    e.Width,
		}
		if e.CoverBackground {
			r := e.CoverRect(coverPadding)
			item.Cover = &r
		}
		edits = append(edits, item)
	}
	return edits, strokes
}
