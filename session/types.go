// Package session holds the edit state of one open document: text edits,
// free-hand strokes and the undo history over both.
package session

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/loader"
)

const (
	// DefaultTolerance is how close, in document units on each axis, a run's
	// origin must be to an edit's source run to count as the same run.
	DefaultTolerance = 1.0
	// ActivationPadding widens an activated run's edit box.
	ActivationPadding   = 12.0
	DefaultHistoryLimit = 100
)

var ErrEmptyStroke = errors.New("stroke has no points")

type Color = contentstream.Color

// Tool is the drawing tool a stroke was made with.
type Tool int

const (
	ToolPen Tool = iota
	ToolMarker
	ToolHighlight
)

func (t Tool) String() string {
	switch t {
	case ToolMarker:
		return "marker"
	case ToolHighlight:
		return "highlight"
	default:
		return "pen"
	}
}

// ParseTool accepts pen, marker and highlight (or highlighter).
func ParseTool(s string) (Tool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pen":
		return ToolPen, true
	case "marker":
		return ToolMarker, true
	case "highlight", "highlighter":
		return ToolHighlight, true
	}
	return ToolPen, false
}

// TextEdit is an editable text block.
type TextEdit struct {
	ID        string
	Page      int
	SourceRun *loader.TextRun
	Text      string
	Position  coords.Point
	FontSize  float64
	Family    fonts.Family
	Emphasis  fonts.Emphasis
	Align     fonts.Align
	Color     Color
	Width     float64
	// CoverBackground paints over the source run before drawing Text.
	CoverBackground bool
}

// CoverRect is the area painted white under the edit, grown by padding on
// every side. With a source run it is the run's box whatever the edit's own
// position and width.
func (e TextEdit) CoverRect(padding float64) coords.Rect {
	var r coords.Rect
	if e.SourceRun != nil {
		r = e.SourceRun.Rect()
	} else {
		r = coords.Rect{LLX: e.Position.X, LLY: e.Position.Y, URX: e.Position.X + e.Width, URY: e.Position.Y + e.FontSize}
	}
	return r.Inset(padding)
}

func (e TextEdit) clone() TextEdit {
	if e.SourceRun != nil {
		run := *e.SourceRun
		e.SourceRun = &run
	}
	return e
}

// DrawingStroke is a committed free-hand stroke.
type DrawingStroke struct {
	ID      string
	Page    int
	Tool    Tool
	Color   Color
	Width   float64
	Opacity float64
	Points  []coords.Point
}

func (s DrawingStroke) clone() DrawingStroke {
	s.Points = slices.Clone(s.Points)
	return s
}

// near reports whether any point lies within radius of p.
func (s DrawingStroke) near(p coords.Point, radius float64) bool {
	for _, q := range s.Points {
		if coords.Distance(p, q) <= radius {
			return true
		}
	}
	return false
}

// EditPatch lists the fields UpdateEdit changes; nil fields are kept.
type EditPatch struct {
	Text            *string
	Position        *coords.Point
	FontSize        *float64
	Family          *fonts.Family
	Emphasis        *fonts.Emphasis
	Align           *fonts.Align
	Color           *Color
	Width           *float64
	CoverBackground *bool
}

func (p EditPatch) apply(e *TextEdit) {
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.Position != nil {
		e.Position = *p.Position
	}
	if p.FontSize != nil {
		e.FontSize = *p.FontSize
	}
	if p.Family != nil {
		e.Family = *p.Family
	}
	if p.Emphasis != nil {
		e.Emphasis = *p.Emphasis
	}
	if p.Align != nil {
		e.Align = *p.Align
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Width != nil {
		e.Width = *p.Width
	}
	if p.CoverBackground != nil {
		e.CoverBackground = *p.CoverBackground
	}
}

// PageState is the edits and strokes of one page, in insertion order.
type PageState struct {
	Edits   []TextEdit
	Strokes []DrawingStroke
}

func (p PageState) empty() bool { return len(p.Edits) == 0 && len(p.Strokes) == 0 }

func (p PageState) clone() PageState {
	out := PageState{
		Edits:   make([]TextEdit, len(p.Edits)),
		Strokes: make([]DrawingStroke, len(p.Strokes)),
	}
	for i, e := range p.Edits {
		out.Edits[i] = e.clone()
	}
	for i, s := range p.Strokes {
		out.Strokes[i] = s.clone()
	}
	return out
}

// State is the full edit state keyed by 1-based page. History snapshots and
// exports work on deep copies of it.
type State struct {
	Pages map[int]PageState
}

// Clone deep-copies the state, dropping pages with nothing on them.
func (s State) Clone() State {
	out := State{Pages: make(map[int]PageState, len(s.Pages))}
	for n, p := range s.Pages {
		if !p.empty() {
			out.Pages[n] = p.clone()
		}
	}
	return out
}

// PageNumbers lists the pages holding state in ascending order.
func (s State) PageNumbers() []int {
	var out []int
	for _, n := range slices.Sorted(maps.Keys(s.Pages)) {
		if !s.Pages[n].empty() {
			out = append(out, n)
		}
	}
	return out
}

func (s State) Empty() bool { return len(s.PageNumbers()) == 0 }

// TextDefaults are the attributes of text inserted from scratch.
type TextDefaults struct {
	Text     string
	FontSize float64
	Width    float64
	Family   fonts.Family
	Emphasis fonts.Emphasis
	Align    fonts.Align
	Color    Color
}

func DefaultTextDefaults() TextDefaults {
	return TextDefaults{Text: "New Text", FontSize: 12, Width: 100, Family: fonts.Sans, Align: fonts.AlignLeft, Color: contentstream.Black}
}
