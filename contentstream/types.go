package contentstream

import (
	"math"

	"github.com/wudi/pdfedit/coords"
)

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Visible reports whether glyphs painted in this mode leave marks.
func (m TextRenderMode) Visible() bool { return m != TextInvisible && m != TextClip }

// Path describes a graphics path made of subpaths.
type Path struct {
	Subpaths []Subpath
}

// Subpath describes a portion of a path.
type Subpath struct {
	Points []PathPoint
	Closed bool
}

// PathPoint identifies a path segment and its coordinates.
type PathPoint struct {
	X, Y                 float64
	Type                 PathPointType
	Control1X, Control1Y float64
	Control2X, Control2Y float64
}

// PathPointType enumerates path segment types.
type PathPointType int

const (
	PathMoveTo PathPointType = iota
	PathLineTo
	PathCurveTo
)

// Color is a device RGB colour with channels in 0..1.
type Color struct{ R, G, B float64 }

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

// Gray converts a DeviceGray value.
func Gray(g float64) Color { g = clamp01(g); return Color{R: g, G: g, B: g} }

// CMYK converts DeviceCMYK naively, without a colour profile.
func CMYK(c, m, y, k float64) Color {
	return Color{
		R: (1 - clamp01(c)) * (1 - clamp01(k)),
		G: (1 - clamp01(m)) * (1 - clamp01(k)),
		B: (1 - clamp01(y)) * (1 - clamp01(k)),
	}
}

func RGB(r, g, b float64) Color { return Color{R: clamp01(r), G: clamp01(g), B: clamp01(b)} }

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

// PaintedPath is a path after a painting operator, in default user space.
type PaintedPath struct {
	Path        Path
	Fill        bool
	Stroke      bool
	EvenOdd     bool
	FillColor   Color
	StrokeColor Color
	// LineWidth is scaled by the CTM in effect.
	LineWidth float64
}

// TextShow is the result of one text-showing operator.
type TextShow struct {
	Text     string
	Font     *Font
	FontSize float64 // Tf operand
	// Matrix is the text rendering matrix at the start of the string.
	Matrix coords.Matrix
	// Advance is the horizontal displacement in rendering matrix units, so
	// Matrix maps (Advance, 0) to the end of the string.
	Advance    float64
	Fill       Color
	RenderMode TextRenderMode
	Glyphs     []ShownGlyph
}

// ShownGlyph is one decoded code with its position along the baseline in
// rendering matrix units.
type ShownGlyph struct {
	Code    int
	Text    string
	Offset  float64
	Advance float64
}

// Origin is the baseline start in default user space.
func (t TextShow) Origin() coords.Point {
	return coords.Point{X: t.Matrix[4], Y: t.Matrix[5]}
}

// Size is the effective font size, the length of the rendering matrix's
// first column.
func (t TextShow) Size() float64 {
	return math.Hypot(t.Matrix[0], t.Matrix[1])
}

// Width is the advance transformed to default user space.
func (t TextShow) Width() float64 {
	v := t.Matrix.TransformVector(coords.Point{X: t.Advance})
	return math.Hypot(v.X, v.Y)
}

// Bounds is the box from the baseline up to one em, in default user space.
func (t TextShow) Bounds() coords.Rect {
	return t.Matrix.Bounds(coords.Rect{URX: t.Advance, URY: 1})
}
