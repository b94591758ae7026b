// Package builder assembles page content streams with a fluent API.
package builder

import (
	"fmt"
	"math"
	"sort"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
)

// Color is a device RGB colour.
type Color = contentstream.Color

type LineCap int

const (
	ButtCap LineCap = iota
	RoundCap
	SquareCap
)

type LineJoin int

const (
	MiterJoin LineJoin = iota
	RoundJoin
	BevelJoin
)

// TextOptions configures text drawing. Font is a key registered through
// ContentBuilder.Font; the builder assigns the resource name.
type TextOptions struct {
	Font     string
	FontSize float64
	Color    Color
}

// PathOptions configures path drawing. Alpha outside (0,1) paints opaque.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	LineCap     LineCap
	LineJoin    LineJoin
	Fill        bool
	Stroke      bool
	Alpha       float64
}

// RectOptions configures rectangle drawing (defaults to stroke if neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures polyline drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	LineCap     LineCap
	LineJoin    LineJoin
	Alpha       float64
}

// Resources lists what a built stream refers to by name.
type Resources struct {
	// Fonts maps resource names to the font keys passed to Font.
	Fonts map[string]string
	// ExtGStates maps resource names to a constant alpha for both stroking
	// and non-stroking operations.
	ExtGStates map[string]float64
}

// FontNames returns the font resource names in order.
func (r Resources) FontNames() []string { return sortedKeys(r.Fonts) }

// ExtGStateNames returns the graphics state resource names in order.
func (r Resources) ExtGStateNames() []string { return sortedKeys(r.ExtGStates) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type Option func(*ContentBuilder)

// WithReserved keeps generated resource names clear of names already used
// by the page.
func WithReserved(names ...string) Option {
	return func(b *ContentBuilder) {
		for _, n := range names {
			b.reserved[n] = true
		}
	}
}

// WithPrefix sets the prefix of generated resource names.
func WithPrefix(prefix string) Option {
	return func(b *ContentBuilder) { b.prefix = prefix }
}

// ContentBuilder accumulates operations for one content stream.
type ContentBuilder struct {
	ops      []Operation
	res      Resources
	prefix   string
	reserved map[string]bool
	fonts    map[string]string
	states   map[float64]string
	depth    int
}

func NewContent(opts ...Option) *ContentBuilder {
	b := &ContentBuilder{
		res:      Resources{Fonts: map[string]string{}, ExtGStates: map[string]float64{}},
		prefix:   "PE",
		reserved: map[string]bool{},
		fonts:    map[string]string{},
		states:   map[float64]string{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Save pushes the graphics state.
func (b *ContentBuilder) Save() *ContentBuilder {
	b.depth++
	return b.op("q")
}

// Restore pops the graphics state. Unbalanced calls are ignored.
func (b *ContentBuilder) Restore() *ContentBuilder {
	if b.depth == 0 {
		return b
	}
	b.depth--
	return b.op("Q")
}

// Transform concatenates m onto the current transformation matrix.
func (b *ContentBuilder) Transform(m coords.Matrix) *ContentBuilder {
	if m == coords.Identity() {
		return b
	}
	return b.op("cm", Number(m[0]), Number(m[1]), Number(m[2]), Number(m[3]), Number(m[4]), Number(m[5]))
}

// Font registers a font key and returns its resource name.
func (b *ContentBuilder) Font(key string) string {
	if name, ok := b.fonts[key]; ok {
		return name
	}
	name := b.nextName("F", len(b.res.Fonts))
	b.fonts[key] = name
	b.res.Fonts[name] = key
	return name
}

func (b *ContentBuilder) extGState(alpha float64) string {
	alpha = math.Round(alpha*1000) / 1000
	if name, ok := b.states[alpha]; ok {
		return name
	}
	name := b.nextName("GS", len(b.res.ExtGStates))
	b.states[alpha] = name
	b.res.ExtGStates[name] = alpha
	return name
}

func (b *ContentBuilder) nextName(kind string, n int) string {
	for i := n + 1; ; i++ {
		name := fmt.Sprintf("%s%s%d", b.prefix, kind, i)
		if !b.reserved[name] {
			b.reserved[name] = true
			return name
		}
	}
}

// DrawRectangle paints r in user space.
func (b *ContentBuilder) DrawRectangle(r coords.Rect, opts RectOptions) *ContentBuilder {
	po := opts
	if !po.Stroke && !po.Fill {
		po.Stroke = true
	}
	b.Save()
	b.applyPathState(po)
	b.op("re", Number(r.LLX), Number(r.LLY), Number(r.Width()), Number(r.Height()))
	b.op(paintOperator(po.Fill, po.Stroke))
	return b.Restore()
}

// DrawPolyline strokes pts as one connected path. A single point becomes a
// zero-length segment, which round caps paint as a dot.
func (b *ContentBuilder) DrawPolyline(pts []coords.Point, opts LineOptions) *ContentBuilder {
	if len(pts) == 0 {
		return b
	}
	b.Save()
	b.applyPathState(PathOptions{
		StrokeColor: opts.StrokeColor,
		LineWidth:   opts.LineWidth,
		LineCap:     opts.LineCap,
		LineJoin:    opts.LineJoin,
		Stroke:      true,
		Alpha:       opts.Alpha,
	})
	b.op("m", Number(pts[0].X), Number(pts[0].Y))
	if len(pts) == 1 {
		b.op("l", Number(pts[0].X), Number(pts[0].Y))
	}
	for _, p := range pts[1:] {
		b.op("l", Number(p.X), Number(p.Y))
	}
	b.op("S")
	return b.Restore()
}

// DrawText shows text at (x, y). The bytes of text are written as-is, so
// they must already be in the font's encoding.
func (b *ContentBuilder) DrawText(text string, x, y float64, opts TextOptions) *ContentBuilder {
	size := opts.FontSize
	if size <= 0 {
		size = 12
	}
	name := b.Font(opts.Font)
	b.op("BT")
	b.op("Tf", Name(name), Number(size))
	b.op("Tm", Number(1), Number(0), Number(0), Number(1), Number(x), Number(y))
	b.appendColorOp(opts.Color, false)
	b.op("Tj", String(text))
	return b.op("ET")
}

func (b *ContentBuilder) applyPathState(opts PathOptions) {
	if opts.Alpha > 0 && opts.Alpha < 1 {
		b.op("gs", Name(b.extGState(opts.Alpha)))
	}
	if opts.Fill {
		b.appendColorOp(opts.FillColor, false)
	}
	if !opts.Stroke {
		return
	}
	b.appendColorOp(opts.StrokeColor, true)
	if opts.LineWidth > 0 {
		b.op("w", Number(opts.LineWidth))
	}
	if opts.LineCap != ButtCap {
		b.op("J", Number(float64(opts.LineCap)))
	}
	if opts.LineJoin != MiterJoin {
		b.op("j", Number(float64(opts.LineJoin)))
	}
}

func (b *ContentBuilder) appendColorOp(c Color, stroking bool) {
	op := "rg"
	if stroking {
		op = "RG"
	}
	b.op(op, Number(c.R), Number(c.G), Number(c.B))
}

func (b *ContentBuilder) op(operator string, operands ...Operand) *ContentBuilder {
	b.ops = append(b.ops, Operation{Operator: operator, Operands: operands})
	return b
}

// Operations returns the operations added so far, closing any open saves.
func (b *ContentBuilder) Operations() []Operation {
	out := append([]Operation(nil), b.ops...)
	for i := 0; i < b.depth; i++ {
		out = append(out, Operation{Operator: "Q"})
	}
	return out
}

func (b *ContentBuilder) Resources() Resources { return b.res }

// Empty reports whether nothing has been drawn.
func (b *ContentBuilder) Empty() bool { return len(b.ops) == 0 }

// Bytes serializes the stream.
func (b *ContentBuilder) Bytes() []byte { return Serialize(b.Operations()) }

func paintOperator(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	default:
		return "S"
	}
}
