package contentstream

import (
	"context"
	"strings"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
)

// Handler receives what a content stream paints, in default user space.
type Handler interface {
	Text(TextShow)
	Path(PaintedPath)
	// Image reports an image XObject or inline image drawn into the unit
	// square transformed by the given CTM.
	Image(coords.Matrix)
}

// DefaultMaxFormDepth bounds nested form XObjects.
const DefaultMaxFormDepth = 12

// spaceAdjustment is the TJ displacement, in thousandths of an em, beyond
// which a gap is read as a word break.
const spaceAdjustment = 250

// Interpreter walks operations, tracks the graphics state and reports
// painted content to a Handler.
type Interpreter struct {
	MaxFormDepth int

	doc      *raw.Document
	filters  *filters.Pipeline
	handler  Handler
	fonts    map[*raw.DictObj]*Font
	fallback *Font
}

func NewInterpreter(doc *raw.Document, p *filters.Pipeline, h Handler) *Interpreter {
	if p == nil {
		p = filters.NewDefaultPipeline(filters.Limits{})
	}
	return &Interpreter{
		MaxFormDepth: DefaultMaxFormDepth,
		doc:          doc,
		filters:      p,
		handler:      h,
		fonts:        make(map[*raw.DictObj]*Font),
	}
}

// execState is per content stream; forms get their own.
type execState struct {
	tm, tlm coords.Matrix
	path    Path
	current *Subpath
}

// Run interprets a page content stream. Parse errors stop interpretation at
// the broken operator; what was painted before it is still reported and the
// error is returned.
func (in *Interpreter) Run(ctx context.Context, content []byte, resources *raw.DictObj, gs *GraphicsState) error {
	ops, perr := Parse(content)
	if err := in.exec(ctx, ops, resources, gs, 0, map[*raw.StreamObj]bool{}); err != nil {
		return err
	}
	return perr
}

func (in *Interpreter) exec(ctx context.Context, ops []Operation, res *raw.DictObj, gs *GraphicsState, depth int, active map[*raw.StreamObj]bool) error {
	ex := &execState{tm: coords.Identity(), tlm: coords.Identity()}
	base := gs.Depth()
	for i, op := range ops {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		o := op.Operands
		switch op.Operator {
		case "q":
			gs.Save()
		case "Q":
			if gs.Depth() > base {
				_ = gs.Restore()
			}
		case "cm":
			if m, ok := matrixOf(o); ok {
				gs.CTM = m.Multiply(gs.CTM)
			}
		case "w":
			if v, ok := numAt(o, 0); ok {
				gs.LineWidth = v
			}
		case "gs":
			in.applyExtGState(res, o, gs)

		case "g":
			if v, ok := numAt(o, 0); ok {
				gs.FillColor = Gray(v)
			}
		case "G":
			if v, ok := numAt(o, 0); ok {
				gs.StrokeColor = Gray(v)
			}
		case "rg":
			if c, ok := colorOf(o); ok {
				gs.FillColor = c
			}
		case "RG":
			if c, ok := colorOf(o); ok {
				gs.StrokeColor = c
			}
		case "k", "sc", "scn":
			if c, ok := colorOf(o); ok {
				gs.FillColor = c
			}
		case "K", "SC", "SCN":
			if c, ok := colorOf(o); ok {
				gs.StrokeColor = c
			}
		case "cs":
			gs.FillColor = Black
		case "CS":
			gs.StrokeColor = Black

		case "m":
			if x, y, ok := pointOf(o, 0); ok {
				ex.moveTo(gs.CTM.Transform(coords.Point{X: x, Y: y}))
			}
		case "l":
			if x, y, ok := pointOf(o, 0); ok {
				ex.lineTo(gs.CTM.Transform(coords.Point{X: x, Y: y}))
			}
		case "c":
			if len(o) == 6 {
				x1, y1, _ := pointOf(o, 0)
				x2, y2, _ := pointOf(o, 2)
				x3, y3, _ := pointOf(o, 4)
				ex.curveTo(gs.CTM.Transform(coords.Point{X: x1, Y: y1}),
					gs.CTM.Transform(coords.Point{X: x2, Y: y2}),
					gs.CTM.Transform(coords.Point{X: x3, Y: y3}))
			}
		case "v":
			if len(o) == 4 && ex.current != nil {
				last := ex.last()
				x2, y2, _ := pointOf(o, 0)
				x3, y3, _ := pointOf(o, 2)
				ex.curveTo(last, gs.CTM.Transform(coords.Point{X: x2, Y: y2}), gs.CTM.Transform(coords.Point{X: x3, Y: y3}))
			}
		case "y":
			if len(o) == 4 {
				x1, y1, _ := pointOf(o, 0)
				x3, y3, _ := pointOf(o, 2)
				end := gs.CTM.Transform(coords.Point{X: x3, Y: y3})
				ex.curveTo(gs.CTM.Transform(coords.Point{X: x1, Y: y1}), end, end)
			}
		case "h":
			ex.closePath()
		case "re":
			if len(o) == 4 {
				x, y, _ := pointOf(o, 0)
				w, h, _ := pointOf(o, 2)
				ex.moveTo(gs.CTM.Transform(coords.Point{X: x, Y: y}))
				ex.lineTo(gs.CTM.Transform(coords.Point{X: x + w, Y: y}))
				ex.lineTo(gs.CTM.Transform(coords.Point{X: x + w, Y: y + h}))
				ex.lineTo(gs.CTM.Transform(coords.Point{X: x, Y: y + h}))
				ex.closePath()
			}
		case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*":
			in.paint(ex, gs, op.Operator)
		case "n":
			ex.reset()

		case "BT":
			ex.tm, ex.tlm = coords.Identity(), coords.Identity()
		case "Tf":
			if name, ok := nameAt(o, 0); ok {
				gs.Text.Font = in.fontResource(ctx, res, name)
			}
			if v, ok := numAt(o, 1); ok {
				gs.Text.FontSize = v
			}
		case "Tc":
			if v, ok := numAt(o, 0); ok {
				gs.Text.CharSpacing = v
			}
		case "Tw":
			if v, ok := numAt(o, 0); ok {
				gs.Text.WordSpacing = v
			}
		case "Tz":
			if v, ok := numAt(o, 0); ok {
				gs.Text.Scale = v
			}
		case "TL":
			if v, ok := numAt(o, 0); ok {
				gs.Text.Leading = v
			}
		case "Ts":
			if v, ok := numAt(o, 0); ok {
				gs.Text.Rise = v
			}
		case "Tr":
			if v, ok := numAt(o, 0); ok {
				gs.Text.RenderMode = TextRenderMode(int(v))
			}
		case "Td":
			if x, y, ok := pointOf(o, 0); ok {
				ex.newLine(x, y)
			}
		case "TD":
			if x, y, ok := pointOf(o, 0); ok {
				gs.Text.Leading = -y
				ex.newLine(x, y)
			}
		case "Tm":
			if m, ok := matrixOf(o); ok {
				ex.tm, ex.tlm = m, m
			}
		case "T*":
			ex.newLine(0, -gs.Text.Leading)
		case "Tj":
			if len(o) == 1 {
				in.show(ex, gs, o)
			}
		case "TJ":
			if arr, ok := firstArray(o); ok {
				in.show(ex, gs, arr.Items)
			}
		case "'":
			ex.newLine(0, -gs.Text.Leading)
			if len(o) == 1 {
				in.show(ex, gs, o)
			}
		case "\"":
			if len(o) == 3 {
				gs.Text.WordSpacing, _ = numAt(o, 0)
				gs.Text.CharSpacing, _ = numAt(o, 1)
				ex.newLine(0, -gs.Text.Leading)
				in.show(ex, gs, o[2:])
			}

		case "Do":
			if name, ok := nameAt(o, 0); ok {
				if err := in.doXObject(ctx, res, name, gs, depth, active); err != nil {
					return err
				}
			}
		case "BI":
			in.handler.Image(gs.CTM)
		}
	}
	for gs.Depth() > base {
		_ = gs.Restore()
	}
	return nil
}

func (in *Interpreter) paint(ex *execState, gs *GraphicsState, op string) {
	switch op {
	case "s", "b", "b*":
		ex.closePath()
	}
	if len(ex.path.Subpaths) > 0 {
		pp := PaintedPath{
			Path:        ex.path,
			Fill:        op != "S" && op != "s",
			Stroke:      op == "S" || op == "s" || strings.HasPrefix(op, "B") || strings.HasPrefix(op, "b"),
			EvenOdd:     strings.HasSuffix(op, "*"),
			FillColor:   gs.FillColor,
			StrokeColor: gs.StrokeColor,
			LineWidth:   gs.LineWidth * gs.CTM.ScaleFactor(),
		}
		in.handler.Path(pp)
	}
	ex.reset()
}

func (in *Interpreter) show(ex *execState, gs *GraphicsState, items []raw.Object) {
	ts := gs.Text
	font := ts.Font
	if font == nil {
		font = in.defaultFont()
	}
	th := ts.Scale / 100
	unit := ts.FontSize * th
	trm := coords.Matrix{unit, 0, 0, ts.FontSize, 0, ts.Rise}.Multiply(ex.tm).Multiply(gs.CTM)

	var text strings.Builder
	var glyphs []ShownGlyph
	tx := 0.0
	toUnits := func(v float64) float64 {
		if unit == 0 {
			return 0
		}
		return v / unit
	}
	for _, item := range items {
		switch v := item.(type) {
		case raw.StringObj:
			for _, g := range font.Decode(v.Bytes) {
				adv := g.Width / 1000 * ts.FontSize
				adv += ts.CharSpacing
				if g.Space {
					adv += ts.WordSpacing
				}
				adv *= th
				glyphs = append(glyphs, ShownGlyph{Code: g.Code, Text: g.Text, Offset: toUnits(tx), Advance: toUnits(adv)})
				text.WriteString(g.Text)
				tx += adv
			}
		case raw.NumberObj:
			n := v.Float()
			if n < -spaceAdjustment && text.Len() > 0 && !strings.HasSuffix(text.String(), " ") {
				text.WriteByte(' ')
			}
			tx -= n / 1000 * ts.FontSize * th
		}
	}
	ex.tm = coords.Translate(tx, 0).Multiply(ex.tm)
	in.handler.Text(TextShow{
		Text:       text.String(),
		Font:       font,
		FontSize:   ts.FontSize,
		Matrix:     trm,
		Advance:    toUnits(tx),
		Fill:       gs.FillColor,
		RenderMode: ts.RenderMode,
		Glyphs:     glyphs,
	})
}

func (in *Interpreter) defaultFont() *Font {
	if in.fallback == nil {
		in.fallback = &Font{BaseFont: "Helvetica", encoding: StandardEncoding, widths: map[int]float64{}}
	}
	return in.fallback
}

func (in *Interpreter) fontResource(ctx context.Context, res *raw.DictObj, name string) *Font {
	fontsDict, ok := in.doc.ResolveDict(valueOf(res, "Font"))
	if !ok {
		return nil
	}
	dict, ok := in.doc.ResolveDict(valueOf(fontsDict, name))
	if !ok {
		return nil
	}
	if f, ok := in.fonts[dict]; ok {
		return f
	}
	f := LoadFont(ctx, in.doc, dict, in.filters)
	in.fonts[dict] = f
	return f
}

func (in *Interpreter) applyExtGState(res *raw.DictObj, o []raw.Object, gs *GraphicsState) {
	name, ok := nameAt(o, 0)
	if !ok {
		return
	}
	states, ok := in.doc.ResolveDict(valueOf(res, "ExtGState"))
	if !ok {
		return
	}
	state, ok := in.doc.ResolveDict(valueOf(states, name))
	if !ok {
		return
	}
	if lw, ok := in.doc.ResolveNumber(valueOf(state, "LW")); ok {
		gs.LineWidth = lw
	}
}

func (in *Interpreter) doXObject(ctx context.Context, res *raw.DictObj, name string, gs *GraphicsState, depth int, active map[*raw.StreamObj]bool) error {
	xobjects, ok := in.doc.ResolveDict(valueOf(res, "XObject"))
	if !ok {
		return nil
	}
	st, ok := in.doc.Resolve(valueOf(xobjects, name)).(*raw.StreamObj)
	if !ok {
		return nil
	}
	switch sub, _ := st.Dict.Name("Subtype"); sub {
	case "Image":
		in.handler.Image(gs.CTM)
		return nil
	case "Form":
	default:
		return nil
	}
	if depth >= in.MaxFormDepth || active[st] {
		return nil
	}
	data, err := in.filters.DecodeStream(ctx, st)
	if err != nil {
		return nil
	}
	formRes := res
	if fr, ok := in.doc.ResolveDict(valueOf(st.Dict, "Resources")); ok {
		formRes = fr
	}
	ops, _ := Parse(data)

	gs.Save()
	if arr, ok := in.doc.ResolveArray(valueOf(st.Dict, "Matrix")); ok {
		if m, ok := matrixOf(arr.Items); ok {
			gs.CTM = m.Multiply(gs.CTM)
		}
	}
	active[st] = true
	err = in.exec(ctx, ops, formRes, gs, depth+1, active)
	delete(active, st)
	_ = gs.Restore()
	return err
}

func (ex *execState) newLine(tx, ty float64) {
	ex.tlm = coords.Translate(tx, ty).Multiply(ex.tlm)
	ex.tm = ex.tlm
}

func (ex *execState) moveTo(p coords.Point) {
	ex.path.Subpaths = append(ex.path.Subpaths, Subpath{Points: []PathPoint{{X: p.X, Y: p.Y, Type: PathMoveTo}}})
	ex.current = &ex.path.Subpaths[len(ex.path.Subpaths)-1]
}

func (ex *execState) lineTo(p coords.Point) {
	if ex.current == nil {
		ex.moveTo(p)
		return
	}
	ex.current.Points = append(ex.current.Points, PathPoint{X: p.X, Y: p.Y, Type: PathLineTo})
}

func (ex *execState) curveTo(c1, c2, p coords.Point) {
	if ex.current == nil {
		ex.moveTo(c1)
	}
	ex.current.Points = append(ex.current.Points, PathPoint{
		X: p.X, Y: p.Y, Type: PathCurveTo,
		Control1X: c1.X, Control1Y: c1.Y,
		Control2X: c2.X, Control2Y: c2.Y,
	})
}

func (ex *execState) closePath() {
	if ex.current == nil {
		return
	}
	ex.current.Closed = true
	ex.current = nil
}

func (ex *execState) last() coords.Point {
	pts := ex.current.Points
	p := pts[len(pts)-1]
	return coords.Point{X: p.X, Y: p.Y}
}

func (ex *execState) reset() {
	ex.path = Path{}
	ex.current = nil
}

func numAt(o []raw.Object, i int) (float64, bool) {
	if i >= len(o) {
		return 0, false
	}
	n, ok := o[i].(raw.NumberObj)
	return n.Float(), ok
}

func pointOf(o []raw.Object, i int) (float64, float64, bool) {
	x, ok1 := numAt(o, i)
	y, ok2 := numAt(o, i+1)
	return x, y, ok1 && ok2
}

func nameAt(o []raw.Object, i int) (string, bool) {
	if i >= len(o) {
		return "", false
	}
	n, ok := o[i].(raw.NameObj)
	return n.Val, ok
}

func firstArray(o []raw.Object) (*raw.ArrayObj, bool) {
	if len(o) != 1 {
		return nil, false
	}
	a, ok := o[0].(*raw.ArrayObj)
	return a, ok
}

func matrixOf(o []raw.Object) (coords.Matrix, bool) {
	if len(o) != 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i := range m {
		v, ok := numAt(o, i)
		if !ok {
			return coords.Matrix{}, false
		}
		m[i] = v
	}
	return m, true
}

// colorOf reads the numeric operands of a colour operator. Pattern names
// and other non-numeric operands are skipped.
func colorOf(o []raw.Object) (Color, bool) {
	var vals []float64
	for _, item := range o {
		if n, ok := item.(raw.NumberObj); ok {
			vals = append(vals, n.Float())
		}
	}
	switch len(vals) {
	case 1:
		return Gray(vals[0]), true
	case 3:
		return RGB(vals[0], vals[1], vals[2]), true
	case 4:
		return CMYK(vals[0], vals[1], vals[2], vals[3]), true
	}
	return Color{}, false
}
