// Package render rasterizes page content and edit overlays into preview
// images.
package render

import (
	"image"
	"image/color"
	"math"
	"unicode"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// ImageFill is the placeholder colour for image XObjects.
var ImageFill = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}

// curveSteps is the number of line segments a cubic is flattened into.
const curveSteps = 16

// Canvas paints onto a page image in screen space. It implements
// contentstream.Handler and is not safe for concurrent use.
type Canvas struct {
	img   *image.RGBA
	view  coords.Viewport
	bank  *FaceBank
	ras   *vector.Rasterizer
	faces map[faceKey]font.Face
}

type faceKey struct {
	style styleKey
	// quarter pixels
	size int
}

type Option func(*Canvas)

// WithFaceBank shares parsed fonts between canvases.
func WithFaceBank(b *FaceBank) Option {
	return func(c *Canvas) {
		if b != nil {
			c.bank = b
		}
	}
}

// NewCanvas allocates a white page of ceil(w*zoom) x ceil(h*zoom) pixels.
func NewCanvas(view coords.Viewport, opts ...Option) *Canvas {
	sz := view.ScreenSize()
	w := max(int(math.Ceil(sz.Width)), 1)
	h := max(int(math.Ceil(sz.Height)), 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return newCanvas(img, view, opts...)
}

func newCanvas(img *image.RGBA, view coords.Viewport, opts ...Option) *Canvas {
	c := &Canvas{
		img:   img,
		view:  view,
		bank:  defaultBank,
		faces: make(map[faceKey]font.Face),
	}
	for _, opt := range opts {
		opt(c)
	}
	b := img.Bounds()
	c.ras = vector.NewRasterizer(b.Dx(), b.Dy())
	return c
}

func (c *Canvas) RGBA() *image.RGBA         { return c.img }
func (c *Canvas) Viewport() coords.Viewport { return c.view }

// Text draws one text-showing operation.
func (c *Canvas) Text(t contentstream.TextShow) {
	if !t.RenderMode.Visible() {
		return
	}
	fam, emph := fonts.Sans, fonts.Emphasis{}
	if t.Font != nil {
		fam, emph = t.Font.Family, t.Font.Emphasis
	}
	c.drawText(t.Text, fam, emph, t.Matrix.Multiply(c.view.Matrix()), t.Advance, nrgba(t.Fill, 1))
}

// Path fills and strokes a painted path.
func (c *Canvas) Path(p contentstream.PaintedPath) {
	m := c.view.Matrix()
	if p.Fill {
		c.resetRasterizer()
		for _, sub := range p.Path.Subpaths {
			c.addSubpath(sub, m)
		}
		c.paint(nrgba(p.FillColor, 1))
	}
	if p.Stroke {
		w := math.Max(p.LineWidth*c.view.Zoom, 1)
		c.resetRasterizer()
		for _, sub := range p.Path.Subpaths {
			c.addStroke(flatten(sub, m), w, sub.Closed, false)
		}
		c.paint(nrgba(p.StrokeColor, 1))
	}
}

// Image fills the unit square under ctm with a placeholder box.
func (c *Canvas) Image(ctm coords.Matrix) {
	m := ctm.Multiply(c.view.Matrix())
	c.resetRasterizer()
	c.addPolygon([]coords.Point{
		m.Transform(coords.Point{X: 0, Y: 0}),
		m.Transform(coords.Point{X: 1, Y: 0}),
		m.Transform(coords.Point{X: 1, Y: 1}),
		m.Transform(coords.Point{X: 0, Y: 1}),
	})
	c.paint(ImageFill)
}

// FillRect paints a document-space rectangle.
func (c *Canvas) FillRect(r coords.Rect, col color.Color) {
	s := c.view.ScreenRect(r)
	c.resetRasterizer()
	c.addPolygon([]coords.Point{
		{X: s.LLX, Y: s.LLY}, {X: s.URX, Y: s.LLY},
		{X: s.URX, Y: s.URY}, {X: s.LLX, Y: s.URY},
	})
	c.paint(col)
}

// Polyline strokes document-space points with round caps and joins. A
// single point becomes a dot. The whole line is painted in one pass so
// translucent strokes do not darken where segments overlap.
func (c *Canvas) Polyline(pts []coords.Point, width float64, col color.Color) {
	if len(pts) == 0 {
		return
	}
	screen := make([]coords.Point, len(pts))
	for i, p := range pts {
		screen[i] = c.view.ToScreen(p)
	}
	c.resetRasterizer()
	c.addStroke(screen, math.Max(width*c.view.Zoom, 1), false, true)
	c.paint(col)
}

func (c *Canvas) resetRasterizer() {
	b := c.img.Bounds()
	c.ras.Reset(b.Dx(), b.Dy())
}

func (c *Canvas) paint(col color.Color) {
	c.ras.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
}

func (c *Canvas) addSubpath(sub contentstream.Subpath, m coords.Matrix) {
	if len(sub.Points) == 0 {
		return
	}
	for i, pt := range sub.Points {
		p := m.Transform(coords.Point{X: pt.X, Y: pt.Y})
		switch {
		case i == 0 || pt.Type == contentstream.PathMoveTo:
			c.ras.MoveTo(float32(p.X), float32(p.Y))
		case pt.Type == contentstream.PathCurveTo:
			c1 := m.Transform(coords.Point{X: pt.Control1X, Y: pt.Control1Y})
			c2 := m.Transform(coords.Point{X: pt.Control2X, Y: pt.Control2Y})
			c.ras.CubeTo(float32(c1.X), float32(c1.Y), float32(c2.X), float32(c2.Y), float32(p.X), float32(p.Y))
		default:
			c.ras.LineTo(float32(p.X), float32(p.Y))
		}
	}
	c.ras.ClosePath()
}

// addStroke expands a polyline into one quad per segment. Interior joins are
// always rounded; round also rounds the two ends.
func (c *Canvas) addStroke(pts []coords.Point, width float64, closed, round bool) {
	if len(pts) == 0 {
		return
	}
	half := width / 2
	if closed && len(pts) > 1 && pts[0] != pts[len(pts)-1] {
		pts = append(pts, pts[0])
	}
	if len(pts) == 1 {
		if round {
			c.addPolygon(circle(pts[0], half))
		}
		return
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		d := coords.Distance(a, b)
		if d == 0 {
			continue
		}
		nx, ny := -(b.Y-a.Y)/d*half, (b.X-a.X)/d*half
		c.addPolygon([]coords.Point{
			{X: a.X + nx, Y: a.Y + ny}, {X: b.X + nx, Y: b.Y + ny},
			{X: b.X - nx, Y: b.Y - ny}, {X: a.X - nx, Y: a.Y - ny},
		})
	}
	for i, p := range pts {
		end := i == 0 || i == len(pts)-1
		if end && !round && !closed {
			continue
		}
		c.addPolygon(circle(p, half))
	}
}

// addPolygon adds a closed polygon with positive orientation. The
// rasterizer accumulates signed coverage, so mixing orientations would
// cancel overlapping areas.
func (c *Canvas) addPolygon(pts []coords.Point) {
	if len(pts) < 3 {
		return
	}
	if signedArea(pts) < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	c.ras.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		c.ras.LineTo(float32(p.X), float32(p.Y))
	}
	c.ras.ClosePath()
}

func (c *Canvas) face(fam fonts.Family, emph fonts.Emphasis, px float64) font.Face {
	key := faceKey{style: styleKey{fam, emph}, size: max(int(math.Round(px*4)), 1)}
	if f, ok := c.faces[key]; ok {
		return f
	}
	// A failed face is cached as nil so the text is skipped without retrying.
	f, _ := c.bank.NewFace(fam, emph, float64(key.size)/4)
	c.faces[key] = f
	return f
}

// textWidth is the shaped width of text in em.
func (c *Canvas) textWidth(fam fonts.Family, emph fonts.Emphasis, text string) float64 {
	glyphs, err := c.bank.Shape(fam, emph, text)
	if err != nil {
		return 0
	}
	total := 0.0
	for _, g := range glyphs {
		total += g.XAdvance
	}
	return total / 1000
}

// drawText lays text out with the shaper and draws it along the baseline of
// m, which maps em units to screen space. A positive advance stretches or
// squeezes the shaped line to that many em, so previews line up with the
// document's own glyph positions.
func (c *Canvas) drawText(text string, fam fonts.Family, emph fonts.Emphasis, m coords.Matrix, advance float64, col color.Color) {
	px := math.Hypot(m[2], m[3])
	if px < 1 || text == "" {
		return
	}
	glyphs, err := c.bank.Shape(fam, emph, text)
	if err != nil || len(glyphs) == 0 {
		return
	}
	face := c.face(fam, emph, px)
	if face == nil {
		return
	}
	total := 0.0
	for _, g := range glyphs {
		total += g.XAdvance
	}
	total /= 1000
	scale := 1.0
	if advance > 0 && total > 0 {
		scale = advance / total
	}
	runes := []rune(text)
	src := image.NewUniform(col)
	pen, prev := 0.0, -1
	for _, g := range glyphs {
		x := (pen + g.XOffset/1000) * scale
		pen += g.XAdvance / 1000
		if g.Cluster == prev || g.Cluster < 0 || g.Cluster >= len(runes) {
			continue
		}
		prev = g.Cluster
		r := runes[g.Cluster]
		if unicode.IsSpace(r) {
			continue
		}
		p := m.Transform(coords.Point{X: x})
		dot := fixed.Point26_6{X: fixed.Int26_6(math.Round(p.X * 64)), Y: fixed.Int26_6(math.Round(p.Y * 64))}
		dr, mask, mp, _, ok := face.Glyph(dot, r)
		if !ok {
			continue
		}
		draw.DrawMask(c.img, dr, src, image.Point{}, mask, mp, draw.Over)
	}
}

func flatten(sub contentstream.Subpath, m coords.Matrix) []coords.Point {
	out := make([]coords.Point, 0, len(sub.Points))
	for i, pt := range sub.Points {
		p := m.Transform(coords.Point{X: pt.X, Y: pt.Y})
		if i > 0 && pt.Type == contentstream.PathCurveTo {
			p0 := out[len(out)-1]
			c1 := m.Transform(coords.Point{X: pt.Control1X, Y: pt.Control1Y})
			c2 := m.Transform(coords.Point{X: pt.Control2X, Y: pt.Control2Y})
			for s := 1; s < curveSteps; s++ {
				out = append(out, cubic(p0, c1, c2, p, float64(s)/curveSteps))
			}
		}
		out = append(out, p)
	}
	return out
}

func cubic(p0, p1, p2, p3 coords.Point, t float64) coords.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return coords.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func circle(center coords.Point, r float64) []coords.Point {
	n := max(8, min(48, int(r*4)))
	pts := make([]coords.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = coords.Point{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)}
	}
	return pts
}

func signedArea(pts []coords.Point) float64 {
	a := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

func nrgba(c contentstream.Color, alpha float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(math.Round(c.R * 255)),
		G: uint8(math.Round(c.G * 255)),
		B: uint8(math.Round(c.B * 255)),
		A: uint8(math.Round(math.Max(0, math.Min(1, alpha)) * 255)),
	}
}
