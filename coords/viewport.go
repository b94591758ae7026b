package coords

// ToScreen maps a document point (origin bottom-left, unscaled) to screen
// space (origin top-left, scaled by zoom).
func ToScreen(p Point, pageHeight, zoom float64) Point {
	return Point{X: p.X * zoom, Y: (pageHeight - p.Y) * zoom}
}

// ToDocument is the inverse of ToScreen. A zero zoom maps everything to the
// page's top-left corner rather than producing infinities.
func ToDocument(s Point, pageHeight, zoom float64) Point {
	if zoom == 0 {
		return Point{X: 0, Y: pageHeight}
	}
	return Point{X: s.X / zoom, Y: pageHeight - s.Y/zoom}
}

// Viewport is a page rendered at a zoom factor.
type Viewport struct {
	PageWidth  float64
	PageHeight float64
	Zoom       float64
}

func NewViewport(size Size, zoom float64) Viewport {
	return Viewport{PageWidth: size.Width, PageHeight: size.Height, Zoom: zoom}
}

func (v Viewport) ToScreen(p Point) Point   { return ToScreen(p, v.PageHeight, v.Zoom) }
func (v Viewport) ToDocument(s Point) Point { return ToDocument(s, v.PageHeight, v.Zoom) }

// ScreenSize is the rendered page size in screen units.
func (v Viewport) ScreenSize() Size {
	return Size{Width: v.PageWidth * v.Zoom, Height: v.PageHeight * v.Zoom}
}

// Contains reports whether a screen point lies on the rendered page.
func (v Viewport) Contains(s Point) bool {
	sz := v.ScreenSize()
	return s.X >= 0 && s.Y >= 0 && s.X <= sz.Width && s.Y <= sz.Height
}

// Matrix returns the document-to-screen transform as an affine matrix.
func (v Viewport) Matrix() Matrix {
	return Matrix{v.Zoom, 0, 0, -v.Zoom, 0, v.PageHeight * v.Zoom}
}

// ScreenRect maps a document rectangle to screen space. The result is
// normalized, so LLY is the top edge on screen.
func (v Viewport) ScreenRect(r Rect) Rect {
	return RectFromPoints(v.ToScreen(Point{r.LLX, r.LLY}), v.ToScreen(Point{r.URX, r.URY}))
}
