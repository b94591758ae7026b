package fonts

import (
	"fmt"
	"math"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// TrueType is a parsed font program with the metrics needed to embed it as
// a simple TrueType font.
// Metrics are in 1/1000 em.
type TrueType struct {
	Name        string
	Data        []byte
	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	BBox        [4]float64
	// Widths maps glyph IDs to advances.
	Widths map[int]int
	// DefaultWidth is used for glyphs absent from Widths.
	DefaultWidth int

	font *sfnt.Font
	upem sfnt.Units
}

// LoadTrueType parses a TrueType/OpenType font and extracts the metrics a
// font descriptor needs. The full font is embedded.
func LoadTrueType(name string, data []byte) (*TrueType, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}

	widths := glyphWidths(font, buf, unitsPerEm, ppem)
	defaultWidth := widths[0]
	if defaultWidth == 0 {
		defaultWidth = 1000
	}
	metrics, _ := font.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(buf, ppem, xfont.HintingNone)

	tt := &TrueType{
		Name:         baseName,
		Data:         data,
		Ascent:       scaleFixed(metrics.Ascent, unitsPerEm),
		Descent:      -scaleFixed(metrics.Descent, unitsPerEm),
		CapHeight:    scaleFixed(metrics.CapHeight, unitsPerEm),
		ItalicAngle:  italicAngle(font),
		Widths:       widths,
		DefaultWidth: defaultWidth,
		font:         font,
		upem:         unitsPerEm,
	}
	if tt.CapHeight == 0 {
		tt.CapHeight = tt.Ascent
	}
	// sfnt bounds grow downwards; PDF boxes grow up.
	tt.BBox = [4]float64{
		scaleFixed(bounds.Min.X, unitsPerEm),
		-scaleFixed(bounds.Max.Y, unitsPerEm),
		scaleFixed(bounds.Max.X, unitsPerEm),
		-scaleFixed(bounds.Min.Y, unitsPerEm),
	}
	return tt, nil
}

// GlyphID maps a rune through the font's cmap. Missing glyphs map to 0.
func (t *TrueType) GlyphID(r rune) int {
	gid, err := t.font.GlyphIndex(&sfnt.Buffer{}, r)
	if err != nil {
		return 0
	}
	return int(gid)
}

// Width returns the advance of a glyph in 1/1000 em.
func (t *TrueType) Width(gid int) int {
	if w, ok := t.Widths[gid]; ok {
		return w
	}
	return t.DefaultWidth
}

// Measure returns the unshaped width of s at size in text space units.
func (t *TrueType) Measure(s string, size float64) float64 {
	total := 0
	for _, r := range s {
		total += t.Width(t.GlyphID(r))
	}
	return float64(total) * size / 1000
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[int]int {
	glyphs := font.NumGlyphs()
	widths := make(map[int]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
