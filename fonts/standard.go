package fonts

import "strings"

// The standard 14 fonts every conforming reader provides without embedding.
const (
	Helvetica            = "Helvetica"
	HelveticaBold        = "Helvetica-Bold"
	HelveticaOblique     = "Helvetica-Oblique"
	HelveticaBoldOblique = "Helvetica-BoldOblique"
	TimesRoman           = "Times-Roman"
	TimesBold            = "Times-Bold"
	TimesItalic          = "Times-Italic"
	TimesBoldItalic      = "Times-BoldItalic"
	Courier              = "Courier"
	CourierBold          = "Courier-Bold"
	CourierOblique       = "Courier-Oblique"
	CourierBoldOblique   = "Courier-BoldOblique"
	Symbol               = "Symbol"
	ZapfDingbats         = "ZapfDingbats"
)

var standardByStyle = map[Family][4]string{
	Sans:  {Helvetica, HelveticaBold, HelveticaOblique, HelveticaBoldOblique},
	Serif: {TimesRoman, TimesBold, TimesItalic, TimesBoldItalic},
	Mono:  {Courier, CourierBold, CourierOblique, CourierBoldOblique},
}

// Resolve picks the standard font for a family and emphasis.
func Resolve(f Family, e Emphasis) string {
	faces, ok := standardByStyle[f]
	if !ok {
		faces = standardByStyle[Sans]
	}
	idx := 0
	if e.Bold {
		idx |= 1
	}
	if e.Italic {
		idx |= 2
	}
	return faces[idx]
}

// IsStandard reports whether name is one of the standard 14 fonts.
func IsStandard(name string) bool {
	_, ok := metricsFor(name)
	return ok || name == Symbol || name == ZapfDingbats
}

// Widths for WinAnsi codes 32..126 in 1/1000 em.
var (
	helveticaWidths = [95]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
	}
	helveticaBoldWidths = [95]int{
	278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
	975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
	333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
	611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
	}
	timesRomanWidths = [95]int{
	250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
	921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
	556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
	333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
	500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
	}
	timesBoldWidths = [95]int{
	250, 333, 555, 500, 500, 1000, 833, 278, 333, 333, 500, 570, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 333, 333, 570, 570, 570, 500,
	930, 722, 667, 722, 722, 667, 611, 778, 778, 389, 500, 778, 667, 944, 722, 778,
	611, 778, 722, 556, 667, 722, 722, 1000, 722, 722, 667, 333, 278, 333, 581, 500,
	333, 500, 556, 444, 556, 444, 333, 500, 556, 278, 333, 556, 278, 833, 556, 500,
	556, 556, 444, 389, 333, 556, 500, 722, 500, 500, 444, 394, 220, 394, 520,
	}
)

type metrics struct {
	ascii    *[95]int
	fallback int // width of characters outside the table
	fixed    int // non-zero for monospaced faces
}

// TODO: oblique and italic faces reuse the upright tables; Times-Italic and
// Times-BoldItalic have their own AFM widths that should be added.
func metricsFor(name string) (metrics, bool) {
	switch StripSubset(name) {
	case Helvetica, HelveticaOblique, "Arial", "ArialMT", "Arial-ItalicMT":
		return metrics{ascii: &helveticaWidths, fallback: 556}, true
	case HelveticaBold, HelveticaBoldOblique, "Arial-BoldMT", "Arial-BoldItalicMT":
		return metrics{ascii: &helveticaBoldWidths, fallback: 556}, true
	case TimesRoman, TimesItalic, "TimesNewRomanPSMT", "TimesNewRomanPS-ItalicMT":
		return metrics{ascii: &timesRomanWidths, fallback: 500}, true
	case TimesBold, TimesBoldItalic, "TimesNewRomanPS-BoldMT", "TimesNewRomanPS-BoldItalicMT":
		return metrics{ascii: &timesBoldWidths, fallback: 500}, true
	case Courier, CourierBold, CourierOblique, CourierBoldOblique, "CourierNewPSMT":
		return metrics{fixed: 600, fallback: 600}, true
	}
	return metrics{}, false
}

// GlyphWidth returns the advance of r in 1/1000 em for a standard font.
// Unknown fonts are measured as Helvetica.
func GlyphWidth(font string, r rune) float64 {
	m, ok := metricsFor(font)
	if !ok {
		fam, emph := Classify(font)
		m, _ = metricsFor(Resolve(fam, emph))
	}
	if m.fixed > 0 {
		return float64(m.fixed)
	}
	if r >= 32 && r <= 126 {
		return float64(m.ascii[r-32])
	}
	return float64(m.fallback)
}

// CodeWidth measures a single-byte code as a standard font would, which is
// how simple fonts without /Widths are laid out.
func CodeWidth(font string, code byte) float64 {
	return GlyphWidth(font, rune(code))
}

// MeasureString returns the width of s in text space units at size.
func MeasureString(font string, s string, size float64) float64 {
	total := 0.0
	for _, r := range s {
		total += GlyphWidth(font, r)
	}
	return total * size / 1000
}

// FamilyOf returns the family of a standard font name.
func FamilyOf(name string) Family {
	switch {
	case strings.HasPrefix(name, "Times"):
		return Serif
	case strings.HasPrefix(name, "Courier"):
		return Mono
	}
	return Sans
}
