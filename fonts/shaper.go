package fonts

import (
	"bytes"
	"fmt"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// ShapedGlyph represents a single shaped glyph with positioning information.
// Advances and offsets are in 1/1000 em.
type ShapedGlyph struct {
	ID       int
	Cluster  int
	XAdvance float64
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// Shaper runs HarfBuzz-style shaping for one font program. A Shaper is not
// safe for concurrent use.
type Shaper struct {
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
}

// NewShaper parses a TrueType/OpenType program for shaping.
func NewShaper(data []byte) (*Shaper, error) {
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse face: %w", err)
	}
	return &Shaper{face: face}, nil
}

// unitsSize makes one em equal 1000 units, so advances come out in PDF
// glyph space.
const unitsSize = fixed.Int26_6(1000 * 64)

// Shape returns the glyphs for text.
func (s *Shaper) Shape(text string) []ShapedGlyph {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	script := detectScript(runes)
	out := s.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      s.face,
		Size:      unitsSize,
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	result := make([]ShapedGlyph, 0, len(out.Glyphs))
	for _, g := range out.Glyphs {
		result = append(result, ShapedGlyph{
			ID:       int(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: float64(g.XAdvance) / 64.0,
			YAdvance: float64(g.YAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		})
	}
	return result
}

// Advance returns the shaped width of text at size in text space units.
func (s *Shaper) Advance(text string, size float64) float64 {
	total := 0.0
	for _, g := range s.Shape(text) {
		total += g.XAdvance
	}
	return total * size / 1000
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// detectScript picks the most frequent script in runes, ignoring common
// and inherited characters such as digits and punctuation.
func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best, bestCount := language.Latin, 0
	for _, r := range runes {
		script := language.LookupScript(r)
		switch script {
		case language.Common, language.Inherited, language.Unknown:
			continue
		}
		counts[script]++
		if counts[script] > bestCount {
			best, bestCount = script, counts[script]
		}
	}
	return best
}
