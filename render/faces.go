package render

import (
	"fmt"
	"sync"

	"github.com/wudi/pdfedit/fonts"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

type styleKey struct {
	family   fonts.Family
	emphasis fonts.Emphasis
}

// FaceBank caches parsed Go fonts and shapers for preview text. It is safe
// for concurrent use; the faces it returns are not.
type FaceBank struct {
	mu      sync.Mutex
	fonts   map[styleKey]*opentype.Font
	shapers map[styleKey]*fonts.Shaper
}

func NewFaceBank() *FaceBank {
	return &FaceBank{
		fonts:   make(map[styleKey]*opentype.Font),
		shapers: make(map[styleKey]*fonts.Shaper),
	}
}

var defaultBank = NewFaceBank()

// NewFace returns a face for the style at size pixels. Each caller owns the
// returned face.
func (b *FaceBank) NewFace(fam fonts.Family, emph fonts.Emphasis, size float64) (font.Face, error) {
	b.mu.Lock()
	otf, err := b.fontLocked(styleKey{fam, emph})
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("face %s %s: %w", fam, emph, err)
	}
	return face, nil
}

func (b *FaceBank) fontLocked(key styleKey) (*opentype.Font, error) {
	if f, ok := b.fonts[key]; ok {
		return f, nil
	}
	f, err := opentype.Parse(fonts.GoFont(key.family, key.emphasis))
	if err != nil {
		return nil, fmt.Errorf("parse go font: %w", err)
	}
	b.fonts[key] = f
	return f, nil
}

// Shape lays out text with the style's font program. Advances are in
// 1/1000 em.
func (b *FaceBank) Shape(fam fonts.Family, emph fonts.Emphasis, text string) ([]fonts.ShapedGlyph, error) {
	key := styleKey{fam, emph}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.shapers[key]
	if !ok {
		var err error
		s, err = fonts.NewShaper(fonts.GoFont(fam, emph))
		if err != nil {
			return nil, err
		}
		b.shapers[key] = s
	}
	// Shapers are not safe for concurrent use, so shaping stays under the lock.
	return s.Shape(text), nil
}
