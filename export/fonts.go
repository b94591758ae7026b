package export

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/writer"
)

// Face is a font an edit can be drawn with.
type Face interface {
	// Key identifies the face; edits sharing a key share one font resource.
	Key() string
	// Measure is the advance of text at size in user space units.
	Measure(text string, size float64) float64
	// Embed adds the font objects to u and returns the font dictionary.
	Embed(u *writer.Update) (raw.ObjectRef, error)
}

// FontSource picks the face for a family and emphasis.
type FontSource interface {
	Face(f fonts.Family, e fonts.Emphasis) (Face, error)
}

// FaceKey names a family and emphasis the way the config file does, such as
// "sans-regular" or "mono-bold-italic".
func FaceKey(f fonts.Family, e fonts.Emphasis) string {
	return f.String() + "-" + e.String()
}

// StandardFonts draws with the standard 14 fonts. Nothing is embedded.
type StandardFonts struct{}

func (StandardFonts) Face(f fonts.Family, e fonts.Emphasis) (Face, error) {
	return standardFace(fonts.Resolve(f, e)), nil
}

type standardFace string

func (s standardFace) Key() string { return string(s) }

func (s standardFace) Measure(text string, size float64) float64 {
	return fonts.MeasureString(string(s), text, size)
}

func (s standardFace) Embed(u *writer.Update) (raw.ObjectRef, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Font"))
	d.Set("Subtype", raw.NameLiteral("Type1"))
	d.Set("BaseFont", raw.NameLiteral(string(s)))
	d.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	return u.Add(d), nil
}

// TrueTypeFonts embeds TrueType programs keyed by FaceKey. Faces without a
// program fall back to the standard fonts. Safe for concurrent use.
type TrueTypeFonts struct {
	mu       sync.Mutex
	paths    map[string]string
	programs map[string]*fonts.TrueType
}

// NewTrueTypeFonts maps face keys to font files, read on first use.
func NewTrueTypeFonts(paths map[string]string) *TrueTypeFonts {
	t := &TrueTypeFonts{paths: map[string]string{}, programs: map[string]*fonts.TrueType{}}
	for k, p := range paths {
		t.paths[strings.ToLower(k)] = p
	}
	return t
}

// Add registers a font program for a face key directly.
func (t *TrueTypeFonts) Add(key string, data []byte) error {
	key = strings.ToLower(key)
	tt, err := fonts.LoadTrueType(key, data)
	if err != nil {
		return fmt.Errorf("font %s: %w", key, err)
	}
	t.mu.Lock()
	t.programs[key] = tt
	t.mu.Unlock()
	return nil
}

func (t *TrueTypeFonts) Face(f fonts.Family, e fonts.Emphasis) (Face, error) {
	key := FaceKey(f, e)
	t.mu.Lock()
	defer t.mu.Unlock()
	if tt, ok := t.programs[key]; ok {
		return &trueTypeFace{key: key, tt: tt}, nil
	}
	path, ok := t.paths[key]
	if !ok {
		return StandardFonts{}.Face(f, e)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", key, err)
	}
	tt, err := fonts.LoadTrueType(key, data)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", key, err)
	}
	t.programs[key] = tt
	return &trueTypeFace{key: key, tt: tt}, nil
}

const (
	firstChar = 32
	lastChar  = 126
)

type trueTypeFace struct {
	key string
	tt  *fonts.TrueType
}

func (f *trueTypeFace) Key() string { return "tt:" + f.key }

func (f *trueTypeFace) Measure(text string, size float64) float64 { return f.tt.Measure(text, size) }

// Embed writes a simple TrueType font over WinAnsi codes 32 to 126, which
// is all sanitized edit text can hold.
func (f *trueTypeFace) Embed(u *writer.Update) (raw.ObjectRef, error) {
	file := raw.Dict()
	file.Set("Length1", raw.NumberInt(int64(len(f.tt.Data))))
	fileRef := u.Add(raw.NewStream(file, f.tt.Data))

	name := baseFontName(f.tt.Name)
	desc := raw.Dict()
	desc.Set("Type", raw.NameLiteral("FontDescriptor"))
	desc.Set("FontName", raw.NameLiteral(name))
	desc.Set("Flags", raw.NumberInt(32))
	bbox := raw.NewArray()
	for _, v := range f.tt.BBox {
		bbox.Append(raw.NumberFloat(v))
	}
	desc.Set("FontBBox", bbox)
	desc.Set("ItalicAngle", raw.NumberFloat(f.tt.ItalicAngle))
	desc.Set("Ascent", raw.NumberFloat(f.tt.Ascent))
	desc.Set("Descent", raw.NumberFloat(f.tt.Descent))
	desc.Set("CapHeight", raw.NumberFloat(f.tt.CapHeight))
	desc.Set("StemV", raw.NumberInt(80))
	desc.Set("FontFile2", raw.Ref(fileRef.Num, fileRef.Gen))
	descRef := u.Add(desc)

	widths := raw.NewArray()
	for c := firstChar; c <= lastChar; c++ {
		widths.Append(raw.NumberInt(int64(f.tt.Width(f.tt.GlyphID(rune(c))))))
	}
	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("TrueType"))
	font.Set("BaseFont", raw.NameLiteral(name))
	font.Set("FirstChar", raw.NumberInt(firstChar))
	font.Set("LastChar", raw.NumberInt(lastChar))
	font.Set("Widths", widths)
	font.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	font.Set("FontDescriptor", raw.Ref(descRef.Num, descRef.Gen))
	return u.Add(font), nil
}

// baseFontName turns a face key into a PostScript-style name.
func baseFontName(key string) string {
	var b strings.Builder
	b.WriteString("PDFEdit")
	for _, part := range strings.Split(key, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}
